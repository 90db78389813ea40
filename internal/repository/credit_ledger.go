package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"kotoba_backend/internal/model"
)

type HistoryFilter struct {
	Limit  int
	Offset int
	Type   model.UsageType
	Start  *time.Time
	End    *time.Time
}

// CreditLedgerStore reads the immutable transaction ledger. Writes go
// through SubscriptionStore so balance and ledger stay in one tx.
type CreditLedgerStore interface {
	List(ctx context.Context, userID uint, filter HistoryFilter) ([]model.CreditTransaction, int64, error)
	SumDeltas(ctx context.Context, userID uint) (int, error)
	UsageTotals(ctx context.Context, userID uint, since time.Time) (map[model.UsageType]int, error)
}

type GormCreditLedgerStore struct {
	db *gorm.DB
}

func NewCreditLedgerStore(db *gorm.DB) *GormCreditLedgerStore {
	return &GormCreditLedgerStore{db: db}
}

func (s *GormCreditLedgerStore) List(ctx context.Context, userID uint, filter HistoryFilter) ([]model.CreditTransaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.CreditTransaction{}).Where("user_id = ?", userID)
	if filter.Type != "" {
		q = q.Where("usage_type = ?", filter.Type)
	}
	if filter.Start != nil {
		q = q.Where("created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("created_at <= ?", *filter.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var rows []model.CreditTransaction
	err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return rows, total, nil
}

func (s *GormCreditLedgerStore) SumDeltas(ctx context.Context, userID uint) (int, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&sum).Error
	return int(sum), translate(err)
}

func (s *GormCreditLedgerStore) UsageTotals(ctx context.Context, userID uint, since time.Time) (map[model.UsageType]int, error) {
	var rows []struct {
		UsageType model.UsageType
		Total     int64
	}
	err := s.db.WithContext(ctx).Model(&model.CreditTransaction{}).
		Select("usage_type, SUM(-delta) as total").
		Where("user_id = ? AND delta < 0 AND created_at >= ?", userID, since).
		Group("usage_type").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	totals := make(map[model.UsageType]int, len(rows))
	for _, r := range rows {
		totals[r.UsageType] = int(r.Total)
	}
	return totals, nil
}
