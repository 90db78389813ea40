package repository

import (
	"context"

	"gorm.io/gorm"

	"kotoba_backend/internal/model"
)

type PendingPaymentStore interface {
	Create(ctx context.Context, payment *model.PendingPayment) error
	GetBySessionID(ctx context.Context, sessionID string) (*model.PendingPayment, error)

	// TransitionStatus moves a payment from one status to another in a
	// single conditional update. Returns false when the payment was not
	// in the expected status, which makes webhook replays no-ops.
	TransitionStatus(ctx context.Context, id uint, from, to model.PaymentStatus) (bool, error)
}

type GormPendingPaymentStore struct {
	db *gorm.DB
}

func NewPendingPaymentStore(db *gorm.DB) *GormPendingPaymentStore {
	return &GormPendingPaymentStore{db: db}
}

func (s *GormPendingPaymentStore) Create(ctx context.Context, payment *model.PendingPayment) error {
	return translate(s.db.WithContext(ctx).Create(payment).Error)
}

func (s *GormPendingPaymentStore) GetBySessionID(ctx context.Context, sessionID string) (*model.PendingPayment, error) {
	var payment model.PendingPayment
	if err := s.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (s *GormPendingPaymentStore) TransitionStatus(ctx context.Context, id uint, from, to model.PaymentStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.PendingPayment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}
