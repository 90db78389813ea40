package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"kotoba_backend/internal/model"
)

// SubscriptionStore persists per-user subscription state. Balance
// mutations are atomic: the conditional update and the ledger row are
// written in one database transaction.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID uint) (*model.Subscription, error)
	Create(ctx context.Context, sub *model.Subscription) error
	Save(ctx context.Context, sub *model.Subscription) error

	// DeductCredits decrements the balance only when it covers the
	// amount, appends a ledger row, and returns the new balance.
	// ErrInsufficientCredits when the balance is too low, ErrNotFound
	// when the user has no subscription.
	DeductCredits(ctx context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error)

	// GrantCredits increments the balance and appends a ledger row.
	GrantCredits(ctx context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error)

	// ListDueTierChanges returns subscriptions whose scheduled change is
	// due at or before now.
	ListDueTierChanges(ctx context.Context, now time.Time) ([]model.Subscription, error)

	// ApplyScheduledTierChange applies the stored tier and clears the
	// schedule in a single conditional update. Returns false when the
	// record was not due (already applied or rescheduled) — reruns are
	// therefore idempotent.
	ApplyScheduledTierChange(ctx context.Context, subID uint, now time.Time) (bool, error)

	// ListExpiredTrials returns trialing subscriptions past their end date.
	ListExpiredTrials(ctx context.Context, now time.Time) ([]model.Subscription, error)

	// ExpireTrial reverts a trialing subscription to FREE/active with the
	// same conditional-update idempotence as tier changes.
	ExpireTrial(ctx context.Context, subID uint, now time.Time) (bool, error)

	// ListTrialsEndingWithin returns trialing subscriptions whose end
	// date falls inside [now, now+days) — used for expiry warnings.
	ListTrialsEndingWithin(ctx context.Context, now time.Time, days int) ([]model.Subscription, error)
}

type GormSubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) *GormSubscriptionStore {
	return &GormSubscriptionStore{db: db}
}

func (s *GormSubscriptionStore) GetByUserID(ctx context.Context, userID uint) (*model.Subscription, error) {
	var sub model.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormSubscriptionStore) Create(ctx context.Context, sub *model.Subscription) error {
	return translate(s.db.WithContext(ctx).Create(sub).Error)
}

func (s *GormSubscriptionStore) Save(ctx context.Context, sub *model.Subscription) error {
	return translate(s.db.WithContext(ctx).Save(sub).Error)
}

func (s *GormSubscriptionStore) DeductCredits(ctx context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error) {
	var balance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Subscription{}).
			Where("user_id = ? AND credits_available >= ?", userID, amount).
			UpdateColumn("credits_available", gorm.Expr("credits_available - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Subscription{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrInsufficientCredits
		}

		var sub model.Subscription
		if err := tx.Where("user_id = ?", userID).First(&sub).Error; err != nil {
			return err
		}
		balance = sub.CreditsAvailable

		return tx.Create(&model.CreditTransaction{
			UserID:       userID,
			Delta:        -amount,
			UsageType:    usage,
			BalanceAfter: balance,
			Description:  description,
		}).Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

func (s *GormSubscriptionStore) GrantCredits(ctx context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error) {
	var balance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Subscription{}).
			Where("user_id = ?", userID).
			UpdateColumn("credits_available", gorm.Expr("credits_available + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var sub model.Subscription
		if err := tx.Where("user_id = ?", userID).First(&sub).Error; err != nil {
			return err
		}
		balance = sub.CreditsAvailable

		return tx.Create(&model.CreditTransaction{
			UserID:       userID,
			Delta:        amount,
			UsageType:    usage,
			BalanceAfter: balance,
			Description:  description,
		}).Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

func (s *GormSubscriptionStore) ListDueTierChanges(ctx context.Context, now time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.db.WithContext(ctx).
		Where("scheduled_tier IS NOT NULL AND scheduled_tier_date <= ?", now).
		Find(&subs).Error
	return subs, translate(err)
}

func (s *GormSubscriptionStore) ApplyScheduledTierChange(ctx context.Context, subID uint, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND scheduled_tier IS NOT NULL AND scheduled_tier_date <= ?", subID, now).
		Updates(map[string]interface{}{
			"tier":                gorm.Expr("scheduled_tier"),
			"scheduled_tier":      nil,
			"scheduled_tier_date": nil,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormSubscriptionStore) ListExpiredTrials(ctx context.Context, now time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.db.WithContext(ctx).
		Where("status = ? AND trial_end_date <= ?", model.StatusTrialing, now).
		Find(&subs).Error
	return subs, translate(err)
}

func (s *GormSubscriptionStore) ExpireTrial(ctx context.Context, subID uint, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status = ? AND trial_end_date <= ?", subID, model.StatusTrialing, now).
		Updates(map[string]interface{}{
			"status": model.StatusActive,
			"tier":   model.TierFree,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormSubscriptionStore) ListTrialsEndingWithin(ctx context.Context, now time.Time, days int) ([]model.Subscription, error) {
	var subs []model.Subscription
	until := now.AddDate(0, 0, days)
	err := s.db.WithContext(ctx).
		Where("status = ? AND trial_end_date > ? AND trial_end_date < ?", model.StatusTrialing, now, until).
		Find(&subs).Error
	return subs, translate(err)
}
