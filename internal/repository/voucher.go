package repository

import (
	"context"

	"gorm.io/gorm"

	"kotoba_backend/internal/model"
)

type VoucherStore interface {
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)

	// CountRedemptions counts non-cancelled redemptions of a voucher.
	CountRedemptions(ctx context.Context, voucherID uint) (int64, error)
	CountUserRedemptions(ctx context.Context, voucherID, userID uint) (int64, error)

	// CreateRedemption inserts a redemption row. The (voucher, user)
	// unique index makes concurrent duplicates fail with ErrDuplicate.
	CreateRedemption(ctx context.Context, redemption *model.VoucherRedemption) error
	GetRedemption(ctx context.Context, id uint) (*model.VoucherRedemption, error)
	AttachPayment(ctx context.Context, redemptionID, paymentID uint) error
	UpdateRedemptionStatus(ctx context.Context, id uint, status model.RedemptionStatus) error
	ListUserRedemptions(ctx context.Context, userID uint) ([]model.VoucherRedemption, error)
}

type GormVoucherStore struct {
	db *gorm.DB
}

func NewVoucherStore(db *gorm.DB) *GormVoucherStore {
	return &GormVoucherStore{db: db}
}

func (s *GormVoucherStore) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	var voucher model.Voucher
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&voucher).Error; err != nil {
		return nil, translate(err)
	}
	return &voucher, nil
}

func (s *GormVoucherStore) CountRedemptions(ctx context.Context, voucherID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.VoucherRedemption{}).
		Where("voucher_id = ? AND status <> ?", voucherID, model.RedemptionCancelled).
		Count(&count).Error
	return count, translate(err)
}

func (s *GormVoucherStore) CountUserRedemptions(ctx context.Context, voucherID, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.VoucherRedemption{}).
		Where("voucher_id = ? AND user_id = ? AND status <> ?", voucherID, userID, model.RedemptionCancelled).
		Count(&count).Error
	return count, translate(err)
}

func (s *GormVoucherStore) CreateRedemption(ctx context.Context, redemption *model.VoucherRedemption) error {
	return translate(s.db.WithContext(ctx).Create(redemption).Error)
}

func (s *GormVoucherStore) GetRedemption(ctx context.Context, id uint) (*model.VoucherRedemption, error) {
	var redemption model.VoucherRedemption
	if err := s.db.WithContext(ctx).Preload("Voucher").First(&redemption, id).Error; err != nil {
		return nil, translate(err)
	}
	return &redemption, nil
}

func (s *GormVoucherStore) AttachPayment(ctx context.Context, redemptionID, paymentID uint) error {
	res := s.db.WithContext(ctx).Model(&model.VoucherRedemption{}).
		Where("id = ?", redemptionID).
		Update("pending_payment_id", paymentID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormVoucherStore) UpdateRedemptionStatus(ctx context.Context, id uint, status model.RedemptionStatus) error {
	res := s.db.WithContext(ctx).Model(&model.VoucherRedemption{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormVoucherStore) ListUserRedemptions(ctx context.Context, userID uint) ([]model.VoucherRedemption, error) {
	var redemptions []model.VoucherRedemption
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Voucher").
		Order("created_at DESC").
		Find(&redemptions).Error
	return redemptions, translate(err)
}
