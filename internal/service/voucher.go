package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/pkg/plans"
)

type DiscountPreview struct {
	Amount      float64 `json:"amount"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"final_amount"`
}

type VoucherSummary struct {
	Code          string             `json:"code"`
	Description   string             `json:"description"`
	DiscountType  model.DiscountType `json:"discount_type"`
	DiscountValue float64            `json:"discount_value"`
}

// VoucherValidation is the preview result. Business rejections come
// back as Valid:false with a reason; only infrastructure failures are
// returned as errors.
type VoucherValidation struct {
	Valid           bool             `json:"valid"`
	Error           string           `json:"error,omitempty"`
	Voucher         *VoucherSummary  `json:"voucher,omitempty"`
	DiscountPreview *DiscountPreview `json:"discount_preview,omitempty"`

	voucher *model.Voucher
}

type RedemptionSummary struct {
	ID              uint                   `json:"id"`
	Code            string                 `json:"code"`
	Description     string                 `json:"description"`
	DiscountApplied float64                `json:"discount_applied"`
	Status          model.RedemptionStatus `json:"status"`
	RedeemedAt      time.Time              `json:"redeemed_at"`
}

type VoucherService struct {
	vouchers repository.VoucherStore
}

func NewVoucherService(vouchers repository.VoucherStore) *VoucherService {
	return &VoucherService{vouchers: vouchers}
}

// ValidateVoucher checks a code against tier, amount and duration
// constraints and computes a discount preview. Nothing is persisted.
func (s *VoucherService) ValidateVoucher(ctx context.Context, code string, userID uint, tier model.Tier, amount float64, durationMonths int) (*VoucherValidation, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return nil, validationf("voucher code is required")
	}
	if !plans.IsValidTier(tier) {
		return nil, validationf("unknown tier: %s", tier)
	}
	if amount < 0 {
		return nil, validationf("amount must not be negative")
	}

	voucher, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return rejected("voucher not found"), nil
		}
		return nil, err
	}

	if !voucher.IsActive {
		return rejected("voucher is no longer active"), nil
	}
	if !voucher.InValidityWindow(time.Now()) {
		return rejected("voucher is outside its validity window"), nil
	}
	if !voucher.AppliesTo(tier) {
		return rejected("voucher does not apply to the " + string(tier) + " tier"), nil
	}
	if voucher.MinDurationMonths > 0 && durationMonths < voucher.MinDurationMonths {
		return rejected("voucher requires a longer subscription period"), nil
	}

	if voucher.MaxRedemptions > 0 {
		total, err := s.vouchers.CountRedemptions(ctx, voucher.ID)
		if err != nil {
			return nil, err
		}
		if total >= int64(voucher.MaxRedemptions) {
			return rejected("voucher has been fully redeemed"), nil
		}
	}

	maxPerUser := voucher.MaxPerUser
	if maxPerUser <= 0 {
		maxPerUser = 1
	}
	mine, err := s.vouchers.CountUserRedemptions(ctx, voucher.ID, userID)
	if err != nil {
		return nil, err
	}
	if mine >= int64(maxPerUser) {
		return rejected("voucher already redeemed"), nil
	}

	discount := voucher.Discount(amount)
	return &VoucherValidation{
		Valid: true,
		Voucher: &VoucherSummary{
			Code:          voucher.Code,
			Description:   voucher.Description,
			DiscountType:  voucher.DiscountType,
			DiscountValue: voucher.DiscountValue,
		},
		DiscountPreview: &DiscountPreview{
			Amount:      amount,
			Discount:    discount,
			FinalAmount: amount - discount,
		},
		voucher: voucher,
	}, nil
}

// BeginRedemption persists a pending redemption for a validated
// voucher. The (voucher, user) unique index turns a concurrent
// duplicate into ErrDuplicate instead of a second discount.
func (s *VoucherService) BeginRedemption(ctx context.Context, validation *VoucherValidation, userID uint, paymentID *uint) (*model.VoucherRedemption, error) {
	if validation == nil || !validation.Valid || validation.voucher == nil {
		return nil, validationf("voucher has not been validated")
	}

	redemption := &model.VoucherRedemption{
		VoucherID:        validation.voucher.ID,
		UserID:           userID,
		DiscountApplied:  validation.DiscountPreview.Discount,
		Status:           model.RedemptionPending,
		PendingPaymentID: paymentID,
	}
	if err := s.vouchers.CreateRedemption(ctx, redemption); err != nil {
		return nil, err
	}
	return redemption, nil
}

// AttachPayment back-links a redemption to the checkout it belongs to.
func (s *VoucherService) AttachPayment(ctx context.Context, redemptionID, paymentID uint) error {
	return s.vouchers.AttachPayment(ctx, redemptionID, paymentID)
}

// CompleteRedemption marks a pending redemption as completed once the
// linked payment is confirmed.
func (s *VoucherService) CompleteRedemption(ctx context.Context, redemptionID uint) error {
	return s.vouchers.UpdateRedemptionStatus(ctx, redemptionID, model.RedemptionCompleted)
}

// CancelRedemption releases a pending redemption when checkout is
// abandoned, freeing the code for another attempt.
func (s *VoucherService) CancelRedemption(ctx context.Context, redemptionID uint) error {
	return s.vouchers.UpdateRedemptionStatus(ctx, redemptionID, model.RedemptionCancelled)
}

// GetUserRedemptions returns the user's redemption history joined with
// voucher metadata.
func (s *VoucherService) GetUserRedemptions(ctx context.Context, userID uint) ([]RedemptionSummary, error) {
	redemptions, err := s.vouchers.ListUserRedemptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]RedemptionSummary, 0, len(redemptions))
	for _, r := range redemptions {
		summaries = append(summaries, RedemptionSummary{
			ID:              r.ID,
			Code:            r.Voucher.Code,
			Description:     r.Voucher.Description,
			DiscountApplied: r.DiscountApplied,
			Status:          r.Status,
			RedeemedAt:      r.CreatedAt,
		})
	}
	return summaries, nil
}

func rejected(reason string) *VoucherValidation {
	return &VoucherValidation{Valid: false, Error: reason}
}
