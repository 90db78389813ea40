package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Discount Types
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Redemption Status
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

type Voucher struct {
	gorm.Model
	Code          string       `json:"code" gorm:"uniqueIndex;not null"`
	Description   string       `json:"description"`
	DiscountType  DiscountType `json:"discount_type" gorm:"not null"`
	DiscountValue float64      `json:"discount_value" gorm:"not null"`

	// Tiers the code applies to; empty array means all tiers
	ApplicableTiers datatypes.JSON `json:"applicable_tiers"`

	MaxRedemptions    int  `json:"max_redemptions"` // 0 = unlimited
	MaxPerUser        int  `json:"max_per_user" gorm:"default:1"`
	MinDurationMonths int  `json:"min_duration_months"`
	IsActive          bool `json:"is_active" gorm:"default:true"`

	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`

	Redemptions []VoucherRedemption `json:"-"`
}

// Tiers decodes the applicable tier list. A nil or empty column means
// the voucher applies to every tier.
func (v *Voucher) Tiers() []Tier {
	if len(v.ApplicableTiers) == 0 {
		return nil
	}
	var tiers []Tier
	if err := json.Unmarshal(v.ApplicableTiers, &tiers); err != nil {
		return nil
	}
	return tiers
}

// AppliesTo reports whether the voucher can be used on the given tier.
func (v *Voucher) AppliesTo(tier Tier) bool {
	tiers := v.Tiers()
	if len(tiers) == 0 {
		return true
	}
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// InValidityWindow checks the valid_from/valid_until bounds. Open bounds
// are unrestricted.
func (v *Voucher) InValidityWindow(now time.Time) bool {
	if v.ValidFrom != nil && now.Before(*v.ValidFrom) {
		return false
	}
	if v.ValidUntil != nil && now.After(*v.ValidUntil) {
		return false
	}
	return true
}

// Discount computes the discount for a purchase amount, clamped so the
// final price never goes below zero.
func (v *Voucher) Discount(amount float64) float64 {
	var off float64
	switch v.DiscountType {
	case DiscountPercent:
		off = amount * v.DiscountValue / 100
	case DiscountFixed:
		off = v.DiscountValue
	}
	if off > amount {
		off = amount
	}
	if off < 0 {
		off = 0
	}
	return off
}

// VoucherRedemption links a user to a voucher use. The composite unique
// index is the guard against concurrent double redemption; duplicate
// inserts fail at the database, not in application code. Cancelled rows
// are excluded so an abandoned checkout frees the code again.
type VoucherRedemption struct {
	gorm.Model
	VoucherID uint `json:"voucher_id" gorm:"uniqueIndex:idx_voucher_user,where:status <> 'cancelled';not null"`
	UserID    uint `json:"user_id" gorm:"uniqueIndex:idx_voucher_user;not null"`

	DiscountApplied  float64          `json:"discount_applied"`
	Status           RedemptionStatus `json:"status" gorm:"not null;default:'pending'"`
	PendingPaymentID *uint            `json:"pending_payment_id"`

	Voucher Voucher `json:"voucher" gorm:"foreignKey:VoucherID"`
	User    User    `json:"-" gorm:"foreignKey:UserID"`
}
