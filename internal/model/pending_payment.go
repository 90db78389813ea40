package model

import "gorm.io/gorm"

// Payment Status
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
)

// PendingPayment is an in-flight checkout awaiting gateway confirmation.
// The Stripe webhook flips it to completed and applies the tier change.
type PendingPayment struct {
	gorm.Model
	UserID         uint          `json:"user_id" gorm:"index;not null"`
	TargetTier     Tier          `json:"target_tier" gorm:"not null"`
	Amount         float64       `json:"amount" gorm:"not null"`
	Currency       string        `json:"currency" gorm:"not null;default:'USD'"`
	DurationMonths int           `json:"duration_months" gorm:"not null;default:1"`
	Status         PaymentStatus `json:"status" gorm:"not null;default:'pending'"`

	StripeSessionID     string `json:"stripe_session_id" gorm:"uniqueIndex;not null"`
	VoucherRedemptionID *uint  `json:"voucher_redemption_id"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}
