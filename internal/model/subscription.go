package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription Tiers
type Tier string

const (
	TierFree  Tier = "FREE"
	TierBasic Tier = "BASIC"
	TierPro   Tier = "PRO"
)

// Subscription Status
type SubscriptionStatus string

const (
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	gorm.Model
	UserID uint `json:"user_id" gorm:"uniqueIndex;not null"`

	Tier             Tier               `json:"tier" gorm:"not null;default:'FREE'"`
	Status           SubscriptionStatus `json:"status" gorm:"not null;default:'active'"`
	CreditsAvailable int                `json:"credits_available" gorm:"not null;default:0"`

	TrialStartDate *time.Time `json:"trial_start_date"`
	TrialEndDate   *time.Time `json:"trial_end_date"`

	// Deferred downgrade, applied by the daily batch job
	ScheduledTier     *Tier      `json:"scheduled_tier"`
	ScheduledTierDate *time.Time `json:"scheduled_tier_date"`

	CurrentPeriodEnd *time.Time `json:"current_period_end"`

	StripeCustomerID string `json:"stripe_customer_id"`
	StripeSubID      string `json:"stripe_subscription_id"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// IsTrialing reports whether the subscription is inside an unexpired trial window.
func (s *Subscription) IsTrialing(now time.Time) bool {
	return s.Status == StatusTrialing && s.TrialEndDate != nil && now.Before(*s.TrialEndDate)
}

// TrialDaysRemaining returns whole days left on the trial, rounded up.
// Zero when no trial window is set or the trial has already ended.
func (s *Subscription) TrialDaysRemaining(now time.Time) int {
	if s.TrialEndDate == nil || !now.Before(*s.TrialEndDate) {
		return 0
	}
	remaining := s.TrialEndDate.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// HadTrial reports whether a trial was ever started on this subscription.
func (s *Subscription) HadTrial() bool {
	return s.TrialStartDate != nil || s.TrialEndDate != nil
}
