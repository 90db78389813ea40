package model

import "gorm.io/gorm"

// Usage Types
type UsageType string

const (
	UsageChat          UsageType = "chat"
	UsageTranscription UsageType = "transcription"
	UsageGrammarCheck  UsageType = "grammar_check"
	UsageTranslation   UsageType = "translation"
	UsageTrialGrant    UsageType = "trial_grant"
	UsageTierGrant     UsageType = "tier_grant"
	UsageAdjustment    UsageType = "adjustment"
)

// CreditTransaction is an immutable ledger row. The sum of deltas for a
// user always equals the subscription's credits_available; balance and
// ledger are written in the same database transaction.
type CreditTransaction struct {
	gorm.Model
	UserID       uint      `json:"user_id" gorm:"index;not null"`
	Delta        int       `json:"delta" gorm:"not null"`
	UsageType    UsageType `json:"usage_type" gorm:"index;not null"`
	BalanceAfter int       `json:"balance_after" gorm:"not null"`
	Description  string    `json:"description"`
}
