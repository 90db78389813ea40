package service

import (
	"context"
	"time"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/pkg/plans"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type CreditCheck struct {
	Allowed            bool            `json:"allowed"`
	Reason             string          `json:"reason"`
	CreditsRequired    int             `json:"credits_required"`
	CreditsAvailable   int             `json:"credits_available"`
	EstimatedUnits     int             `json:"estimated_units"`
	UsageType          model.UsageType `json:"usage_type"`
	IsTrialUser        bool            `json:"is_trial_user"`
	TrialDaysRemaining int             `json:"trial_days_remaining"`
}

type UsageStats struct {
	CreditsAvailable int                     `json:"credits_available"`
	Tier             model.Tier              `json:"tier"`
	Since            time.Time               `json:"since"`
	TotalUsed        int                     `json:"total_used"`
	ByType           map[model.UsageType]int `json:"by_type"`
}

type CreditService struct {
	subs   repository.SubscriptionStore
	ledger repository.CreditLedgerStore
}

func NewCreditService(subs repository.SubscriptionStore, ledger repository.CreditLedgerStore) *CreditService {
	return &CreditService{subs: subs, ledger: ledger}
}

// CheckCredits is a pure read: it reports whether the user's balance
// covers the estimated usage. Enforcement happens in DeductCredits.
func (s *CreditService) CheckCredits(ctx context.Context, userID uint, usage model.UsageType, estimatedUnits int) (*CreditCheck, error) {
	if estimatedUnits < 1 {
		return nil, validationf("estimated_units must be at least 1")
	}

	required, ok := plans.Cost(usage, estimatedUnits)
	if !ok {
		return nil, validationf("unknown usage type: %s", usage)
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	check := &CreditCheck{
		CreditsRequired:    required,
		CreditsAvailable:   sub.CreditsAvailable,
		EstimatedUnits:     estimatedUnits,
		UsageType:          usage,
		IsTrialUser:        sub.IsTrialing(now),
		TrialDaysRemaining: sub.TrialDaysRemaining(now),
	}

	if sub.CreditsAvailable >= required {
		check.Allowed = true
		check.Reason = "ok"
	} else {
		check.Reason = "insufficient_credits"
	}
	return check, nil
}

// DeductCredits charges the user for actual usage. The balance check,
// decrement and ledger append are one atomic store operation, so two
// concurrent deductions can never drive the balance negative.
func (s *CreditService) DeductCredits(ctx context.Context, userID uint, usage model.UsageType, units int, description string) (int, error) {
	if units < 1 {
		return 0, validationf("units must be at least 1")
	}
	amount, ok := plans.Cost(usage, units)
	if !ok {
		return 0, validationf("unknown usage type: %s", usage)
	}
	return s.subs.DeductCredits(ctx, userID, amount, usage, description)
}

// GrantCredits adds credits with a ledger entry. Used by trial start,
// tier application and manual adjustments.
func (s *CreditService) GrantCredits(ctx context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error) {
	if amount < 1 {
		return 0, validationf("amount must be at least 1")
	}
	return s.subs.GrantCredits(ctx, userID, amount, usage, description)
}

// GetHistory returns a ledger page, newest first. The limit is capped
// at 100.
func (s *CreditService) GetHistory(ctx context.Context, userID uint, filter repository.HistoryFilter) ([]model.CreditTransaction, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Type != "" {
		if _, ok := plans.CreditCosts[filter.Type]; !ok {
			switch filter.Type {
			case model.UsageTrialGrant, model.UsageTierGrant, model.UsageAdjustment:
			default:
				return nil, 0, validationf("unknown usage type: %s", filter.Type)
			}
		}
	}
	return s.ledger.List(ctx, userID, filter)
}

// GetUsageStats aggregates credit consumption over the last 30 days.
func (s *CreditService) GetUsageStats(ctx context.Context, userID uint) (*UsageStats, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -30)
	byType, err := s.ledger.UsageTotals(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{
		CreditsAvailable: sub.CreditsAvailable,
		Tier:             sub.Tier,
		Since:            since,
		ByType:           byType,
	}
	for _, used := range byType {
		stats.TotalUsed += used
	}
	return stats, nil
}
