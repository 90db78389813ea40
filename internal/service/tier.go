package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
	"kotoba_backend/pkg/email"
	"kotoba_backend/pkg/plans"
)

type ChangeDecision struct {
	Allowed    bool             `json:"allowed"`
	ChangeType plans.ChangeType `json:"change_type"`
	Message    string           `json:"message"`
	TargetTier model.Tier       `json:"target_tier"`
}

type TierChangeService struct {
	subs  repository.SubscriptionStore
	users repository.UserStore
	mail  *email.Service
}

func NewTierChangeService(subs repository.SubscriptionStore, users repository.UserStore, mail *email.Service) *TierChangeService {
	return &TierChangeService{subs: subs, users: users, mail: mail}
}

// ValidateTierChange classifies a requested transition by tier rank.
// Upgrades apply immediately after payment, downgrades are deferred to
// the end of the billing period, and "new" covers users with no
// subscription yet.
func (s *TierChangeService) ValidateTierChange(ctx context.Context, userID uint, target model.Tier) (*ChangeDecision, error) {
	if !plans.IsValidTier(target) {
		return nil, validationf("unknown tier: %s", target)
	}

	var current *model.Tier
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	} else {
		current = &sub.Tier
	}

	decision := &ChangeDecision{
		ChangeType: plans.Classify(current, target),
		TargetTier: target,
	}

	switch decision.ChangeType {
	case plans.ChangeSame:
		decision.Message = fmt.Sprintf("Already on the %s tier", target)
	case plans.ChangeUpgrade:
		decision.Allowed = true
		decision.Message = fmt.Sprintf("Upgrade to %s applies as soon as payment completes", target)
	case plans.ChangeDowngrade:
		decision.Allowed = true
		decision.Message = fmt.Sprintf("Downgrade to %s takes effect at the end of the current billing period", target)
	case plans.ChangeNew:
		decision.Allowed = true
		decision.Message = fmt.Sprintf("Start a new %s subscription", target)
	}
	return decision, nil
}

// ScheduleDowngrade records the deferred change; the daily batch job
// applies it on the effective date.
func (s *TierChangeService) ScheduleDowngrade(ctx context.Context, userID uint, target model.Tier) (*model.Subscription, error) {
	decision, err := s.ValidateTierChange(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	if decision.ChangeType != plans.ChangeDowngrade {
		return nil, validationf("requested change is not a downgrade")
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	effective := time.Now().AddDate(0, 1, 0)
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(time.Now()) {
		effective = *sub.CurrentPeriodEnd
	}
	sub.ScheduledTier = &target
	sub.ScheduledTierDate = &effective

	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.notifyScheduled(ctx, userID, target, effective)
	return sub, nil
}

// CancelScheduledTierChange clears a pending downgrade before it is
// applied.
func (s *TierChangeService) CancelScheduledTierChange(ctx context.Context, userID uint) (*model.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.ScheduledTier == nil {
		return nil, validationf("no scheduled tier change to cancel")
	}

	sub.ScheduledTier = nil
	sub.ScheduledTierDate = nil
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplyTierChange switches the tier immediately and grants the tier's
// credit allotment. Called by the payment webhook once checkout
// completes; also handles the first subscription of a new user.
func (s *TierChangeService) ApplyTierChange(ctx context.Context, userID uint, target model.Tier, durationMonths int) (*model.Subscription, error) {
	if !plans.IsValidTier(target) {
		return nil, validationf("unknown tier: %s", target)
	}
	if durationMonths < 1 {
		durationMonths = 1
	}

	now := time.Now()
	periodEnd := now.AddDate(0, durationMonths, 0)

	sub, err := s.subs.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		sub = &model.Subscription{UserID: userID}
		sub.Tier = target
		sub.Status = model.StatusActive
		sub.CurrentPeriodEnd = &periodEnd
		if err := s.subs.Create(ctx, sub); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		sub.Tier = target
		sub.Status = model.StatusActive
		sub.TrialStartDate = nil
		sub.TrialEndDate = nil
		sub.ScheduledTier = nil
		sub.ScheduledTierDate = nil
		sub.CurrentPeriodEnd = &periodEnd
		if err := s.subs.Save(ctx, sub); err != nil {
			return nil, err
		}
	}

	// The grant covers the whole paid period up front; there is no
	// monthly top-up job.
	credits := plans.GetPlanLimits(target).MonthlyCredits * durationMonths
	balance, err := s.subs.GrantCredits(ctx, userID, credits, model.UsageTierGrant,
		fmt.Sprintf("%s tier credits (%d months)", target, durationMonths))
	if err != nil {
		return nil, err
	}
	sub.CreditsAvailable = balance

	s.notifyApplied(ctx, userID, target, credits, periodEnd)
	return sub, nil
}

// ProcessScheduledTierChanges applies every due scheduled change. Each
// record is one conditional update that applies the tier and clears the
// schedule together, so a rerun after a partial failure neither
// double-applies nor skips records. Individual failures are logged and
// the batch continues.
func (s *TierChangeService) ProcessScheduledTierChanges(ctx context.Context) (int, error) {
	now := time.Now()
	due, err := s.subs.ListDueTierChanges(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, sub := range due {
		applied, err := s.subs.ApplyScheduledTierChange(ctx, sub.ID, now)
		if err != nil {
			log.Printf("Could not apply scheduled tier change for subscription %d: %v", sub.ID, err)
			continue
		}
		if !applied {
			continue
		}
		processed++
		if sub.ScheduledTier != nil {
			s.notifyApplied(ctx, sub.UserID, *sub.ScheduledTier, 0, now)
		}
	}
	return processed, nil
}

func (s *TierChangeService) notifyScheduled(ctx context.Context, userID uint, target model.Tier, effective time.Time) {
	if s.mail == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("Could not load user %d for tier change email: %v", userID, err)
		return
	}
	if err := s.mail.SendTierChangeScheduledEmail(user.Email, user.DisplayName, string(target), effective); err != nil {
		log.Printf("Could not send tier change scheduled email: %v", err)
	}
}

func (s *TierChangeService) notifyApplied(ctx context.Context, userID uint, target model.Tier, credits int, periodEnd time.Time) {
	if s.mail == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("Could not load user %d for tier change email: %v", userID, err)
		return
	}
	if err := s.mail.SendTierChangedEmail(user.Email, user.DisplayName, string(target), credits, periodEnd); err != nil {
		log.Printf("Could not send tier changed email: %v", err)
	}
}
