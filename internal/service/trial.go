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

type TrialStatus struct {
	HasTrial      bool       `json:"has_trial"`
	Active        bool       `json:"active"`
	Expired       bool       `json:"expired"`
	DaysRemaining int        `json:"days_remaining"`
	TrialEndDate  *time.Time `json:"trial_end_date"`
}

type TrialService struct {
	subs  repository.SubscriptionStore
	users repository.UserStore
	mail  *email.Service
}

func NewTrialService(subs repository.SubscriptionStore, users repository.UserStore, mail *email.Service) *TrialService {
	return &TrialService{subs: subs, users: users, mail: mail}
}

// IsEligibleForTrial is true while the user has never had a
// subscription with trial fields set.
func (s *TrialService) IsEligibleForTrial(ctx context.Context, userID uint) (bool, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return !sub.HadTrial(), nil
}

// StartTrial opens a 14 day trial at the trial tier and grants the
// trial credit allotment through the ledger.
func (s *TrialService) StartTrial(ctx context.Context, userID uint) (*model.Subscription, error) {
	eligible, err := s.IsEligibleForTrial(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, validationf("trial already used")
	}

	now := time.Now()
	end := now.AddDate(0, 0, plans.TrialDays)

	sub, err := s.subs.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		sub = &model.Subscription{UserID: userID}
		sub.Tier = plans.TrialTier
		sub.Status = model.StatusTrialing
		sub.TrialStartDate = &now
		sub.TrialEndDate = &end
		if err := s.subs.Create(ctx, sub); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		sub.Tier = plans.TrialTier
		sub.Status = model.StatusTrialing
		sub.TrialStartDate = &now
		sub.TrialEndDate = &end
		if err := s.subs.Save(ctx, sub); err != nil {
			return nil, err
		}
	}

	balance, err := s.subs.GrantCredits(ctx, userID, plans.TrialCredits, model.UsageTrialGrant,
		fmt.Sprintf("%d day trial started", plans.TrialDays))
	if err != nil {
		return nil, err
	}
	sub.CreditsAvailable = balance

	s.notifyTrialStarted(ctx, userID, end)
	return sub, nil
}

// ExtendTrial pushes the trial end date out by 1 to 30 days.
func (s *TrialService) ExtendTrial(ctx context.Context, userID uint, additionalDays int) (*model.Subscription, error) {
	if additionalDays <= 0 || additionalDays > plans.MaxTrialExtension {
		return nil, validationf("additional_days must be between 1 and %d", plans.MaxTrialExtension)
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.TrialEndDate == nil {
		return nil, validationf("no trial to extend")
	}

	end := sub.TrialEndDate.AddDate(0, 0, additionalDays)
	sub.TrialEndDate = &end
	if sub.Status != model.StatusTrialing && time.Now().Before(end) {
		// Reviving a trial the expiry batch already reverted restores
		// the trial tier along with the status.
		sub.Status = model.StatusTrialing
		sub.Tier = plans.TrialTier
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateFreeSubscription creates the permanent FREE-tier subscription
// used at signup when no trial is wanted. No trial fields are set.
func (s *TrialService) CreateFreeSubscription(ctx context.Context, userID uint) (*model.Subscription, error) {
	if _, err := s.subs.GetByUserID(ctx, userID); err == nil {
		return nil, validationf("subscription already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	sub := &model.Subscription{
		UserID: userID,
		Tier:   model.TierFree,
		Status: model.StatusActive,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	credits := plans.GetPlanLimits(model.TierFree).MonthlyCredits
	balance, err := s.subs.GrantCredits(ctx, userID, credits, model.UsageTierGrant, "free tier signup")
	if err != nil {
		return nil, err
	}
	sub.CreditsAvailable = balance
	return sub, nil
}

func (s *TrialService) GetTrialStatus(ctx context.Context, userID uint) (*TrialStatus, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &TrialStatus{
		HasTrial:     sub.HadTrial(),
		TrialEndDate: sub.TrialEndDate,
	}
	if !status.HasTrial {
		return status, nil
	}

	now := time.Now()
	status.DaysRemaining = sub.TrialDaysRemaining(now)
	status.Active = sub.IsTrialing(now)
	status.Expired = sub.TrialEndDate != nil && !now.Before(*sub.TrialEndDate)
	return status, nil
}

// ExpireTrials reverts every trial past its end date to FREE/active.
// One failed record does not abort the batch; the count reflects only
// successful reverts and a rerun processes zero already-expired rows.
func (s *TrialService) ExpireTrials(ctx context.Context) (int, error) {
	now := time.Now()
	due, err := s.subs.ListExpiredTrials(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, sub := range due {
		expired, err := s.subs.ExpireTrial(ctx, sub.ID, now)
		if err != nil {
			log.Printf("Could not expire trial for subscription %d: %v", sub.ID, err)
			continue
		}
		if !expired {
			continue
		}
		processed++
		s.notifyTrialEnded(ctx, sub.UserID)
	}
	return processed, nil
}

// WarnExpiringTrials emails users whose trial ends within the next
// three days. Driven by the in-process scheduler.
func (s *TrialService) WarnExpiringTrials(ctx context.Context) error {
	if s.mail == nil {
		return nil
	}
	now := time.Now()
	subs, err := s.subs.ListTrialsEndingWithin(ctx, now, 3)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		user, err := s.users.GetByID(ctx, sub.UserID)
		if err != nil {
			log.Printf("Could not load user %d for trial warning: %v", sub.UserID, err)
			continue
		}
		days := sub.TrialDaysRemaining(now)
		if err := s.mail.SendTrialExpiryWarning(user.Email, user.DisplayName, days, *sub.TrialEndDate); err != nil {
			log.Printf("Could not send trial warning to %s: %v", user.Email, err)
		}
	}
	return nil
}

func (s *TrialService) notifyTrialStarted(ctx context.Context, userID uint, endsAt time.Time) {
	if s.mail == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("Could not load user %d for trial email: %v", userID, err)
		return
	}
	if err := s.mail.SendTrialStartedEmail(user.Email, user.DisplayName, endsAt, plans.TrialCredits); err != nil {
		log.Printf("Could not send trial started email: %v", err)
	}
}

func (s *TrialService) notifyTrialEnded(ctx context.Context, userID uint) {
	if s.mail == nil {
		return
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("Could not load user %d for trial ended email: %v", userID, err)
		return
	}
	if err := s.mail.SendTrialEndedEmail(user.Email, user.DisplayName); err != nil {
		log.Printf("Could not send trial ended email: %v", err)
	}
}
