package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kotoba_backend/internal/model"
	"kotoba_backend/pkg/plans"
)

func newTestTierService() (*TierChangeService, *memSubscriptionStore) {
	subs := newMemSubscriptionStore()
	return NewTierChangeService(subs, newMemUserStore(), nil), subs
}

func TestValidateTierChangeClassification(t *testing.T) {
	cases := []struct {
		name    string
		current *model.Tier
		target  model.Tier
		want    plans.ChangeType
		allowed bool
	}{
		{"free to basic is upgrade", tierPtr(model.TierFree), model.TierBasic, plans.ChangeUpgrade, true},
		{"free to pro is upgrade", tierPtr(model.TierFree), model.TierPro, plans.ChangeUpgrade, true},
		{"pro to basic is downgrade", tierPtr(model.TierPro), model.TierBasic, plans.ChangeDowngrade, true},
		{"basic to free is downgrade", tierPtr(model.TierBasic), model.TierFree, plans.ChangeDowngrade, true},
		{"basic to basic is same", tierPtr(model.TierBasic), model.TierBasic, plans.ChangeSame, false},
		{"no subscription is new", nil, model.TierPro, plans.ChangeNew, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, subs := newTestTierService()
			if tc.current != nil {
				assert.NoError(t, subs.Create(context.Background(), &model.Subscription{
					UserID: 1,
					Tier:   *tc.current,
					Status: model.StatusActive,
				}))
			}

			decision, err := svc.ValidateTierChange(context.Background(), 1, tc.target)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, decision.ChangeType)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.target, decision.TargetTier)
		})
	}
}

func TestValidateTierChangeUnknownTier(t *testing.T) {
	svc, _ := newTestTierService()

	_, err := svc.ValidateTierChange(context.Background(), 1, model.Tier("PLATINUM"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestScheduleDowngradeUsesPeriodEnd(t *testing.T) {
	svc, subs := newTestTierService()
	periodEnd := time.Now().AddDate(0, 0, 10)
	assert.NoError(t, subs.Create(context.Background(), &model.Subscription{
		UserID:           1,
		Tier:             model.TierPro,
		Status:           model.StatusActive,
		CurrentPeriodEnd: &periodEnd,
	}))

	sub, err := svc.ScheduleDowngrade(context.Background(), 1, model.TierBasic)
	assert.NoError(t, err)
	assert.NotNil(t, sub.ScheduledTier)
	assert.Equal(t, model.TierBasic, *sub.ScheduledTier)
	assert.NotNil(t, sub.ScheduledTierDate)
	assert.True(t, sub.ScheduledTierDate.Equal(periodEnd))

	// The current tier stays untouched until the batch applies it.
	assert.Equal(t, model.TierPro, sub.Tier)
}

func TestScheduleDowngradeRejectsUpgrade(t *testing.T) {
	svc, subs := newTestTierService()
	assert.NoError(t, subs.Create(context.Background(), &model.Subscription{
		UserID: 1,
		Tier:   model.TierFree,
		Status: model.StatusActive,
	}))

	_, err := svc.ScheduleDowngrade(context.Background(), 1, model.TierPro)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCancelScheduledTierChange(t *testing.T) {
	svc, subs := newTestTierService()
	assert.NoError(t, subs.Create(context.Background(), &model.Subscription{
		UserID: 1,
		Tier:   model.TierPro,
		Status: model.StatusActive,
	}))

	_, err := svc.ScheduleDowngrade(context.Background(), 1, model.TierFree)
	assert.NoError(t, err)

	sub, err := svc.CancelScheduledTierChange(context.Background(), 1)
	assert.NoError(t, err)
	assert.Nil(t, sub.ScheduledTier)
	assert.Nil(t, sub.ScheduledTierDate)

	// Nothing left to cancel.
	_, err = svc.CancelScheduledTierChange(context.Background(), 1)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestApplyTierChangeNewUser(t *testing.T) {
	svc, subs := newTestTierService()

	sub, err := svc.ApplyTierChange(context.Background(), 1, model.TierBasic, 3)
	assert.NoError(t, err)
	assert.Equal(t, model.TierBasic, sub.Tier)
	assert.Equal(t, model.StatusActive, sub.Status)
	// A 3 month purchase grants 3 months of credits up front.
	assert.Equal(t, 3*plans.GetPlanLimits(model.TierBasic).MonthlyCredits, sub.CreditsAvailable)
	assert.NotNil(t, sub.CurrentPeriodEnd)

	sum, err := subs.SumDeltas(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, sub.CreditsAvailable, sum)
}

func TestApplyTierChangeEndsTrial(t *testing.T) {
	svc, subs := newTestTierService()
	trial := NewTrialService(subs, newMemUserStore(), nil)

	_, err := trial.StartTrial(context.Background(), 1)
	assert.NoError(t, err)

	sub, err := svc.ApplyTierChange(context.Background(), 1, model.TierBasic, 1)
	assert.NoError(t, err)
	assert.Equal(t, model.TierBasic, sub.Tier)
	assert.Equal(t, model.StatusActive, sub.Status)
	assert.Nil(t, sub.TrialStartDate)
	assert.Nil(t, sub.TrialEndDate)

	// Trial credits survive; the tier grant stacks on top.
	expected := plans.TrialCredits + plans.GetPlanLimits(model.TierBasic).MonthlyCredits
	assert.Equal(t, expected, sub.CreditsAvailable)
}

func TestApplyTierChangeScalesGrantByDuration(t *testing.T) {
	svc, subs := newTestTierService()

	sub, err := svc.ApplyTierChange(context.Background(), 1, model.TierPro, 12)
	assert.NoError(t, err)
	assert.Equal(t, 12*plans.GetPlanLimits(model.TierPro).MonthlyCredits, sub.CreditsAvailable)

	sum, err := subs.SumDeltas(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, sub.CreditsAvailable, sum)
}

func TestProcessScheduledTierChanges(t *testing.T) {
	svc, subs := newTestTierService()
	assert.NoError(t, subs.Create(context.Background(), &model.Subscription{
		UserID: 1,
		Tier:   model.TierPro,
		Status: model.StatusActive,
	}))

	// Schedule a downgrade that is already due.
	sub, err := subs.GetByUserID(context.Background(), 1)
	assert.NoError(t, err)
	target := model.TierBasic
	due := time.Now().Add(-time.Hour)
	sub.ScheduledTier = &target
	sub.ScheduledTierDate = &due
	assert.NoError(t, subs.Save(context.Background(), sub))

	processed, err := svc.ProcessScheduledTierChanges(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, processed)

	sub, err = subs.GetByUserID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, model.TierBasic, sub.Tier)
	assert.Nil(t, sub.ScheduledTier)
	assert.Nil(t, sub.ScheduledTierDate)

	// Idempotent: the applied record is gone from the due set.
	processed, err = svc.ProcessScheduledTierChanges(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestProcessScheduledTierChangesSkipsFutureDates(t *testing.T) {
	svc, subs := newTestTierService()
	target := model.TierFree
	future := time.Now().AddDate(0, 0, 5)
	assert.NoError(t, subs.Create(context.Background(), &model.Subscription{
		UserID:            1,
		Tier:              model.TierBasic,
		Status:            model.StatusActive,
		ScheduledTier:     &target,
		ScheduledTierDate: &future,
	}))

	processed, err := svc.ProcessScheduledTierChanges(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, processed)

	sub, err := subs.GetByUserID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, model.TierBasic, sub.Tier)
	assert.NotNil(t, sub.ScheduledTier)
}

func tierPtr(tier model.Tier) *model.Tier {
	return &tier
}
