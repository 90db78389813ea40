package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionIsTrialing(t *testing.T) {
	now := time.Now()
	future := now.AddDate(0, 0, 7)
	past := now.AddDate(0, 0, -1)

	active := Subscription{Status: StatusTrialing, TrialEndDate: &future}
	assert.True(t, active.IsTrialing(now))

	// Past the end date the status alone does not count.
	stale := Subscription{Status: StatusTrialing, TrialEndDate: &past}
	assert.False(t, stale.IsTrialing(now))

	converted := Subscription{Status: StatusActive, TrialEndDate: &future}
	assert.False(t, converted.IsTrialing(now))

	none := Subscription{Status: StatusTrialing}
	assert.False(t, none.IsTrialing(now))
}

func TestTrialDaysRemainingRoundsUp(t *testing.T) {
	now := time.Now()

	end := now.Add(36 * time.Hour) // a day and a half reads as 2 days
	sub := Subscription{TrialEndDate: &end}
	assert.Equal(t, 2, sub.TrialDaysRemaining(now))

	exact := now.Add(48 * time.Hour)
	sub = Subscription{TrialEndDate: &exact}
	assert.Equal(t, 2, sub.TrialDaysRemaining(now))

	soon := now.Add(time.Minute)
	sub = Subscription{TrialEndDate: &soon}
	assert.Equal(t, 1, sub.TrialDaysRemaining(now))

	past := now.Add(-time.Hour)
	sub = Subscription{TrialEndDate: &past}
	assert.Equal(t, 0, sub.TrialDaysRemaining(now))

	assert.Equal(t, 0, (&Subscription{}).TrialDaysRemaining(now))
}

func TestHadTrial(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Subscription{}).HadTrial())
	assert.True(t, (&Subscription{TrialStartDate: &now}).HadTrial())
	assert.True(t, (&Subscription{TrialEndDate: &now}).HadTrial())
}
