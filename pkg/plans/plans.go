package plans

import "kotoba_backend/internal/model"

// ChangeType classifies a requested tier transition.
type ChangeType string

const (
	ChangeUpgrade   ChangeType = "upgrade"
	ChangeDowngrade ChangeType = "downgrade"
	ChangeSame      ChangeType = "same"
	ChangeNew       ChangeType = "new"
)

type PlanLimits struct {
	MonthlyCredits int
	Price          float64 // USD per month
	MaxClipSeconds int     // longest audio clip accepted for transcription
}

// Rank order drives upgrade/downgrade classification: FREE < BASIC < PRO.
var tierRanks = map[model.Tier]int{
	model.TierFree:  0,
	model.TierBasic: 1,
	model.TierPro:   2,
}

var PlanFeatures = map[model.Tier]PlanLimits{
	model.TierFree: {
		MonthlyCredits: 50,
		Price:          0,
		MaxClipSeconds: 30,
	},
	model.TierBasic: {
		MonthlyCredits: 1000,
		Price:          9.99,
		MaxClipSeconds: 60,
	},
	model.TierPro: {
		MonthlyCredits: 3000,
		Price:          19.99,
		MaxClipSeconds: 300,
	},
}

// Credit cost per unit of each billable usage type. A chat unit is one
// tutor turn, a transcription unit is a 15 second audio slice.
var CreditCosts = map[model.UsageType]int{
	model.UsageChat:          1,
	model.UsageTranscription: 2,
	model.UsageGrammarCheck:  1,
	model.UsageTranslation:   1,
}

// Trial defaults
const (
	TrialDays         = 14
	TrialCredits      = 500
	TrialTier         = model.TierPro
	MaxTrialExtension = 30 // days per extend call
)

func IsValidTier(tier model.Tier) bool {
	_, ok := tierRanks[tier]
	return ok
}

func TierRank(tier model.Tier) int {
	return tierRanks[tier]
}

// Classify compares a target tier against the current one. A nil
// current subscription tier classifies as "new".
func Classify(current *model.Tier, target model.Tier) ChangeType {
	if current == nil {
		return ChangeNew
	}
	switch {
	case tierRanks[target] > tierRanks[*current]:
		return ChangeUpgrade
	case tierRanks[target] < tierRanks[*current]:
		return ChangeDowngrade
	default:
		return ChangeSame
	}
}

// Cost returns the credit cost for units of a usage type. The second
// return is false for usage types that are not billable.
func Cost(usage model.UsageType, units int) (int, bool) {
	perUnit, ok := CreditCosts[usage]
	if !ok {
		return 0, false
	}
	return perUnit * units, true
}

func GetPlanLimits(tier model.Tier) PlanLimits {
	return PlanFeatures[tier]
}
