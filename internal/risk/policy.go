package risk

import (
	"fmt"
	"slices"

	"mailguard/internal/validation/models"
)

// Settings is the per-tenant input to a Policy. Zero values fall back to defaults.
type Settings struct {
	Weights    Weights
	Thresholds *Thresholds
	Actions    map[models.CheckName]models.Action
}

// Assessment is a policy's verdict for one validation.
type Assessment struct {
	Score          int                   `json:"score"`
	Recommendation models.Recommendation `json:"recommendation"`
	// DecidedBy is the check or override that determined the outcome, when one did.
	DecidedBy string `json:"decided_by,omitempty"`
}

// Policy maps validation results to a recommendation. One policy is chosen per
// deployment; every policy applies the same override priority first.
type Policy interface {
	Name() string
	Assess(results models.ValidationResults, settings Settings) Assessment
}

// NewPolicy returns the policy registered under name ("threshold" or "action").
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "threshold", "":
		return ThresholdPolicy{}, nil
	case "action":
		return ActionPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown risk policy %q", name)
	}
}

// overrideRecommendation applies the list overrides ahead of any policy:
//  1. whitelisted → ALLOW
//  2. blacklisted → BLOCK
func overrideRecommendation(signals []models.Signal) (models.Recommendation, models.Signal, bool) {
	if slices.Contains(signals, models.SignalWhitelisted) {
		return models.RecommendationAllow, models.SignalWhitelisted, true
	}
	if slices.Contains(signals, models.SignalBlacklisted) {
		return models.RecommendationBlock, models.SignalBlacklisted, true
	}
	return "", "", false
}

func (s Settings) weights() Weights {
	return DefaultWeights().WithOverrides(s.Weights)
}

func (s Settings) thresholds() Thresholds {
	if s.Thresholds == nil {
		return DefaultThresholds()
	}
	return *s.Thresholds
}

// ThresholdPolicy compares the weighted score with the tenant thresholds.
type ThresholdPolicy struct{}

func (ThresholdPolicy) Name() string { return "threshold" }

func (ThresholdPolicy) Assess(results models.ValidationResults, settings Settings) Assessment {
	score := Score(results.Signals, settings.weights())
	if rec, by, ok := overrideRecommendation(results.Signals); ok {
		return Assessment{Score: score, Recommendation: rec, DecidedBy: string(by)}
	}
	return Assessment{Score: score, Recommendation: settings.thresholds().Recommend(score)}
}

// DefaultActions is the action table used when a tenant configures none.
func DefaultActions() map[models.CheckName]models.Action {
	return map[models.CheckName]models.Action{
		models.CheckSyntax:     models.ActionBlock,
		models.CheckDisposable: models.ActionBlock,
		models.CheckAlias:      models.ActionFlag,
		models.CheckRoleEmail:  models.ActionFlag,
		models.CheckMX:         models.ActionFlag,
		models.CheckSMTP:       models.ActionFlag,
		models.CheckCatchall:   models.ActionFlag,
		models.CheckIP:         models.ActionFlag,
		models.CheckDevice:     models.ActionFlag,
	}
}

// ActionPolicy blocks or flags on the configured action of each failing check.
// Checks that failed open count as passing. The score is still reported.
type ActionPolicy struct{}

func (ActionPolicy) Name() string { return "action" }

func (ActionPolicy) Assess(results models.ValidationResults, settings Settings) Assessment {
	score := Score(results.Signals, settings.weights())
	if rec, by, ok := overrideRecommendation(results.Signals); ok {
		return Assessment{Score: score, Recommendation: rec, DecidedBy: string(by)}
	}

	actions := settings.Actions
	if len(actions) == 0 {
		actions = DefaultActions()
	}

	var flaggedBy models.CheckName
	for _, c := range results.FailedChecks() {
		switch actions[c] {
		case models.ActionBlock:
			return Assessment{Score: score, Recommendation: models.RecommendationBlock, DecidedBy: string(c)}
		case models.ActionFlag:
			if flaggedBy == "" {
				flaggedBy = c
			}
		}
	}
	if flaggedBy != "" {
		return Assessment{Score: score, Recommendation: models.RecommendationFlag, DecidedBy: string(flaggedBy)}
	}
	return Assessment{Score: score, Recommendation: models.RecommendationAllow}
}
