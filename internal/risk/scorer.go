// Package risk turns validation signals into a score and a recommendation.
// Everything here is pure: no I/O, no clocks, no shared state.
package risk

import (
	"maps"
	"slices"

	"mailguard/internal/validation/models"
)

// MaxScore is the ceiling every score is clamped to.
const MaxScore = 100

// Weights maps a signal to the points it adds to the score.
// Signals without a weight (device_seen_N_times, overrides) add nothing.
type Weights map[models.Signal]int

// DefaultWeights returns the system weight table.
func DefaultWeights() Weights {
	return Weights{
		models.SignalInvalidSyntax:   100,
		models.SignalDisposableEmail: 40,
		models.SignalDeviceReuse:     35,
		models.SignalFraudIP:         30,
		models.SignalAliasPattern:    25,
		models.SignalCatchallDomain:  20,
		models.SignalInvalidMX:       15,
		models.SignalRoleEmail:       10,
		models.SignalVPNDetected:     10,
		models.SignalSMTPFail:        10,
	}
}

// WithOverrides returns a copy of w with tenant overrides applied.
// Negative overrides are ignored so a tenant cannot make a signal lower the score.
func (w Weights) WithOverrides(overrides Weights) Weights {
	out := maps.Clone(w)
	if out == nil {
		out = Weights{}
	}
	for s, v := range overrides {
		if v >= 0 {
			out[s] = v
		}
	}
	return out
}

// Thresholds are the score boundaries for FLAG and BLOCK.
type Thresholds struct {
	Flag  int `json:"flag" yaml:"flag"`
	Block int `json:"block" yaml:"block"`
}

// DefaultThresholds returns flag=60, block=100.
func DefaultThresholds() Thresholds {
	return Thresholds{Flag: 60, Block: 100}
}

// Score sums the weights of the distinct signals present, clamped to [0, MaxScore].
// whitelisted forces 0 and blacklisted forces MaxScore, in that priority.
func Score(signals []models.Signal, weights Weights) int {
	if slices.Contains(signals, models.SignalWhitelisted) {
		return 0
	}
	if slices.Contains(signals, models.SignalBlacklisted) {
		return MaxScore
	}

	seen := make(map[models.Signal]struct{}, len(signals))
	total := 0
	for _, s := range signals {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if w := weights[s]; w > 0 {
			total += w
		}
	}
	return clamp(total)
}

// Recommend maps a score onto thresholds.
func (t Thresholds) Recommend(score int) models.Recommendation {
	switch {
	case score >= t.Block:
		return models.RecommendationBlock
	case score >= t.Flag:
		return models.RecommendationFlag
	default:
		return models.RecommendationAllow
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
