package models

import (
	"strings"

	dErrors "mailguard/pkg/domain-errors"
)

// Recommendation is the ternary validation outcome.
type Recommendation string

const (
	RecommendationAllow Recommendation = "ALLOW"
	RecommendationFlag  Recommendation = "FLAG"
	RecommendationBlock Recommendation = "BLOCK"
)

// Action is what the toggle-action policy does when a check fails.
type Action string

const (
	ActionBlock    Action = "BLOCK"
	ActionFlag     Action = "FLAG"
	ActionInactive Action = "INACTIVE"
	ActionAllow    Action = "ALLOW"
)

// ParseAction validates an action from configuration. Case-insensitive.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBlock, ActionFlag, ActionInactive, ActionAllow:
		return a, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "action must be BLOCK, FLAG, INACTIVE or ALLOW")
	}
}
