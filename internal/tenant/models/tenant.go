package models

import (
	"fmt"

	"mailguard/internal/risk"
	vmodels "mailguard/internal/validation/models"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	pstrings "mailguard/pkg/platform/strings"
)

// TenantStatus gates whether a tenant may validate at all.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// Entitlements are the plan limits a tenant bought.
type Entitlements struct {
	// ValidationsLimit is the monthly quota. Zero or less means the system default.
	ValidationsLimit int `json:"validations_limit" yaml:"validations_limit"`
}

// TenantConfig is the read-only view of a tenant the validation path needs.
//
// Invariants:
//   - ID is non-empty
//   - Whitelist and Blacklist entries are lowercase and deduplicated
//   - Validations, Actions and Weights only carry known keys
type TenantConfig struct {
	ID           id.TenantID
	Name         string
	Status       TenantStatus
	Validations  vmodels.Toggles
	Actions      map[vmodels.CheckName]vmodels.Action
	Whitelist    []string
	Blacklist    []string
	Entitlements Entitlements
	Thresholds   *risk.Thresholds
	Weights      risk.Weights
}

// IsActive reports whether the tenant may validate. An unset status is active.
func (t *TenantConfig) IsActive() bool {
	return t.Status != TenantStatusInactive
}

// RiskSettings is the tenant's input to the risk policy.
func (t *TenantConfig) RiskSettings() risk.Settings {
	return risk.Settings{
		Weights:    t.Weights,
		Thresholds: t.Thresholds,
		Actions:    t.Actions,
	}
}

// weightAliases lets tenant files name weights the way the pricing page
// does (disposable, vpnIp) as well as by signal.
var weightAliases = map[string]vmodels.Signal{
	"invalidSyntax": vmodels.SignalInvalidSyntax,
	"disposable":    vmodels.SignalDisposableEmail,
	"deviceReuse":   vmodels.SignalDeviceReuse,
	"fraudIp":       vmodels.SignalFraudIP,
	"alias":         vmodels.SignalAliasPattern,
	"catchall":      vmodels.SignalCatchallDomain,
	"invalidMx":     vmodels.SignalInvalidMX,
	"roleEmail":     vmodels.SignalRoleEmail,
	"vpnIp":         vmodels.SignalVPNDetected,
	"smtpFail":      vmodels.SignalSMTPFail,
}

// ParseWeights resolves weight keys given as aliases or signal names.
func ParseWeights(raw map[string]int) (risk.Weights, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	defaults := risk.DefaultWeights()
	out := make(risk.Weights, len(raw))
	for k, v := range raw {
		s, ok := weightAliases[k]
		if !ok {
			s = vmodels.Signal(k)
			if _, known := defaults[s]; !known {
				return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown weight %q", k))
			}
		}
		out[s] = v
	}
	return out, nil
}

// Document is the serialized tenant shape shared by the YAML seed file and
// the Redis cache. Keys are strings so unknown names are reported, not dropped.
type Document struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	Status       string            `json:"status,omitempty" yaml:"status,omitempty"`
	Validations  map[string]bool   `json:"validations,omitempty" yaml:"validations,omitempty"`
	Actions      map[string]string `json:"actions,omitempty" yaml:"actions,omitempty"`
	Whitelist    []string          `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Blacklist    []string          `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
	Entitlements Entitlements      `json:"entitlements" yaml:"entitlements"`
	Thresholds   *risk.Thresholds  `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Weights      map[string]int    `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// ToConfig validates d and converts it.
func (d Document) ToConfig() (*TenantConfig, error) {
	tenantID, err := id.ParseTenantID(d.ID)
	if err != nil {
		return nil, err
	}
	cfg := &TenantConfig{
		ID:           tenantID,
		Name:         d.Name,
		Status:       TenantStatus(d.Status),
		Whitelist:    pstrings.DedupeAndTrimLower(d.Whitelist),
		Blacklist:    pstrings.DedupeAndTrimLower(d.Blacklist),
		Entitlements: d.Entitlements,
		Thresholds:   d.Thresholds,
	}
	switch cfg.Status {
	case "", TenantStatusActive, TenantStatusInactive:
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("tenant %s: unknown status %q", d.ID, d.Status))
	}
	// A zero block threshold would block every request.
	if t := cfg.Thresholds; t != nil && (t.Flag < 0 || t.Block <= 0 || t.Block < t.Flag) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("tenant %s: thresholds need 0 <= flag <= block and block > 0", d.ID))
	}
	if cfg.Validations, err = vmodels.ParseToggles(d.Validations); err != nil {
		return nil, err
	}
	if len(d.Actions) > 0 {
		cfg.Actions = make(map[vmodels.CheckName]vmodels.Action, len(d.Actions))
		for k, v := range d.Actions {
			check, err := vmodels.ParseCheckName(k)
			if err != nil {
				return nil, err
			}
			if cfg.Actions[check], err = vmodels.ParseAction(v); err != nil {
				return nil, err
			}
		}
	}
	if cfg.Weights, err = ParseWeights(d.Weights); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDocument is the inverse of ToConfig, used to publish a tenant to Redis.
func NewDocument(t *TenantConfig) Document {
	d := Document{
		ID:           t.ID.String(),
		Name:         t.Name,
		Status:       string(t.Status),
		Whitelist:    t.Whitelist,
		Blacklist:    t.Blacklist,
		Entitlements: t.Entitlements,
		Thresholds:   t.Thresholds,
	}
	if len(t.Validations) > 0 {
		d.Validations = make(map[string]bool, len(t.Validations))
		for k, v := range t.Validations {
			d.Validations[string(k)] = v
		}
	}
	if len(t.Actions) > 0 {
		d.Actions = make(map[string]string, len(t.Actions))
		for k, v := range t.Actions {
			d.Actions[string(k)] = string(v)
		}
	}
	if len(t.Weights) > 0 {
		d.Weights = make(map[string]int, len(t.Weights))
		for k, v := range t.Weights {
			d.Weights[string(k)] = v
		}
	}
	return d
}
