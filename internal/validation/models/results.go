package models

import (
	"fmt"
	"maps"
	"slices"

	fpmodels "mailguard/internal/fingerprint/models"
)

// Signal is a fixed-vocabulary risk indicator.
type Signal string

const (
	SignalInvalidSyntax   Signal = "invalid_syntax"
	SignalAliasPattern    Signal = "alias_pattern"
	SignalDisposableEmail Signal = "disposable_email"
	SignalInvalidMX       Signal = "invalid_mx"
	SignalSMTPFail        Signal = "smtp_fail"
	SignalCatchallDomain  Signal = "catchall_domain"
	SignalRoleEmail       Signal = "role_email"
	SignalVPNDetected     Signal = "vpn_detected"
	SignalFraudIP         Signal = "fraud_ip"
	SignalDeviceReuse     Signal = "device_reuse"
	SignalWhitelisted     Signal = "whitelisted"
	SignalBlacklisted     Signal = "blacklisted"
)

// DeviceSeenSignal builds the device_seen_N_times signal.
func DeviceSeenSignal(n int) Signal {
	return Signal(fmt.Sprintf("device_seen_%d_times", n))
}

// CheckResult is the outcome of one check. Pass with a non-empty Error means
// the check failed open.
type CheckResult struct {
	Pass      bool           `json:"pass"`
	LatencyMs float64        `json:"latency_ms"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IPData summarizes the reputation lookup for the caller's IP.
type IPData struct {
	IP      string `json:"ip"`
	ASN     int    `json:"asn,omitempty"`
	IsVPN   bool   `json:"is_vpn"`
	IsFraud bool   `json:"is_fraud"`
}

// ValidationResults is the orchestrator output for one email.
type ValidationResults struct {
	Email      string                    `json:"email"`
	Checks     map[CheckName]CheckResult `json:"checks"`
	Signals    []Signal                  `json:"signals"`
	DeviceData *fpmodels.DeviceData      `json:"device_data,omitempty"`
	IPData     *IPData                   `json:"ip_data,omitempty"`
}

// HasSignal reports whether s was emitted.
func (r ValidationResults) HasSignal(s Signal) bool {
	return slices.Contains(r.Signals, s)
}

// WithSignal returns a copy of r with s appended. Checks are shallow-copied.
func (r ValidationResults) WithSignal(s Signal) ValidationResults {
	out := r
	out.Checks = maps.Clone(r.Checks)
	out.Signals = append(slices.Clone(r.Signals), s)
	return out
}

// FailedChecks lists the checks whose result did not pass, in AllChecks order.
func (r ValidationResults) FailedChecks() []CheckName {
	var failed []CheckName
	for _, c := range AllChecks {
		if res, ok := r.Checks[c]; ok && !res.Pass {
			failed = append(failed, c)
		}
	}
	return failed
}
