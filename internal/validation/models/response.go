package models

import (
	id "mailguard/pkg/domain"
)

// QuotaSnapshot is the tenant's usage as seen at admission. ResetAt is
// epoch seconds.
type QuotaSnapshot struct {
	Current int   `json:"current"`
	Limit   int   `json:"limit"`
	ResetAt int64 `json:"reset_at"`
}

// ResponseMetadata carries request-level facts next to the verdict.
type ResponseMetadata struct {
	FingerprintID   id.FingerprintHash `json:"fingerprint_id,omitempty"`
	PreviousSignups *int               `json:"previous_signups,omitempty"`
	LatencyMs       int64              `json:"latency_ms"`
	Quota           QuotaSnapshot      `json:"quota"`
	DecidedBy       string             `json:"decided_by,omitempty"`
}

// Response is the verdict for one validated address.
type Response struct {
	Email          string                    `json:"email"`
	Recommendation Recommendation            `json:"recommendation"`
	Score          int                       `json:"score"`
	Signals        []Signal                  `json:"signals"`
	Checks         map[CheckName]CheckResult `json:"checks"`
	IPData         *IPData                   `json:"ip_data,omitempty"`
	Metadata       ResponseMetadata          `json:"metadata"`
}
