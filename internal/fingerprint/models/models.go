package models

import (
	"slices"
	"time"

	id "mailguard/pkg/domain"
)

// Record is the stored history of one device fingerprint.
//
// Invariants:
//   - EmailsUsed and ProjectsSeen are sets (no duplicates)
//   - SignupCount >= 1 once the record exists
//   - FirstSeen never changes after creation
type Record struct {
	Hash         id.FingerprintHash `json:"hash"`
	EmailsUsed   []string           `json:"emails_used"`
	ProjectsSeen []string           `json:"projects_seen"`
	SignupCount  int                `json:"signup_count"`
	FirstSeen    time.Time          `json:"first_seen"`
	LastSeen     time.Time          `json:"last_seen"`
	LastIP       string             `json:"last_ip,omitempty"`
}

// NewRecord creates the record for a device's first signup.
func NewRecord(hash id.FingerprintHash, email, ip string, tenantID id.TenantID, now time.Time) *Record {
	return &Record{
		Hash:         hash,
		EmailsUsed:   []string{email},
		ProjectsSeen: []string{tenantID.String()},
		SignupCount:  1,
		FirstSeen:    now,
		LastSeen:     now,
		LastIP:       ip,
	}
}

// ApplySignup folds another signup into an existing record.
func (r *Record) ApplySignup(email, ip string, tenantID id.TenantID, now time.Time) {
	if !slices.Contains(r.EmailsUsed, email) {
		r.EmailsUsed = append(r.EmailsUsed, email)
	}
	if !slices.Contains(r.ProjectsSeen, tenantID.String()) {
		r.ProjectsSeen = append(r.ProjectsSeen, tenantID.String())
	}
	r.SignupCount++
	r.LastSeen = now
	r.LastIP = ip
}

// DeviceData is what a check reveals about a device for a given email.
type DeviceData struct {
	IsKnownDevice   bool       `json:"is_known_device"`
	IsNewEmail      bool       `json:"is_new_email"`
	PreviousSignups int        `json:"previous_signups"`
	EmailsUsed      []string   `json:"emails_used"`
	FirstSeen       *time.Time `json:"first_seen,omitempty"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
}

// UnknownDevice is the DeviceData for a fingerprint with no history.
func UnknownDevice() DeviceData {
	return DeviceData{IsNewEmail: true, EmailsUsed: []string{}}
}

// ToDeviceData derives DeviceData for email from a stored record.
// A nil record yields UnknownDevice.
func ToDeviceData(r *Record, email string) DeviceData {
	if r == nil {
		return UnknownDevice()
	}
	firstSeen, lastSeen := r.FirstSeen, r.LastSeen
	return DeviceData{
		IsKnownDevice:   true,
		IsNewEmail:      !slices.Contains(r.EmailsUsed, email),
		PreviousSignups: r.SignupCount,
		EmailsUsed:      slices.Clone(r.EmailsUsed),
		FirstSeen:       &firstSeen,
		LastSeen:        &lastSeen,
	}
}
