package handler

import (
	"net/netip"
	"strings"

	"mailguard/internal/fingerprint"
	fpmodels "mailguard/internal/fingerprint/models"
	"mailguard/internal/validation/models"
	"mailguard/internal/validation/service"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
)

// maxEmailLength bounds the raw input before normalization.
const maxEmailLength = 320

// ValidateRequest is the body of POST /v1/validate.
type ValidateRequest struct {
	Email           string               `json:"email"`
	Fingerprint     *fpmodels.Descriptor `json:"fingerprint,omitempty"`
	FingerprintHash string               `json:"fingerprint_hash,omitempty"`
	IP              string               `json:"ip,omitempty"`
	ASN             int                  `json:"asn,omitempty"`
	Country         string               `json:"country,omitempty"`
	Validations     map[string]bool      `json:"validations,omitempty"`

	toggles models.Toggles
}

// Validate rejects shapes the service cannot use. A syntactically odd email
// is accepted: judging it is the syntax check's job.
func (r *ValidateRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	switch {
	case r.Email == "":
		return dErrors.New(dErrors.CodeValidation, "email is required")
	case len(r.Email) > maxEmailLength:
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	case r.ASN < 0:
		return dErrors.New(dErrors.CodeValidation, "asn must not be negative")
	case r.Country != "" && len(r.Country) != 2:
		return dErrors.New(dErrors.CodeValidation, "country must be an ISO 3166-1 alpha-2 code")
	}
	if r.FingerprintHash != "" {
		if _, err := id.ParseFingerprintHash(r.FingerprintHash); err != nil {
			return err
		}
	}
	if err := validIP(r.IP); err != nil {
		return err
	}
	toggles, err := models.ParseToggles(r.Validations)
	if err != nil {
		return err
	}
	r.toggles = toggles
	return nil
}

func (r *ValidateRequest) toService() service.Request {
	return service.Request{
		Email:           r.Email,
		Fingerprint:     r.Fingerprint,
		FingerprintHash: r.FingerprintHash,
		IP:              r.IP,
		ASN:             r.ASN,
		Country:         r.Country,
		Validations:     r.toggles,
	}
}

// RecordFingerprintRequest is the body of POST /v1/fingerprint/record.
type RecordFingerprintRequest struct {
	Email           string               `json:"email"`
	Fingerprint     *fpmodels.Descriptor `json:"fingerprint,omitempty"`
	FingerprintHash string               `json:"fingerprint_hash,omitempty"`
	IP              string               `json:"ip,omitempty"`

	hash id.FingerprintHash
}

func (r *RecordFingerprintRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	switch {
	case r.FingerprintHash != "":
		hash, err := id.ParseFingerprintHash(r.FingerprintHash)
		if err != nil {
			return err
		}
		r.hash = hash
	case r.Fingerprint != nil:
		r.hash = fingerprint.ComputeHash(*r.Fingerprint)
	default:
		return dErrors.New(dErrors.CodeValidation, "fingerprint or fingerprint_hash is required")
	}
	return validIP(r.IP)
}

// FlushLogsRequest is the body of POST /v1/logs/flush. Without a tenant
// every queue is flushed.
type FlushLogsRequest struct {
	TenantID string `json:"tenant_id,omitempty"`

	tenantID id.TenantID
}

func (r *FlushLogsRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return nil
	}
	tenantID, err := id.ParseTenantID(r.TenantID)
	if err != nil {
		return err
	}
	r.tenantID = tenantID
	return nil
}

// FlushLogsResponse reports what a flush left behind.
type FlushLogsResponse struct {
	Tenants        int `json:"tenants"`
	Flushed        int `json:"flushed"`
	RemainingQueue int `json:"remaining_queue"`
}

func validIP(ip string) error {
	if ip == "" {
		return nil
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return dErrors.New(dErrors.CodeValidation, "ip must be an IPv4 or IPv6 address")
	}
	return nil
}
