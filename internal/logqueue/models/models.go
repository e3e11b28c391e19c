package models

import (
	"time"

	"github.com/google/uuid"

	fpmodels "mailguard/internal/fingerprint/models"
	vmodels "mailguard/internal/validation/models"
	id "mailguard/pkg/domain"
)

// ValidationLog is the persisted record of one validation. It never carries
// the raw email or full IP: EmailHash is a keyed hash, EmailSealed is
// encrypted, and IP is anonymized before the log is built.
type ValidationLog struct {
	ID              uuid.UUID                                 `json:"id"`
	TenantID        id.TenantID                               `json:"tenant_id"`
	EmailHash       string                                    `json:"email_hash"`
	EmailSealed     string                                    `json:"email_sealed,omitempty"`
	Domain          string                                    `json:"domain"`
	Checks          map[vmodels.CheckName]vmodels.CheckResult `json:"checks"`
	Signals         []vmodels.Signal                          `json:"signals"`
	Score           int                                       `json:"score"`
	Recommendation  vmodels.Recommendation                    `json:"recommendation"`
	IP              string                                    `json:"ip,omitempty"`
	ASN             int                                       `json:"asn,omitempty"`
	Country         string                                    `json:"country,omitempty"`
	FingerprintHash id.FingerprintHash                        `json:"fingerprint_hash,omitempty"`
	Device          *fpmodels.DeviceInfo                      `json:"device,omitempty"`
	LatencyMs       int64                                     `json:"latency_ms"`
	CreatedAt       time.Time                                 `json:"created_at"`
}

// EnqueueResult reports the queue after an enqueue.
type EnqueueResult struct {
	Queued     int `json:"queued"`
	TotalQueue int `json:"total_queue"`
}

// FlushResult reports a tenant queue after a flush attempt.
type FlushResult struct {
	Flushed        int `json:"flushed"`
	RemainingQueue int `json:"remaining_queue"`
}
