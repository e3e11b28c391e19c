// Package ports defines the device fingerprint store contract shared by every backend.
package ports

import (
	"context"

	"mailguard/internal/fingerprint/models"
	id "mailguard/pkg/domain"
)

// Store tracks which emails and tenants a device fingerprint has signed up with.
//
// Every backend has the same semantics: Record is idempotent on the email and
// tenant sets, always increments the signup count, and refreshes last seen and
// last IP. Records are never deleted by the service.
type Store interface {
	Check(ctx context.Context, hash id.FingerprintHash, email string) (models.DeviceData, error)
	Record(ctx context.Context, hash id.FingerprintHash, email, ip string, tenantID id.TenantID) error
}
