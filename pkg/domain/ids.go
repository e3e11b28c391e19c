// Package domain holds identifier types shared across modules.
//
// Identifiers are parsed at trust boundaries (HTTP headers, request bodies)
// so downstream code can rely on their shape without re-validating.
package domain

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"

	dErrors "mailguard/pkg/domain-errors"
)

const maxTenantIDLength = 64

// TenantID identifies the tenant an authenticated API key belongs to.
// Invariant: 1-64 characters of [A-Za-z0-9_-].
type TenantID string

// ParseTenantID constructs a TenantID from external input.
func ParseTenantID(s string) (TenantID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "tenant id cannot be empty")
	}
	if len(s) > maxTenantIDLength {
		return "", dErrors.New(dErrors.CodeBadRequest, "tenant id is too long")
	}
	for _, r := range s {
		if !isTenantRune(r) {
			return "", dErrors.New(dErrors.CodeBadRequest, "tenant id contains invalid characters")
		}
	}
	return TenantID(s), nil
}

func isTenantRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}

func (t TenantID) String() string { return string(t) }

// IsNil reports whether the tenant id is unset.
func (t TenantID) IsNil() bool { return t == "" }

// KeyType distinguishes publicly exposed browser keys from server-side keys.
type KeyType string

const (
	KeyTypeClient KeyType = "client"
	KeyTypeServer KeyType = "server"
)

// ParseKeyType maps external input to a KeyType. Empty input means server.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyTypeServer:
		return KeyTypeServer, nil
	case KeyTypeClient:
		return KeyTypeClient, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "key type must be client or server")
	}
}

func (k KeyType) String() string { return string(k) }

// FingerprintHashLength is the number of hex characters in a device fingerprint hash.
const FingerprintHashLength = 32

// FingerprintHash is a stable digest of device signals.
// Invariant: exactly 32 lowercase hex characters.
type FingerprintHash string

// ParseFingerprintHash validates a client-supplied fingerprint hash.
func ParseFingerprintHash(s string) (FingerprintHash, error) {
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeBadRequest, "fingerprint hash must be valid utf-8")
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != FingerprintHashLength {
		return "", dErrors.New(dErrors.CodeBadRequest, "fingerprint hash must be 32 hex characters")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "fingerprint hash must be hex encoded")
	}
	return FingerprintHash(s), nil
}

func (f FingerprintHash) String() string { return string(f) }

// IsNil reports whether the fingerprint hash is unset.
func (f FingerprintHash) IsNil() bool { return f == "" }
