package models

import (
	"strconv"
	"strings"

	id "mailguard/pkg/domain"
)

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a crafted identifier containing ':' cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewRateLimitKey builds tenant:keyType:windowIndex.
func NewRateLimitKey(tenantID id.TenantID, keyType id.KeyType, windowIndex int64) string {
	return SanitizeKeySegment(tenantID.String()) + ":" +
		SanitizeKeySegment(keyType.String()) + ":" +
		strconv.FormatInt(windowIndex, 10)
}
