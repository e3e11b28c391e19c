package models

import (
	"time"

	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set when the decision came from the process-local fallback store.
	Degraded bool `json:"-"`
}

// QuotaResult represents the outcome of a monthly quota check.
type QuotaResult struct {
	Allowed bool      `json:"allowed"`
	Current int       `json:"current"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// NewQuotaResult compares current usage against limit. At or over the limit is denied.
func NewQuotaResult(current, limit int, now time.Time) QuotaResult {
	return QuotaResult{
		Allowed: current < limit,
		Current: current,
		Limit:   limit,
		ResetAt: NextPeriodStart(now),
	}
}

// Window is one fixed rate-limit window for a tenant and key type.
type Window struct {
	Key   string
	Start time.Time
	End   time.Time
}

// NewWindow computes the fixed window containing now.
// The key is tenant:keyType:floor(now/window).
func NewWindow(tenantID id.TenantID, keyType id.KeyType, window time.Duration, now time.Time) (Window, error) {
	if tenantID.IsNil() {
		return Window{}, dErrors.New(dErrors.CodeInvariantViolation, "tenant id cannot be empty")
	}
	if window <= 0 {
		return Window{}, dErrors.New(dErrors.CodeInvariantViolation, "window must be positive")
	}
	index := now.UnixMilli() / window.Milliseconds()
	start := time.UnixMilli(index * window.Milliseconds()).UTC()
	return Window{
		Key:   NewRateLimitKey(tenantID, keyType, index),
		Start: start,
		End:   start.Add(window),
	}, nil
}

// UsageKey identifies one tenant's counter for one calendar month (UTC).
type UsageKey struct {
	TenantID id.TenantID
	Period   string // yyyy-mm
}

// NewUsageKey returns the usage key for the month containing now.
func NewUsageKey(tenantID id.TenantID, now time.Time) UsageKey {
	return UsageKey{TenantID: tenantID, Period: PeriodOf(now)}
}

func (k UsageKey) String() string {
	return SanitizeKeySegment(k.TenantID.String()) + ":" + k.Period
}

// UsageCounter is the authoritative in-process usage count for a UsageKey.
//
// Invariants:
//   - Count only grows within a period
//   - LastFlushedCount <= Count
type UsageCounter struct {
	Key              UsageKey
	Count            int
	LastFlushedCount int
	// Hydrated is set once the counter has been seeded from the durable sink.
	Hydrated bool
	// HydrateAttemptedAt is the last failed seeding attempt, used to back off retries.
	HydrateAttemptedAt time.Time
}

// Seed merges a count loaded from the durable sink into a counter that may
// already have counted locally.
func (c *UsageCounter) Seed(stored int) {
	c.Count += stored
	c.LastFlushedCount = stored
	c.Hydrated = true
}

// NeedsFlush reports whether the counter should be pushed to the durable sink:
// on the first increment of the period and every `every` increments after that.
func (c *UsageCounter) NeedsFlush(every int) bool {
	if c.Count == 0 {
		return false
	}
	if c.LastFlushedCount == 0 {
		return true
	}
	return c.Count-c.LastFlushedCount >= every
}

// PeriodOf formats the UTC month containing t as yyyy-mm.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextPeriodStart returns the first instant of the UTC month after t.
func NextPeriodStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
