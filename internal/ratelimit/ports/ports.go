// Package ports defines shared interfaces for the ratelimit module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"mailguard/internal/ratelimit/models"
	"mailguard/pkg/requestcontext"
)

// WindowStore manages fixed-window request counters.
type WindowStore interface {
	// IncrementIfBelow atomically increments key when its count is below limit.
	// It returns the count after the call and whether the increment happened.
	// A new key expires after ttl.
	IncrementIfBelow(ctx context.Context, key string, limit int, ttl time.Duration) (count int, allowed bool, err error)
}

// UsageSink is the durable system of record for monthly usage counts.
type UsageSink interface {
	// Upsert stores count for key. Implementations never lower a stored count.
	Upsert(ctx context.Context, key models.UsageKey, count int) error

	// Load returns the stored count for key, or sentinel.ErrNotFound.
	Load(ctx context.Context, key models.UsageKey) (int, error)
}

// CounterStore holds the authoritative usage counters, one per (tenant, month).
type CounterStore interface {
	// Update runs fn with exclusive access to key's counter, creating it if needed,
	// and returns a copy of the counter after fn. All updates for one key are serialized.
	Update(ctx context.Context, key models.UsageKey, fn func(c *models.UsageCounter) error) (models.UsageCounter, error)

	// Keys lists the counters currently held.
	Keys() []models.UsageKey

	// Delete drops a counter. Later Updates start from zero.
	Delete(key models.UsageKey)
}

// LogEvent is a shared helper for security-relevant ratelimit log lines.
// It tags each line with the request id and a stable event name.
func LogEvent(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	attrs = append(attrs, "event", event)
	logger.InfoContext(ctx, event, attrs...)
}
