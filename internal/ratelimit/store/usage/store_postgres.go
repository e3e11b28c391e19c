package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mailguard/internal/ratelimit/models"
	"mailguard/pkg/platform/sentinel"
)

// PostgresUsageSink persists monthly usage in tenant_usage.
//
//	CREATE TABLE tenant_usage (
//	    tenant_id        TEXT        NOT NULL,
//	    period           CHAR(7)     NOT NULL,
//	    validation_count INTEGER     NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, period)
//	);
type PostgresUsageSink struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a PostgresUsageSink.
type Option func(*PostgresUsageSink)

// WithClock overrides the updated_at source.
func WithClock(now func() time.Time) Option {
	return func(s *PostgresUsageSink) {
		s.now = now
	}
}

func NewPostgresUsageSink(db *sql.DB, opts ...Option) *PostgresUsageSink {
	s := &PostgresUsageSink{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert is idempotent on (tenant_id, period) and never lowers a stored count,
// so out-of-order flushes from concurrent tasks are harmless.
func (s *PostgresUsageSink) Upsert(ctx context.Context, key models.UsageKey, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_usage (tenant_id, period, validation_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, period) DO UPDATE
		SET validation_count = GREATEST(tenant_usage.validation_count, EXCLUDED.validation_count),
		    updated_at = EXCLUDED.updated_at
	`, key.TenantID.String(), key.Period, count, s.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert tenant usage: %w", err)
	}
	return nil
}

func (s *PostgresUsageSink) Load(ctx context.Context, key models.UsageKey) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT validation_count FROM tenant_usage WHERE tenant_id = $1 AND period = $2
	`, key.TenantID.String(), key.Period).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load tenant usage: %w", err)
	}
	return count, nil
}
