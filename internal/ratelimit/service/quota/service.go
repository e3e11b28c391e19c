package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mailguard/internal/ratelimit/metrics"
	"mailguard/internal/ratelimit/models"
	"mailguard/internal/ratelimit/ports"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/platform/sentinel"
	"mailguard/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	CounterStore = ports.CounterStore
	UsageSink    = ports.UsageSink
)

const (
	defaultMonthlyLimit = 1000
	defaultFlushEvery   = 10
	defaultSinkTimeout  = 2 * time.Second
	hydrateBackoff      = 30 * time.Second
)

// Service tracks monthly validation usage per tenant.
//
// The in-memory counter is authoritative; the sink is written on the first
// increment of a month and every flushEvery increments after that. Flushes run
// off the request path and a failed flush is only logged: the next trigger
// carries the newer count.
type Service struct {
	counters     CounterStore
	sink         UsageSink
	defaultLimit int
	flushEvery   int
	sinkTimeout  time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	flushes sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaultLimit sets the monthly limit used for tenants without one.
func WithDefaultLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

func WithFlushEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.flushEvery = n
		}
	}
}

func WithSinkTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sinkTimeout = d
		}
	}
}

func New(counters CounterStore, sink UsageSink, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("usage sink is required")
	}

	svc := &Service{
		counters:     counters,
		sink:         sink,
		defaultLimit: defaultMonthlyLimit,
		flushEvery:   defaultFlushEvery,
		sinkTimeout:  defaultSinkTimeout,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CheckQuota reports whether tenantID may run another validation this month.
// A monthlyLimit of zero or less falls back to the default limit.
func (s *Service) CheckQuota(ctx context.Context, tenantID id.TenantID, monthlyLimit int) (*models.QuotaResult, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if monthlyLimit <= 0 {
		monthlyLimit = s.defaultLimit
	}

	now := requestcontext.Now(ctx)
	key := models.NewUsageKey(tenantID, now)
	counter, err := s.counters.Update(ctx, key, func(c *models.UsageCounter) error {
		s.hydrate(ctx, c, now)
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read usage counter")
	}

	result := models.NewQuotaResult(counter.Count, monthlyLimit, now)
	s.metrics.ObserveQuota(result.Allowed)
	if !result.Allowed {
		ports.LogEvent(ctx, s.logger, "quota_exceeded",
			"tenant_id", tenantID,
			"current", result.Current,
			"limit", result.Limit,
		)
	}
	return &result, nil
}

// Increment counts one validation for tenantID in the current month and
// schedules a sink flush when one is due.
func (s *Service) Increment(ctx context.Context, tenantID id.TenantID) (models.UsageCounter, error) {
	if tenantID.IsNil() {
		return models.UsageCounter{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}

	now := requestcontext.Now(ctx)
	key := models.NewUsageKey(tenantID, now)
	flush := false
	prevFlushed := 0
	counter, err := s.counters.Update(ctx, key, func(c *models.UsageCounter) error {
		s.hydrate(ctx, c, now)
		c.Count++
		// Unhydrated counters are not flushed: they may be far below the stored count.
		if c.Hydrated && c.NeedsFlush(s.flushEvery) {
			prevFlushed = c.LastFlushedCount
			c.LastFlushedCount = c.Count
			flush = true
		}
		return nil
	})
	if err != nil {
		return models.UsageCounter{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to increment usage counter")
	}

	if flush {
		detached := requestcontext.Detach(ctx)
		s.flushes.Go(func() {
			s.flush(detached, counter.Key, counter.Count, prevFlushed)
		})
	}
	return counter, nil
}

// FlushAll writes every counter with unflushed increments to the sink and
// drops counters from past months once they are stored. Used by the periodic
// sweep and at shutdown.
func (s *Service) FlushAll(ctx context.Context) error {
	current := models.PeriodOf(requestcontext.Now(ctx))
	var errs []error
	keys := s.counters.Keys()
	for _, key := range keys {
		var pending int
		counter, err := s.counters.Update(ctx, key, func(c *models.UsageCounter) error {
			if c.Hydrated && c.Count > c.LastFlushedCount {
				pending = c.Count
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pending > 0 {
			if err := s.upsert(ctx, key, pending); err != nil {
				errs = append(errs, fmt.Errorf("flush %s: %w", key, err))
				continue
			}
			_, _ = s.counters.Update(ctx, key, func(c *models.UsageCounter) error {
				c.LastFlushedCount = max(c.LastFlushedCount, pending)
				return nil
			})
		}
		if key.Period < current && counter.Hydrated {
			s.counters.Delete(key)
		}
	}
	s.metrics.SetTrackedCounters(len(s.counters.Keys()))
	return errors.Join(errs...)
}

// Run flushes all counters every interval until ctx is canceled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.FlushAll(ctx); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "usage sweep incomplete", "error", err)
			}
		}
	}
}

// Wait blocks until in-flight flushes finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.flushes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hydrate seeds c from the sink the first time a key is touched. A sink
// failure leaves the counter unhydrated and is retried after a backoff; the
// request proceeds on the local count.
func (s *Service) hydrate(ctx context.Context, c *models.UsageCounter, now time.Time) {
	if c.Hydrated {
		return
	}
	if !c.HydrateAttemptedAt.IsZero() && now.Sub(c.HydrateAttemptedAt) < hydrateBackoff {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
	defer cancel()
	stored, err := s.sink.Load(loadCtx, c.Key)
	switch {
	case err == nil:
		c.Seed(stored)
	case errors.Is(err, sentinel.ErrNotFound):
		c.Seed(0)
	default:
		c.HydrateAttemptedAt = now
		if s.logger != nil {
			s.logger.WarnContext(ctx, "usage hydrate failed", "key", c.Key.String(), "error", err)
		}
	}
}

func (s *Service) flush(ctx context.Context, key models.UsageKey, count, prevFlushed int) {
	if err := s.upsert(ctx, key, count); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "usage flush failed", "key", key.String(), "count", count, "error", err)
		}
		// Unmark so the next increment or sweep retries.
		_, _ = s.counters.Update(ctx, key, func(c *models.UsageCounter) error {
			if c.LastFlushedCount == count {
				c.LastFlushedCount = prevFlushed
			}
			return nil
		})
	}
}

func (s *Service) upsert(ctx context.Context, key models.UsageKey, count int) error {
	upsertCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
	defer cancel()
	err := s.sink.Upsert(upsertCtx, key, count)
	s.metrics.ObserveQuotaFlush(err)
	return err
}
