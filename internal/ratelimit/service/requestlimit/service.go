package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mailguard/internal/ratelimit/metrics"
	"mailguard/internal/ratelimit/models"
	"mailguard/internal/ratelimit/ports"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/platform/circuit"
	"mailguard/pkg/requestcontext"
)

// Type aliases for interfaces from ports package.
// This allows external packages to use these types without importing ports directly.
type (
	WindowStore = ports.WindowStore
)

const (
	defaultWindow      = time.Minute
	defaultGrace       = 10 * time.Second
	defaultClientLimit = 60
	defaultServerLimit = 600
)

// Service enforces a fixed-window request limit per tenant and key type.
type Service struct {
	windows     WindowStore
	fallback    WindowStore
	breaker     *circuit.Breaker
	window      time.Duration
	grace       time.Duration
	clientLimit int
	serverLimit int
	logger      *slog.Logger
	metrics     *metrics.Metrics
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

// WithWindow sets the window length and the extra TTL kept on window counters.
func WithWindow(window, grace time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
		if grace >= 0 {
			s.grace = grace
		}
	}
}

// WithLimits sets requests per window for client (browser) and server keys.
func WithLimits(client, server int) Option {
	return func(s *Service) {
		if client > 0 {
			s.clientLimit = client
		}
		if server > 0 {
			s.serverLimit = server
		}
	}
}

// WithFallback serves decisions from a process-local store while the primary
// store is failing. The breaker decides when to stop calling the primary.
func WithFallback(store WindowStore, breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.fallback = store
		s.breaker = breaker
	}
}

func New(windows WindowStore, opts ...Option) (*Service, error) {
	if windows == nil {
		return nil, errors.New("window store is required")
	}

	svc := &Service{
		windows:     windows,
		window:      defaultWindow,
		grace:       defaultGrace,
		clientLimit: defaultClientLimit,
		serverLimit: defaultServerLimit,
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.fallback != nil && svc.breaker == nil {
		svc.breaker = circuit.New("ratelimit")
	}
	return svc, nil
}

// LimitFor returns the per-window limit for keyType.
func (s *Service) LimitFor(keyType id.KeyType) int {
	if keyType == id.KeyTypeClient {
		return s.clientLimit
	}
	return s.serverLimit
}

// Check counts one request for tenantID in the current window. A request that
// finds the window full is denied and not counted.
func (s *Service) Check(ctx context.Context, tenantID id.TenantID, keyType id.KeyType) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)
	limit := s.LimitFor(keyType)

	w, err := models.NewWindow(tenantID, keyType, s.window, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid rate limit identity")
	}

	count, allowed, degraded, err := s.increment(ctx, w.Key, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   w.End,
		Degraded:  degraded,
	}
	if !allowed {
		result.RetryAfter = retryAfterSeconds(w.End.Sub(now))
		ports.LogEvent(ctx, s.logger, "rate_limit_exceeded",
			"tenant_id", tenantID,
			"key_type", keyType,
			"limit", limit,
			"window_seconds", int(s.window.Seconds()),
		)
	}
	s.metrics.ObserveRateLimit(keyType.String(), allowed)
	return result, nil
}

func (s *Service) increment(ctx context.Context, key string, limit int) (count int, allowed, degraded bool, err error) {
	ttl := s.window + s.grace
	if s.fallback == nil {
		count, allowed, err = s.windows.IncrementIfBelow(ctx, key, limit, ttl)
		return count, allowed, false, err
	}

	if s.breaker.Allow() {
		count, allowed, err = s.windows.IncrementIfBelow(ctx, key, limit, ttl)
		if err == nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
				s.logger.InfoContext(ctx, "rate limit store recovered")
			}
			return count, allowed, false, nil
		}
		if _, change := s.breaker.RecordFailure(); change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "rate limit store failing, using local fallback", "error", err)
		}
	}

	count, allowed, err = s.fallback.IncrementIfBelow(ctx, key, limit, ttl)
	return count, allowed, true, err
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(1, secs)
}
