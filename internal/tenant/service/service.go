// Package service serves tenant configs to the validation path through a
// short-lived in-process cache.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	tenantmetrics "mailguard/internal/tenant/metrics"
	"mailguard/internal/tenant/models"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/platform/sentinel"
	"mailguard/pkg/requestcontext"
)

const defaultCacheTTL = 30 * time.Second

// Store is the source of truth for tenant configs. A missing tenant is
// sentinel.ErrNotFound.
type Store interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.TenantConfig, error)
}

type cached struct {
	cfg       *models.TenantConfig
	fetchedAt time.Time
}

// Service reads tenant configs. Entries younger than the TTL are served from
// memory; an older entry is still served when the store is failing.
type Service struct {
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics

	mu    sync.RWMutex
	cache map[id.TenantID]cached
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCacheTTL sets how long a config is trusted. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		s.ttl = d
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("tenant store is required")
	}
	s := &Service{
		store: store,
		ttl:   defaultCacheTTL,
		cache: make(map[id.TenantID]cached),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns tenantID's config. Unknown and inactive tenants are
// CodeTenantNotFound.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID) (*models.TenantConfig, error) {
	start := time.Now()
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	now := requestcontext.Now(ctx)

	s.mu.RLock()
	entry, ok := s.cache[tenantID]
	s.mu.RUnlock()
	if ok && now.Sub(entry.fetchedAt) < s.ttl {
		s.metrics.ObserveGetTenant(start, "hit")
		return active(entry.cfg)
	}

	cfg, err := s.store.FindByID(ctx, tenantID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.Invalidate(tenantID)
		s.metrics.ObserveGetTenant(start, "not_found")
		return nil, dErrors.New(dErrors.CodeTenantNotFound, "unknown tenant")
	case err != nil:
		s.metrics.ObserveGetTenant(start, "error")
		if ok {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "tenant store failed, serving stale config",
					"tenant_id", tenantID.String(),
					"age_ms", now.Sub(entry.fetchedAt).Milliseconds(),
					"error", err,
				)
			}
			return active(entry.cfg)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}

	if s.ttl > 0 {
		s.mu.Lock()
		s.cache[tenantID] = cached{cfg: cfg, fetchedAt: now}
		s.mu.Unlock()
	}
	s.metrics.ObserveGetTenant(start, "miss")
	return active(cfg)
}

// Invalidate drops a cached config so the next Get reads the store.
func (s *Service) Invalidate(tenantID id.TenantID) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.mu.Unlock()
}

func active(cfg *models.TenantConfig) (*models.TenantConfig, error) {
	if !cfg.IsActive() {
		return nil, dErrors.New(dErrors.CodeTenantNotFound, "tenant is inactive")
	}
	return cfg, nil
}
