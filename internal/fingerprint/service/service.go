package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mailguard/internal/fingerprint/metrics"
	"mailguard/internal/fingerprint/models"
	"mailguard/internal/fingerprint/ports"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/email"
	"mailguard/pkg/platform/privacy"
)

const defaultTimeout = 300 * time.Millisecond

// Service bounds fingerprint store calls and normalizes their inputs.
type Service struct {
	store   ports.Store
	backend string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithTimeout bounds each Check. Record runs off the request path and is
// bounded by its caller.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBackendName labels metrics with the configured backend.
func WithBackendName(name string) Option {
	return func(s *Service) {
		s.backend = name
	}
}

func New(store ports.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("fingerprint store is required")
	}
	svc := &Service{
		store:   store,
		backend: "unknown",
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check reports what hash's history says about address.
func (s *Service) Check(ctx context.Context, hash id.FingerprintHash, address string) (models.DeviceData, error) {
	if hash.IsNil() {
		return models.UnknownDevice(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	data, err := s.store.Check(ctx, hash, email.Normalize(address))
	s.metrics.ObserveStore(s.backend, "check", start, err)
	if err != nil {
		return models.DeviceData{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "fingerprint lookup failed")
	}
	return data, nil
}

// Record adds a signup by address from tenantID to hash's history.
func (s *Service) Record(ctx context.Context, hash id.FingerprintHash, address, ip string, tenantID id.TenantID) error {
	if hash.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "fingerprint hash is required")
	}
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	normalized := email.Normalize(address)
	if normalized == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}

	start := time.Now()
	err := s.store.Record(ctx, hash, normalized, ip, tenantID)
	s.metrics.ObserveStore(s.backend, "record", start, err)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "fingerprint record failed",
				"fingerprint", hash.String(),
				"email", privacy.RedactEmail(normalized),
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "fingerprint record failed")
	}
	return nil
}
