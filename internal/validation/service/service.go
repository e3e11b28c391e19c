// Package service is the validation use case: admit the request against the
// tenant's rate limit and quota, run the checks, score them, and hand the
// bookkeeping to background workers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mailguard/internal/fingerprint"
	fpmodels "mailguard/internal/fingerprint/models"
	lqmodels "mailguard/internal/logqueue/models"
	rlmodels "mailguard/internal/ratelimit/models"
	"mailguard/internal/risk"
	tmodels "mailguard/internal/tenant/models"
	"mailguard/internal/validation/metrics"
	"mailguard/internal/validation/models"
	"mailguard/internal/validation/orchestrator"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/email"
	"mailguard/pkg/platform/background"
	"mailguard/pkg/platform/privacy"
	"mailguard/pkg/requestcontext"
)

// TenantConfigs resolves the calling tenant.
type TenantConfigs interface {
	Get(ctx context.Context, tenantID id.TenantID) (*tmodels.TenantConfig, error)
}

// RateLimiter is the fixed-window gate.
type RateLimiter interface {
	Check(ctx context.Context, tenantID id.TenantID, keyType id.KeyType) (*rlmodels.RateLimitResult, error)
}

// QuotaCounter is the monthly usage gate.
type QuotaCounter interface {
	CheckQuota(ctx context.Context, tenantID id.TenantID, monthlyLimit int) (*rlmodels.QuotaResult, error)
	Increment(ctx context.Context, tenantID id.TenantID) (rlmodels.UsageCounter, error)
}

// Checker runs the check battery.
type Checker interface {
	Run(ctx context.Context, req orchestrator.Request) models.ValidationResults
}

// LogQueue accepts validation logs for batched persistence.
type LogQueue interface {
	Enqueue(ctx context.Context, tenantID id.TenantID, logs ...lqmodels.ValidationLog) (lqmodels.EnqueueResult, error)
}

// DeviceRecorder stores a signup against a device fingerprint.
type DeviceRecorder interface {
	Record(ctx context.Context, hash id.FingerprintHash, address, ip string, tenantID id.TenantID) error
}

// Dispatcher runs work after the response is written.
type Dispatcher interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Request is one validation call after transport decoding.
type Request struct {
	Email           string
	Fingerprint     *fpmodels.Descriptor
	FingerprintHash string
	IP              string
	ASN             int
	Country         string
	Validations     models.Toggles
}

// Admission is the result of the gates. The request may proceed only when
// both RateLimit.Allowed and Quota.Allowed hold.
type Admission struct {
	Tenant    *tmodels.TenantConfig
	KeyType   id.KeyType
	RateLimit *rlmodels.RateLimitResult
	Quota     *rlmodels.QuotaResult
}

// Admitted reports whether both gates let the request through.
func (a *Admission) Admitted() bool {
	return a.RateLimit.Allowed && a.Quota.Allowed
}

type Service struct {
	tenants    TenantConfigs
	limiter    RateLimiter
	quota      QuotaCounter
	checker    Checker
	policy     risk.Policy
	logs       LogQueue
	devices    DeviceRecorder
	dispatcher Dispatcher
	hasher     *privacy.EmailHasher
	sealer     *privacy.EmailSealer
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithPolicy(p risk.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogQueue enables validation logs.
func WithLogQueue(q LogQueue) Option {
	return func(s *Service) {
		s.logs = q
	}
}

// WithDeviceRecorder enables recording signups against fingerprints.
func WithDeviceRecorder(r DeviceRecorder) Option {
	return func(s *Service) {
		s.devices = r
	}
}

// WithEmailSealer stores an encrypted copy of each address in its log.
func WithEmailSealer(sealer *privacy.EmailSealer) Option {
	return func(s *Service) {
		s.sealer = sealer
	}
}

func New(
	tenants TenantConfigs,
	limiter RateLimiter,
	quota QuotaCounter,
	checker Checker,
	dispatcher Dispatcher,
	hasher *privacy.EmailHasher,
	opts ...Option,
) (*Service, error) {
	switch {
	case tenants == nil:
		return nil, errors.New("tenant configs are required")
	case limiter == nil:
		return nil, errors.New("rate limiter is required")
	case quota == nil:
		return nil, errors.New("quota counter is required")
	case checker == nil:
		return nil, errors.New("checker is required")
	case dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case hasher == nil:
		return nil, errors.New("email hasher is required")
	}
	s := &Service{
		tenants:    tenants,
		limiter:    limiter,
		quota:      quota,
		checker:    checker,
		dispatcher: dispatcher,
		hasher:     hasher,
		policy:     risk.ThresholdPolicy{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Admit resolves the tenant and runs the rate and quota gates concurrently.
// A denial is not an error: callers inspect Admitted and the two results.
func (s *Service) Admit(ctx context.Context, tenantID id.TenantID, keyType id.KeyType) (*Admission, error) {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	a := &Admission{Tenant: tenant, KeyType: keyType}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.limiter.Check(gctx, tenantID, keyType)
		a.RateLimit = res
		return err
	})
	g.Go(func() error {
		res, err := s.quota.CheckQuota(gctx, tenantID, tenant.Entitlements.ValidationsLimit)
		a.Quota = res
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate runs the checks for an admitted request and returns the verdict.
// Usage, the validation log and the device signup are recorded afterwards
// on the dispatcher; their failures never reach the caller.
func (s *Service) Validate(ctx context.Context, a *Admission, req Request) (*models.Response, error) {
	start := time.Now()
	if a == nil || !a.Admitted() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "validate called without admission")
	}
	address := email.Normalize(req.Email)
	if address == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	hash, err := resolveFingerprint(req)
	if err != nil {
		return nil, err
	}
	var ip netip.Addr
	if req.IP != "" {
		if ip, err = netip.ParseAddr(req.IP); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "ip must be an IPv4 or IPv6 address")
		}
	}

	tenant := a.Tenant
	results := s.checker.Run(ctx, orchestrator.Request{
		TenantID:        tenant.ID,
		Email:           address,
		Toggles:         models.MergeToggles(models.DefaultToggles(), tenant.Validations, req.Validations),
		FingerprintHash: hash,
		IP:              ip,
		ASN:             req.ASN,
	})
	results = risk.ApplyOverrides(results, address, tenant.Whitelist, tenant.Blacklist)
	assessment := s.policy.Assess(results, tenant.RiskSettings())
	s.metrics.ObserveRecommendation(string(assessment.Recommendation))

	resp := &models.Response{
		Email:          address,
		Recommendation: assessment.Recommendation,
		Score:          assessment.Score,
		Signals:        results.Signals,
		Checks:         results.Checks,
		IPData:         results.IPData,
		Metadata: models.ResponseMetadata{
			FingerprintID: hash,
			DecidedBy:     assessment.DecidedBy,
			Quota: models.QuotaSnapshot{
				Current: a.Quota.Current,
				Limit:   a.Quota.Limit,
				ResetAt: a.Quota.ResetAt.Unix(),
			},
		},
	}
	if results.DeviceData != nil {
		prev := results.DeviceData.PreviousSignups
		resp.Metadata.PreviousSignups = &prev
	}
	resp.Metadata.LatencyMs = time.Since(start).Milliseconds()

	s.dispatch(ctx, tenant.ID, req, resp, hash)
	return resp, nil
}

// RecordDevice stores a signup for a fingerprint outside a validation, for
// callers that confirm the signup later.
func (s *Service) RecordDevice(ctx context.Context, tenantID id.TenantID, hash id.FingerprintHash, address, ip string) error {
	if s.devices == nil {
		return dErrors.New(dErrors.CodeUnavailable, "device tracking is disabled")
	}
	if _, err := s.tenants.Get(ctx, tenantID); err != nil {
		return err
	}
	if ip != "" {
		if _, err := netip.ParseAddr(ip); err != nil {
			return dErrors.New(dErrors.CodeValidation, "ip must be an IPv4 or IPv6 address")
		}
	}
	return s.devices.Record(ctx, hash, address, ip, tenantID)
}

func (s *Service) dispatch(ctx context.Context, tenantID id.TenantID, req Request, resp *models.Response, hash id.FingerprintHash) {
	s.submit(ctx, "quota.increment", func(ctx context.Context) error {
		_, err := s.quota.Increment(ctx, tenantID)
		return err
	})

	if s.logs != nil {
		log, err := s.buildLog(ctx, tenantID, req, resp, hash)
		if err != nil {
			s.logger.WarnContext(ctx, "validation log not built", "tenant_id", tenantID.String(), "error", err)
		} else {
			s.submit(ctx, "logqueue.enqueue", func(ctx context.Context) error {
				_, err := s.logs.Enqueue(ctx, tenantID, log)
				return err
			})
		}
	}

	if s.devices != nil && !hash.IsNil() {
		address, ip := resp.Email, req.IP
		s.submit(ctx, "fingerprint.record", func(ctx context.Context) error {
			return s.devices.Record(ctx, hash, address, ip, tenantID)
		})
	}
}

// submit hands fn to the dispatcher. A full inbox is counted by the
// dispatcher's drop hook; only the shutdown rejection is counted here.
func (s *Service) submit(ctx context.Context, name string, fn func(ctx context.Context) error) {
	err := s.dispatcher.Submit(ctx, name, fn)
	if errors.Is(err, background.ErrStopped) {
		s.logger.WarnContext(ctx, "side effect dropped after shutdown", "task", name)
		s.metrics.IncDroppedEffects()
	}
}

func (s *Service) buildLog(ctx context.Context, tenantID id.TenantID, req Request, resp *models.Response, hash id.FingerprintHash) (lqmodels.ValidationLog, error) {
	log := lqmodels.ValidationLog{
		ID:              uuid.New(),
		TenantID:        tenantID,
		EmailHash:       s.hasher.Hash(resp.Email),
		Domain:          email.Domain(resp.Email),
		Checks:          resp.Checks,
		Signals:         resp.Signals,
		Score:           resp.Score,
		Recommendation:  resp.Recommendation,
		IP:              privacy.AnonymizeIP(req.IP),
		ASN:             req.ASN,
		Country:         req.Country,
		FingerprintHash: hash,
		LatencyMs:       resp.Metadata.LatencyMs,
		CreatedAt:       requestcontext.Now(ctx).UTC(),
	}
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(resp.Email)
		if err != nil {
			return lqmodels.ValidationLog{}, err
		}
		log.EmailSealed = sealed
	}
	ua := requestcontext.UserAgent(ctx)
	if req.Fingerprint != nil && req.Fingerprint.UserAgent != "" {
		ua = req.Fingerprint.UserAgent
	}
	if ua != "" {
		info := fingerprint.ParseDeviceInfo(ua)
		log.Device = &info
	}
	return log, nil
}

// resolveFingerprint prefers an explicit hash and falls back to hashing the
// descriptor.
func resolveFingerprint(req Request) (id.FingerprintHash, error) {
	if req.FingerprintHash != "" {
		return id.ParseFingerprintHash(req.FingerprintHash)
	}
	if req.Fingerprint != nil {
		return fingerprint.ComputeHash(*req.Fingerprint), nil
	}
	return "", nil
}
