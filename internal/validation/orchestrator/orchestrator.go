// Package orchestrator runs the enabled checks for one address and folds
// their outcomes into ValidationResults.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mailguard/internal/validation/checks"
	"mailguard/internal/validation/metrics"
	"mailguard/internal/validation/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/email"
)

// DefaultBounds caps each concurrent check. Zero means the check relies on
// its own timeout (device) or does no I/O (ip). The mx bound covers the cache
// read plus the DNS query.
var DefaultBounds = map[models.CheckName]time.Duration{
	models.CheckDisposable: 400 * time.Millisecond,
	models.CheckMX:         700 * time.Millisecond,
	models.CheckSMTP:       600 * time.Millisecond,
	models.CheckCatchall:   600 * time.Millisecond,
}

// synchronous checks are cheap and run inline before the fan-out.
var synchronous = map[models.CheckName]bool{
	models.CheckSyntax:    true,
	models.CheckAlias:     true,
	models.CheckRoleEmail: true,
}

// Request is one address to validate.
type Request struct {
	TenantID        id.TenantID
	Email           string
	Toggles         models.Toggles
	FingerprintHash id.FingerprintHash
	IP              netip.Addr
	ASN             int
}

// Orchestrator owns the registered checks. It is safe for concurrent use.
type Orchestrator struct {
	checks  map[models.CheckName]checks.Check
	bounds  map[models.CheckName]time.Duration
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithBound overrides the time bound of one check.
func WithBound(name models.CheckName, d time.Duration) Option {
	return func(o *Orchestrator) {
		o.bounds[name] = d
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer("mailguard/validation")
	}
}

// New registers cs by name. A check that is enabled but not registered is
// skipped.
func New(cs []checks.Check, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		checks: make(map[models.CheckName]checks.Check, len(cs)),
		bounds: make(map[models.CheckName]time.Duration, len(DefaultBounds)),
		tracer: otel.Tracer("mailguard/validation"),
	}
	for _, c := range cs {
		o.checks[c.Name()] = c
	}
	for k, v := range DefaultBounds {
		o.bounds[k] = v
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type settled struct {
	name    models.CheckName
	result  models.CheckResult
	outcome checks.Outcome
}

// Run validates req.Email. It never fails: a check that errors, panics or
// overruns its bound is reported as passed with an error tag. Every started
// check settles before Run returns, and no check cancels another.
func (o *Orchestrator) Run(ctx context.Context, req Request) models.ValidationResults {
	ctx, span := o.tracer.Start(ctx, "validation.run",
		trace.WithAttributes(attribute.String("tenant_id", req.TenantID.String())))
	defer span.End()

	addr := email.Normalize(req.Email)
	local, domain, _ := email.Split(addr)
	in := checks.Input{
		Email:           addr,
		Local:           local,
		Domain:          domain,
		FingerprintHash: req.FingerprintHash,
		IP:              req.IP,
		ASN:             req.ASN,
	}

	done := make(map[models.CheckName]settled, len(models.AllChecks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range models.AllChecks {
		c, ok := o.checks[name]
		if !ok || !o.applies(name, req) {
			continue
		}
		if synchronous[name] {
			done[name] = o.runOne(ctx, c, in)
			continue
		}
		wg.Go(func() {
			s := o.runOne(ctx, c, in)
			mu.Lock()
			done[name] = s
			mu.Unlock()
		})
	}
	wg.Wait()

	results := models.ValidationResults{
		Email:   addr,
		Checks:  make(map[models.CheckName]models.CheckResult, len(done)),
		Signals: []models.Signal{},
	}
	for _, name := range models.AllChecks {
		s, ok := done[name]
		if !ok {
			continue
		}
		results.Checks[name] = s.result
		results.Signals = append(results.Signals, s.outcome.Signals...)
		if s.outcome.Device != nil {
			results.DeviceData = s.outcome.Device
		}
		if s.outcome.IP != nil {
			results.IPData = s.outcome.IP
		}
	}
	return results
}

func (o *Orchestrator) applies(name models.CheckName, req Request) bool {
	if !req.Toggles.Enabled(name) {
		return false
	}
	switch name {
	case models.CheckIP:
		return req.IP.IsValid()
	case models.CheckDevice:
		return !req.FingerprintHash.IsNil()
	}
	return true
}

// runOne executes c under its bound. The check runs on its own goroutine so
// a check that ignores ctx still cannot hold the request past the bound.
func (o *Orchestrator) runOne(ctx context.Context, c checks.Check, in checks.Input) settled {
	name := c.Name()
	ctx, span := o.tracer.Start(ctx, "check."+string(name))
	defer span.End()

	if bound := o.bounds[name]; bound > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bound)
		defer cancel()
	}

	type reply struct {
		out checks.Outcome
		err error
	}
	ch := make(chan reply, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := c.Run(ctx, in)
		ch <- reply{out: out, err: err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-ctx.Done():
		r = reply{err: ctx.Err()}
	}
	elapsed := time.Since(start)
	latencyMs := float64(elapsed.Microseconds()) / 1000

	if r.err != nil {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, "failed open")
		o.metrics.ObserveCheck(string(name), "error", elapsed.Seconds())
		if o.logger != nil {
			o.logger.WarnContext(ctx, "check failed open",
				"check", string(name),
				"duration_ms", elapsed.Milliseconds(),
				"error", r.err,
			)
		}
		return settled{
			name:   name,
			result: models.CheckResult{Pass: true, LatencyMs: latencyMs, Error: name.FailedTag()},
		}
	}

	span.SetAttributes(attribute.Bool("pass", r.out.Pass))
	result := "pass"
	if !r.out.Pass {
		result = "fail"
	}
	o.metrics.ObserveCheck(string(name), result, elapsed.Seconds())
	return settled{
		name:    name,
		outcome: r.out,
		result: models.CheckResult{
			Pass:      r.out.Pass,
			LatencyMs: latencyMs,
			Metadata:  r.out.Metadata,
		},
	}
}
