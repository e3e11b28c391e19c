package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mailguard/internal/logqueue/metrics"
	"mailguard/internal/logqueue/models"
	"mailguard/internal/logqueue/ports"
	"mailguard/internal/logqueue/queue"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/requestcontext"
)

const (
	defaultMaxSize      = 10000
	defaultBatchSize    = 100
	defaultFlushTimeout = 30 * time.Second
)

// Service buffers validation logs per tenant and writes them to the sink in batches.
//
// Each tenant has its own bounded queue and flush latch; tenants never block
// each other. Entries leave a queue only after the sink accepts their batch.
type Service struct {
	sink         ports.Sink
	maxSize      int
	batchSize    int
	flushTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	tenants sync.Map // id.TenantID -> *tenantQueue
	flushes sync.WaitGroup
}

type tenantQueue struct {
	logs     *queue.Ring[models.ValidationLog]
	flushing atomic.Bool
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

// WithMaxSize caps each tenant queue. Past the cap the oldest logs are dropped.
func WithMaxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushTimeout bounds the background flush that follows an enqueue.
func WithFlushTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushTimeout = d
		}
	}
}

func New(sink ports.Sink, opts ...Option) (*Service, error) {
	if sink == nil {
		return nil, errors.New("log sink is required")
	}
	svc := &Service{
		sink:         sink,
		maxSize:      defaultMaxSize,
		batchSize:    defaultBatchSize,
		flushTimeout: defaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) queueFor(tenantID id.TenantID) *tenantQueue {
	if v, ok := s.tenants.Load(tenantID); ok {
		return v.(*tenantQueue)
	}
	v, _ := s.tenants.LoadOrStore(tenantID, &tenantQueue{logs: queue.NewRing[models.ValidationLog](s.maxSize)})
	return v.(*tenantQueue)
}

// Enqueue appends logs to tenantID's queue and starts a background flush.
func (s *Service) Enqueue(ctx context.Context, tenantID id.TenantID, logs ...models.ValidationLog) (models.EnqueueResult, error) {
	if tenantID.IsNil() {
		return models.EnqueueResult{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}

	q := s.queueFor(tenantID)
	dropped := q.logs.Push(logs...)
	depth := q.logs.Len()
	if dropped > 0 && s.logger != nil {
		s.logger.WarnContext(ctx, "validation log queue full, dropped oldest",
			"tenant_id", tenantID,
			"dropped", dropped,
			"max_size", s.maxSize,
		)
	}
	s.metrics.ObserveEnqueue(tenantID.String(), len(logs), dropped, depth)

	detached := requestcontext.Detach(ctx)
	s.flushes.Go(func() {
		flushCtx, cancel := context.WithTimeout(detached, s.flushTimeout)
		defer cancel()
		// Failures are logged inside Flush; the logs stay queued for the sweep.
		_, _ = s.Flush(flushCtx, tenantID)
	})

	return models.EnqueueResult{Queued: len(logs), TotalQueue: depth}, nil
}

// Flush writes tenantID's queue to the sink in batches. A flush already in
// progress for the tenant makes this call a no-op that reports the current
// depth. The first rejected batch stops the flush and stays queued with
// everything behind it.
func (s *Service) Flush(ctx context.Context, tenantID id.TenantID) (models.FlushResult, error) {
	v, ok := s.tenants.Load(tenantID)
	if !ok {
		return models.FlushResult{}, nil
	}
	q := v.(*tenantQueue)

	total := 0
	for {
		if !q.flushing.CompareAndSwap(false, true) {
			return models.FlushResult{Flushed: total, RemainingQueue: q.logs.Len()}, nil
		}
		result, err := s.drain(ctx, tenantID, q)
		q.flushing.Store(false)
		total += result.Flushed
		result.Flushed = total
		// Logs pushed after the last empty peek saw the latch held and left
		// them to this flush.
		if err != nil || q.logs.Len() == 0 || ctx.Err() != nil {
			return result, err
		}
	}
}

func (s *Service) drain(ctx context.Context, tenantID id.TenantID, q *tenantQueue) (models.FlushResult, error) {
	flushed := 0
	for {
		if err := ctx.Err(); err != nil {
			return s.finishFlush(ctx, tenantID, q, flushed, err)
		}
		batch, next := q.logs.Peek(s.batchSize)
		if len(batch) == 0 {
			return s.finishFlush(ctx, tenantID, q, flushed, nil)
		}
		if err := s.sink.WriteBatch(ctx, batch); err != nil {
			return s.finishFlush(ctx, tenantID, q, flushed, err)
		}
		q.logs.Commit(next)
		flushed += len(batch)
	}
}

func (s *Service) finishFlush(ctx context.Context, tenantID id.TenantID, q *tenantQueue, flushed int, err error) (models.FlushResult, error) {
	result := models.FlushResult{Flushed: flushed, RemainingQueue: q.logs.Len()}
	s.metrics.ObserveFlush(tenantID.String(), flushed, result.RemainingQueue, err != nil)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "validation log flush stopped",
				"tenant_id", tenantID,
				"flushed", flushed,
				"remaining", result.RemainingQueue,
				"error", err,
			)
		}
		return result, dErrors.Wrap(err, dErrors.CodeUnavailable, "log sink rejected batch")
	}
	return result, nil
}

// Sweep flushes every known tenant queue and returns the combined errors.
func (s *Service) Sweep(ctx context.Context) error {
	var errs []error
	for _, tenantID := range s.Tenants() {
		if _, err := s.Flush(ctx, tenantID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run sweeps every interval until ctx is canceled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "validation log sweep incomplete", "error", err)
			}
		}
	}
}

// Tenants lists tenants that have a queue.
func (s *Service) Tenants() []id.TenantID {
	var out []id.TenantID
	s.tenants.Range(func(k, _ any) bool {
		out = append(out, k.(id.TenantID))
		return true
	})
	return out
}

// Depth returns the number of logs queued for tenantID.
func (s *Service) Depth(tenantID id.TenantID) int {
	if v, ok := s.tenants.Load(tenantID); ok {
		return v.(*tenantQueue).logs.Len()
	}
	return 0
}

// Wait blocks until background flushes finish or ctx is done.
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
