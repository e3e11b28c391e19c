package sink

import (
	"context"
	"fmt"
	"log/slog"

	"mailguard/internal/logqueue/models"
	"mailguard/internal/logqueue/ports"
	"mailguard/pkg/platform/circuit"
	"mailguard/pkg/platform/sentinel"
)

// BreakerSink stops calling an unhealthy sink until the breaker's cooldown
// passes. Rejected batches stay queued, so nothing is lost while it is open.
type BreakerSink struct {
	next    ports.Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerSink(next ports.Sink, breaker *circuit.Breaker, logger *slog.Logger) *BreakerSink {
	return &BreakerSink{next: next, breaker: breaker, logger: logger}
}

func (s *BreakerSink) WriteBatch(ctx context.Context, logs []models.ValidationLog) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("log sink circuit %s open: %w", s.breaker.Name(), sentinel.ErrUnavailable)
	}
	if err := s.next.WriteBatch(ctx, logs); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "log sink circuit opened", "breaker", s.breaker.Name(), "error", err)
		}
		return err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "log sink circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}
