package usage

import (
	"context"
	"sync"

	"mailguard/internal/ratelimit/models"
	"mailguard/pkg/platform/sentinel"
)

// InMemoryUsageSink keeps usage counts in a map. Used when no database is configured and in tests.
type InMemoryUsageSink struct {
	mu     sync.RWMutex
	counts map[models.UsageKey]int
}

func NewInMemoryUsageSink() *InMemoryUsageSink {
	return &InMemoryUsageSink{counts: make(map[models.UsageKey]int)}
}

func (s *InMemoryUsageSink) Upsert(_ context.Context, key models.UsageKey, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count > s.counts[key] {
		s.counts[key] = count
	}
	return nil
}

func (s *InMemoryUsageSink) Load(_ context.Context, key models.UsageKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, ok := s.counts[key]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return count, nil
}
