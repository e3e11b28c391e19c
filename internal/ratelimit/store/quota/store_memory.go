package quota

import (
	"context"
	"sync"

	"mailguard/internal/ratelimit/models"
)

// InMemoryCounterStore serializes every update to a (tenant, month) counter
// through that counter's own mutex. Counters for different keys never contend.
type InMemoryCounterStore struct {
	counters sync.Map // models.UsageKey -> *counterEntry
}

type counterEntry struct {
	mu      sync.Mutex
	counter models.UsageCounter
}

func New() *InMemoryCounterStore {
	return &InMemoryCounterStore{}
}

func (s *InMemoryCounterStore) Update(_ context.Context, key models.UsageKey, fn func(c *models.UsageCounter) error) (models.UsageCounter, error) {
	v, _ := s.counters.LoadOrStore(key, &counterEntry{counter: models.UsageCounter{Key: key}})
	e := v.(*counterEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.counter
	if err := fn(&working); err != nil {
		return e.counter, err
	}
	e.counter = working
	return working, nil
}

func (s *InMemoryCounterStore) Keys() []models.UsageKey {
	var keys []models.UsageKey
	s.counters.Range(func(k, _ any) bool {
		keys = append(keys, k.(models.UsageKey))
		return true
	})
	return keys
}

func (s *InMemoryCounterStore) Delete(key models.UsageKey) {
	s.counters.Delete(key)
}
