package window

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const sweepEvery = 1024

// InMemoryWindowStore implements WindowStore with one lock-free counter per key.
// It is process-local; use RedisWindowStore when several replicas share limits.
type InMemoryWindowStore struct {
	counters sync.Map // key -> *counter
	calls    atomic.Uint64
	now      func() time.Time
}

type counter struct {
	count     atomic.Int64
	expiresAt time.Time
}

// NewInMemoryWindowStore creates an empty store.
func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{now: time.Now}
}

// IncrementIfBelow increments key when it is below limit. Concurrent callers on
// the same key race on a compare-and-swap, so no increment is lost and the
// count never passes limit.
func (s *InMemoryWindowStore) IncrementIfBelow(_ context.Context, key string, limit int, ttl time.Duration) (int, bool, error) {
	now := s.now()
	if s.calls.Add(1)%sweepEvery == 0 {
		s.sweep(now)
	}

	v, _ := s.counters.LoadOrStore(key, &counter{expiresAt: now.Add(ttl)})
	c := v.(*counter)
	for {
		cur := c.count.Load()
		if cur >= int64(limit) {
			return int(cur), false, nil
		}
		if c.count.CompareAndSwap(cur, cur+1) {
			return int(cur + 1), true, nil
		}
	}
}

// Count returns the current count for key (tests, diagnostics).
func (s *InMemoryWindowStore) Count(key string) int {
	if v, ok := s.counters.Load(key); ok {
		return int(v.(*counter).count.Load())
	}
	return 0
}

// sweep drops counters whose TTL has passed. Window keys embed the window
// index, so an expired key is never written again.
func (s *InMemoryWindowStore) sweep(now time.Time) {
	s.counters.Range(func(k, v any) bool {
		if now.After(v.(*counter).expiresAt) {
			s.counters.Delete(k)
		}
		return true
	})
}
