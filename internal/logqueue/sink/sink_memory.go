// Package sink holds the validation log destinations.
package sink

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"mailguard/internal/logqueue/models"
)

// MemorySink keeps logs in process, deduplicated by id. Used when no durable
// sink is configured and in tests.
type MemorySink struct {
	mu   sync.RWMutex
	logs []models.ValidationLog
	seen map[uuid.UUID]struct{}
}

func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[uuid.UUID]struct{})}
}

func (s *MemorySink) WriteBatch(_ context.Context, logs []models.ValidationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range logs {
		if _, ok := s.seen[l.ID]; ok {
			continue
		}
		s.seen[l.ID] = struct{}{}
		s.logs = append(s.logs, l)
	}
	return nil
}

// Logs returns a copy of everything written.
func (s *MemorySink) Logs() []models.ValidationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs)
}
