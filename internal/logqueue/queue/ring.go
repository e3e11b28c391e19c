// Package queue provides the bounded per-tenant buffer behind the log queue.
package queue

import (
	"sync"
)

// Ring is a bounded, thread-safe FIFO. When full, the oldest entries are
// dropped to make room for new ones.
//
// Readers Peek a batch and Commit it once it is durably written, so a failed
// write leaves the batch queued. Every entry carries a sequence number; Commit
// takes the sequence after the last written entry, which stays correct even
// if pushes dropped some of the peeked entries in between.
type Ring[T any] struct {
	mu       sync.Mutex
	entries  []T
	head     int    // next write position
	tail     int    // next read position
	count    int
	capacity int
	tailSeq  uint64 // sequence number of entries[tail]

	// Stats
	dropped uint64
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 10000 // default
	}
	return &Ring[T]{
		entries:  make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends entries, dropping the oldest as needed, and returns how many were dropped.
func (r *Ring[T]) Push(entries ...T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for _, e := range entries {
		if r.count >= r.capacity {
			r.dropOldestLocked()
			dropped++
		}
		r.entries[r.head] = e
		r.head = (r.head + 1) % r.capacity
		r.count++
	}
	return dropped
}

func (r *Ring[T]) dropOldestLocked() {
	var zero T
	r.entries[r.tail] = zero
	r.tail = (r.tail + 1) % r.capacity
	r.tailSeq++
	r.count--
	r.dropped++
}

// Peek copies up to n of the oldest entries without removing them and returns
// the sequence number just past the last copied entry.
func (r *Ring[T]) Peek(n int) ([]T, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = min(n, r.count)
	if n <= 0 {
		return nil, r.tailSeq
	}
	out := make([]T, n)
	for i := range n {
		out[i] = r.entries[(r.tail+i)%r.capacity]
	}
	return out, r.tailSeq + uint64(n)
}

// Commit removes every entry with a sequence number below upTo. Entries that
// were already dropped are skipped.
func (r *Ring[T]) Commit(upTo uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for r.count > 0 && r.tailSeq < upTo {
		r.entries[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
		r.tailSeq++
		r.count--
	}
}

// Len returns the number of queued entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Dropped returns the total number of entries dropped for space.
func (r *Ring[T]) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
