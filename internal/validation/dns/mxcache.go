package dns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MXCache remembers whether a domain accepts mail. Get reports found=false on
// a miss; callers then ask DNS and Set the answer.
type MXCache interface {
	Get(ctx context.Context, domain string) (hasMX bool, found bool, err error)
	Set(ctx context.Context, domain string, hasMX bool) error
}

type mxEntry struct {
	hasMX     bool
	expiresAt time.Time
}

// MemoryMXCache is a process-local MXCache with a fixed TTL.
type MemoryMXCache struct {
	mu      sync.RWMutex
	entries map[string]mxEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryMXCache(ttl time.Duration) *MemoryMXCache {
	return &MemoryMXCache{entries: make(map[string]mxEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryMXCache) Get(_ context.Context, domain string) (bool, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[strings.ToLower(domain)]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return false, false, nil
	}
	return e.hasMX, true, nil
}

func (c *MemoryMXCache) Set(_ context.Context, domain string, hasMX bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// Expired entries are pruned on write; lookups never take the write lock.
	for d, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, d)
		}
	}
	c.entries[strings.ToLower(domain)] = mxEntry{hasMX: hasMX, expiresAt: now.Add(c.ttl)}
	return nil
}

// RedisMXCache shares MX answers across replicas as "1"/"0" strings.
type RedisMXCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisMXCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisMXCache {
	if prefix == "" {
		prefix = "mx:"
	}
	return &RedisMXCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisMXCache) Get(ctx context.Context, domain string) (bool, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+strings.ToLower(domain)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("mx cache get: %w", err)
	}
	return v == "1", true, nil
}

func (c *RedisMXCache) Set(ctx context.Context, domain string, hasMX bool) error {
	v := "0"
	if hasMX {
		v = "1"
	}
	if err := c.client.Set(ctx, c.prefix+strings.ToLower(domain), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("mx cache set: %w", err)
	}
	return nil
}
