package window

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementIfBelow increments KEYS[1] unless it already reached ARGV[1] and sets
// the ARGV[2] millisecond expiry on first write. Returns {allowed, count}.
var incrementIfBelow = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return {0, current}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current}
`)

// RedisWindowStore implements WindowStore on Redis so every replica shares a window.
type RedisWindowStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisWindowStore creates a store writing keys under prefix.
func NewRedisWindowStore(client redis.Scripter, prefix string) *RedisWindowStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisWindowStore{client: client, prefix: prefix}
}

// IncrementIfBelow runs the check-and-increment as one Lua script, so it is
// atomic across replicas.
func (s *RedisWindowStore) IncrementIfBelow(ctx context.Context, key string, limit int, ttl time.Duration) (int, bool, error) {
	res, err := incrementIfBelow.Run(ctx, s.client, []string{s.prefix + key}, limit, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis window increment: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("redis window increment: unexpected reply %v", res)
	}
	return int(res[1]), res[0] == 1, nil
}
