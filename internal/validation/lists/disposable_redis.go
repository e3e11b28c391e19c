package lists

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DisposableSet answers disposable-domain membership.
type DisposableSet interface {
	IsDisposable(ctx context.Context, domain string) (bool, error)
}

// RedisDisposableSet keeps the disposable domains in one Redis set so an
// operator can add entries without redeploying.
type RedisDisposableSet struct {
	client redis.Cmdable
	key    string
}

func NewRedisDisposableSet(client redis.Cmdable, key string) *RedisDisposableSet {
	if key == "" {
		key = "lists:disposable"
	}
	return &RedisDisposableSet{client: client, key: key}
}

// IsDisposable checks domain and its parents in one round trip.
func (s *RedisDisposableSet) IsDisposable(ctx context.Context, domain string) (bool, error) {
	suffixes := DomainSuffixes(domain)
	if len(suffixes) == 0 {
		return false, nil
	}
	cmds := make([]*redis.BoolCmd, len(suffixes))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, d := range suffixes {
			cmds[i] = p.SIsMember(ctx, s.key, d)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("disposable lookup: %w", err)
	}
	for _, c := range cmds {
		if c.Val() {
			return true, nil
		}
	}
	return false, nil
}

// Seed adds domains to the set. Existing members are kept.
func (s *RedisDisposableSet) Seed(ctx context.Context, domains []string) error {
	if len(domains) == 0 {
		return nil
	}
	members := make([]any, len(domains))
	for i, d := range domains {
		members[i] = d
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("seed disposable set: %w", err)
	}
	return nil
}
