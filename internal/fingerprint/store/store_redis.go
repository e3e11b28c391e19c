package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mailguard/internal/fingerprint/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/requestcontext"
)

const (
	fieldFirstSeen   = "first_seen"
	fieldLastSeen    = "last_seen"
	fieldLastIP      = "last_ip"
	fieldSignupCount = "signup_count"
)

// RedisStore keeps a record as a hash plus two sets. Record applies every
// change in one MULTI/EXEC, so concurrent signups never lose an update.
//
// Keys share a {hash} tag so they land in one cluster slot:
//
//	fp:{<hash>}           first_seen, last_seen, last_ip, signup_count
//	fp:{<hash>}:emails    set of emails
//	fp:{<hash>}:projects  set of tenant ids
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a store. A zero ttl keeps records forever.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func recordKey(hash id.FingerprintHash) string   { return "fp:{" + hash.String() + "}" }
func emailsKey(hash id.FingerprintHash) string   { return recordKey(hash) + ":emails" }
func projectsKey(hash id.FingerprintHash) string { return recordKey(hash) + ":projects" }

func (s *RedisStore) Check(ctx context.Context, hash id.FingerprintHash, email string) (models.DeviceData, error) {
	var fields *redis.MapStringStringCmd
	var emails *redis.StringSliceCmd
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		fields = p.HGetAll(ctx, recordKey(hash))
		emails = p.SMembers(ctx, emailsKey(hash))
		return nil
	})
	if err != nil {
		return models.DeviceData{}, fmt.Errorf("load fingerprint: %w", err)
	}

	values := fields.Val()
	if len(values) == 0 {
		return models.UnknownDevice(), nil
	}
	record, err := parseRecord(hash, values, emails.Val())
	if err != nil {
		return models.DeviceData{}, err
	}
	return models.ToDeviceData(record, email), nil
}

func (s *RedisStore) Record(ctx context.Context, hash id.FingerprintHash, email, ip string, tenantID id.TenantID) error {
	now := requestcontext.Now(ctx).UTC().Format(time.RFC3339Nano)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, recordKey(hash), fieldFirstSeen, now)
		p.HIncrBy(ctx, recordKey(hash), fieldSignupCount, 1)
		p.HSet(ctx, recordKey(hash), fieldLastSeen, now, fieldLastIP, ip)
		p.SAdd(ctx, emailsKey(hash), email)
		p.SAdd(ctx, projectsKey(hash), tenantID.String())
		if s.ttl > 0 {
			p.Expire(ctx, recordKey(hash), s.ttl)
			p.Expire(ctx, emailsKey(hash), s.ttl)
			p.Expire(ctx, projectsKey(hash), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record fingerprint: %w", err)
	}
	return nil
}

func parseRecord(hash id.FingerprintHash, fields map[string]string, emails []string) (*models.Record, error) {
	count, err := strconv.Atoi(fields[fieldSignupCount])
	if err != nil {
		return nil, fmt.Errorf("decode fingerprint signup count: %w", err)
	}
	firstSeen, err := time.Parse(time.RFC3339Nano, fields[fieldFirstSeen])
	if err != nil {
		return nil, fmt.Errorf("decode fingerprint first seen: %w", err)
	}
	lastSeen, err := time.Parse(time.RFC3339Nano, fields[fieldLastSeen])
	if err != nil {
		return nil, fmt.Errorf("decode fingerprint last seen: %w", err)
	}
	return &models.Record{
		Hash:        hash,
		EmailsUsed:  emails,
		SignupCount: count,
		FirstSeen:   firstSeen,
		LastSeen:    lastSeen,
		LastIP:      fields[fieldLastIP],
	}, nil
}
