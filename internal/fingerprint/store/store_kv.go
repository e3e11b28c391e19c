package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mailguard/internal/fingerprint/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/requestcontext"
)

// KVStore keeps each record as one JSON value.
//
// Record is a plain read-modify-write with no lock or version check: two
// concurrent signups on the same device can lose one update. Use RedisStore
// or PostgresStore where that matters.
type KVStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewKVStore creates a store writing under prefix. A zero ttl keeps records forever.
func NewKVStore(client redis.Cmdable, prefix string, ttl time.Duration) *KVStore {
	if prefix == "" {
		prefix = "fp:kv:"
	}
	return &KVStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *KVStore) Check(ctx context.Context, hash id.FingerprintHash, email string) (models.DeviceData, error) {
	record, err := s.load(ctx, hash)
	if err != nil {
		return models.DeviceData{}, err
	}
	return models.ToDeviceData(record, email), nil
}

func (s *KVStore) Record(ctx context.Context, hash id.FingerprintHash, email, ip string, tenantID id.TenantID) error {
	now := requestcontext.Now(ctx)
	record, err := s.load(ctx, hash)
	if err != nil {
		return err
	}
	if record == nil {
		record = models.NewRecord(hash, email, ip, tenantID, now)
	} else {
		record.ApplySignup(email, ip, tenantID, now)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+hash.String(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store fingerprint: %w", err)
	}
	return nil
}

func (s *KVStore) load(ctx context.Context, hash id.FingerprintHash) (*models.Record, error) {
	raw, err := s.client.Get(ctx, s.prefix+hash.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fingerprint: %w", err)
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode fingerprint: %w", err)
	}
	return &record, nil
}
