package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mailguard/internal/tenant/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/platform/sentinel"
)

// Redis reads tenant configs published as JSON documents by the tenant
// admin service.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = "tenant:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) FindByID(ctx context.Context, tenantID id.TenantID) (*models.TenantConfig, error) {
	raw, err := s.client.Get(ctx, s.prefix+tenantID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis tenant get: %w", err)
	}
	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode tenant %s: %w", tenantID, err)
	}
	return doc.ToConfig()
}

// Put publishes cfg. Used to seed Redis from a file and by tests.
func (s *Redis) Put(ctx context.Context, cfg *models.TenantConfig) error {
	raw, err := json.Marshal(models.NewDocument(cfg))
	if err != nil {
		return fmt.Errorf("encode tenant %s: %w", cfg.ID, err)
	}
	if err := s.client.Set(ctx, s.prefix+cfg.ID.String(), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis tenant set: %w", err)
	}
	return nil
}
