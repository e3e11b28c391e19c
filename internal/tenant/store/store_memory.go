package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"mailguard/internal/tenant/models"
	id "mailguard/pkg/domain"
	"mailguard/pkg/platform/sentinel"
)

// InMemory holds tenant configs loaded from a seed file.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.TenantConfig
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[id.TenantID]*models.TenantConfig)}
}

// seedFile is the YAML layout: a top-level "tenants" list.
type seedFile struct {
	Tenants []models.Document `yaml:"tenants"`
}

// LoadSeedFile reads tenants from a YAML file into a new store.
func LoadSeedFile(path string) (*InMemory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenant seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document. A duplicate id is an error.
func ParseSeed(data []byte) (*InMemory, error) {
	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode tenant seed: %w", err)
	}
	s := NewInMemory()
	for _, doc := range f.Tenants {
		cfg, err := doc.ToConfig()
		if err != nil {
			return nil, err
		}
		if _, dup := s.tenants[cfg.ID]; dup {
			return nil, fmt.Errorf("tenant seed: duplicate id %q", cfg.ID)
		}
		s.tenants[cfg.ID] = cfg
	}
	return s, nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.TenantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t, nil
}

// Put replaces a tenant's config.
func (s *InMemory) Put(_ context.Context, cfg *models.TenantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[cfg.ID] = cfg
	return nil
}

// All returns every tenant, for seeding another store.
func (s *InMemory) All() []*models.TenantConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TenantConfig, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	return out
}
