package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mailguard/internal/tenant/models"
	"mailguard/internal/tenant/store"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
	"mailguard/pkg/requestcontext"
)

// flakyStore counts reads and fails on demand.
type flakyStore struct {
	inner *store.InMemory
	reads int
	err   error
}

func (f *flakyStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.TenantConfig, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.FindByID(ctx, tenantID)
}

type ServiceSuite struct {
	suite.Suite
	store   *flakyStore
	service *Service
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	mem := store.NewInMemory()
	ctx := context.Background()
	s.Require().NoError(mem.Put(ctx, &models.TenantConfig{ID: "acme", Status: models.TenantStatusActive}))
	s.Require().NoError(mem.Put(ctx, &models.TenantConfig{ID: "globex", Status: models.TenantStatusInactive}))
	s.store = &flakyStore{inner: mem}

	var err error
	s.service, err = New(s.store, WithCacheTTL(time.Minute))
	s.Require().NoError(err)
	s.now = time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ServiceSuite) TestGet() {
	s.Run("known tenant is cached", func() {
		cfg, err := s.service.Get(s.at(0), "acme")
		s.Require().NoError(err)
		s.Equal(id.TenantID("acme"), cfg.ID)

		_, err = s.service.Get(s.at(30*time.Second), "acme")
		s.Require().NoError(err)
		s.Equal(1, s.store.reads)
	})

	s.Run("expired entry is re-read", func() {
		_, err := s.service.Get(s.at(2*time.Minute), "acme")
		s.Require().NoError(err)
		s.Equal(2, s.store.reads)
	})

	s.Run("unknown tenant", func() {
		_, err := s.service.Get(s.at(0), "initech")
		s.True(dErrors.HasCode(err, dErrors.CodeTenantNotFound))
	})

	s.Run("inactive tenant", func() {
		_, err := s.service.Get(s.at(0), "globex")
		s.True(dErrors.HasCode(err, dErrors.CodeTenantNotFound))
	})

	s.Run("missing id", func() {
		_, err := s.service.Get(s.at(0), "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestStaleOnStoreFailure() {
	_, err := s.service.Get(s.at(0), "acme")
	s.Require().NoError(err)

	s.store.err = errors.New("redis: connection refused")
	cfg, err := s.service.Get(s.at(5*time.Minute), "acme")
	s.Require().NoError(err, "stale config beats an outage")
	s.Equal(id.TenantID("acme"), cfg.ID)

	s.service.Invalidate("acme")
	_, err = s.service.Get(s.at(5*time.Minute), "acme")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
