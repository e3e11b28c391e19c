package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailguard/internal/fingerprint/models"
	"mailguard/internal/fingerprint/store"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
)

const hash = id.FingerprintHash("0123456789abcdef0123456789abcdef")

type slowStore struct{}

func (slowStore) Check(ctx context.Context, _ id.FingerprintHash, _ string) (models.DeviceData, error) {
	<-ctx.Done()
	return models.DeviceData{}, ctx.Err()
}

func (slowStore) Record(context.Context, id.FingerprintHash, string, string, id.TenantID) error {
	return errors.New("down")
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("nil store", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("emails are normalized on both paths", func(t *testing.T) {
		svc, err := New(store.NewActorStore())
		require.NoError(t, err)

		require.NoError(t, svc.Record(ctx, hash, "  Alice@Example.COM ", "", "acme"))
		data, err := svc.Check(ctx, hash, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, data.IsNewEmail)
		assert.Equal(t, []string{"alice@example.com"}, data.EmailsUsed)
	})

	t.Run("empty hash is an unknown device", func(t *testing.T) {
		svc, err := New(slowStore{})
		require.NoError(t, err)
		data, err := svc.Check(ctx, "", "a@example.com")
		require.NoError(t, err)
		assert.False(t, data.IsKnownDevice)
	})

	t.Run("check is bounded by the timeout", func(t *testing.T) {
		svc, err := New(slowStore{}, WithTimeout(20*time.Millisecond))
		require.NoError(t, err)

		start := time.Now()
		_, err = svc.Check(ctx, hash, "a@example.com")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("record validates input", func(t *testing.T) {
		svc, err := New(store.NewActorStore())
		require.NoError(t, err)
		assert.True(t, dErrors.HasCode(svc.Record(ctx, "", "a@example.com", "", "acme"), dErrors.CodeValidation))
		assert.True(t, dErrors.HasCode(svc.Record(ctx, hash, "a@example.com", "", ""), dErrors.CodeBadRequest))
		assert.True(t, dErrors.HasCode(svc.Record(ctx, hash, " ", "", "acme"), dErrors.CodeValidation))
	})

	t.Run("record errors are coded unavailable", func(t *testing.T) {
		svc, err := New(slowStore{})
		require.NoError(t, err)
		assert.True(t, dErrors.HasCode(svc.Record(ctx, hash, "a@example.com", "", "acme"), dErrors.CodeUnavailable))
	})
}
