package usage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailguard/internal/ratelimit/models"
	"mailguard/pkg/platform/sentinel"
)

var testKey = models.UsageKey{TenantID: "acme", Period: "2025-06"}

func TestInMemoryUsageSink(t *testing.T) {
	ctx := context.Background()
	sink := NewInMemoryUsageSink()

	_, err := sink.Load(ctx, testKey)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, sink.Upsert(ctx, testKey, 11))
	require.NoError(t, sink.Upsert(ctx, testKey, 1), "stale flush")

	count, err := sink.Load(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 11, count, "stored count never decreases")
}

func newMockSink(t *testing.T) (*PostgresUsageSink, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	return NewPostgresUsageSink(db, WithClock(func() time.Time { return now })), mock
}

func TestPostgresUsageSinkUpsert(t *testing.T) {
	sink, mock := newMockSink(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tenant_usage")).
		WithArgs("acme", "2025-06", 21, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sink.Upsert(context.Background(), testKey, 21))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsageSinkUpsertError(t *testing.T) {
	sink, mock := newMockSink(t)
	mock.ExpectExec("INSERT INTO tenant_usage").WillReturnError(errors.New("connection reset"))

	err := sink.Upsert(context.Background(), testKey, 1)
	assert.ErrorContains(t, err, "upsert tenant usage")
}

func TestPostgresUsageSinkLoad(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		sink, mock := newMockSink(t)
		mock.ExpectQuery("SELECT validation_count FROM tenant_usage").
			WithArgs("acme", "2025-06").
			WillReturnRows(sqlmock.NewRows([]string{"validation_count"}).AddRow(42))

		count, err := sink.Load(context.Background(), testKey)
		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	t.Run("missing row", func(t *testing.T) {
		sink, mock := newMockSink(t)
		mock.ExpectQuery("SELECT validation_count FROM tenant_usage").
			WillReturnError(sql.ErrNoRows)

		_, err := sink.Load(context.Background(), testKey)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
