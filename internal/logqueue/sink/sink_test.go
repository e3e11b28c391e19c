package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"mailguard/internal/logqueue/models"
	vmodels "mailguard/internal/validation/models"
	"mailguard/pkg/platform/circuit"
	"mailguard/pkg/platform/sentinel"
)

func sampleLog() models.ValidationLog {
	return models.ValidationLog{
		ID:             uuid.New(),
		TenantID:       "acme",
		EmailHash:      "abc123",
		Domain:         "mailinator.com",
		Checks:         map[vmodels.CheckName]vmodels.CheckResult{vmodels.CheckDisposable: {Pass: false}},
		Signals:        []vmodels.Signal{vmodels.SignalDisposableEmail},
		Score:          40,
		Recommendation: vmodels.RecommendationAllow,
		ASN:            13335,
		CreatedAt:      time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestMemorySinkDedupesByID(t *testing.T) {
	s := NewMemorySink()
	l := sampleLog()
	require.NoError(t, s.WriteBatch(context.Background(), []models.ValidationLog{l, l}))
	require.NoError(t, s.WriteBatch(context.Background(), []models.ValidationLog{l}))
	assert.Len(t, s.Logs(), 1)
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaSink(t *testing.T) {
	t.Run("publishes one keyed record per log", func(t *testing.T) {
		p := &fakeProducer{}
		l := sampleLog()
		require.NoError(t, NewKafkaSink(p, "validation-logs").WriteBatch(context.Background(), []models.ValidationLog{l}))

		require.Len(t, p.records, 1)
		r := p.records[0]
		assert.Equal(t, "validation-logs", r.Topic)
		assert.Equal(t, []byte("acme"), r.Key)
		assert.Equal(t, l.ID.String(), string(r.Headers[0].Value))

		var decoded models.ValidationLog
		require.NoError(t, json.Unmarshal(r.Value, &decoded))
		assert.Equal(t, l.ID, decoded.ID)
		assert.Equal(t, []vmodels.Signal{vmodels.SignalDisposableEmail}, decoded.Signals)
	})

	t.Run("produce error fails the batch", func(t *testing.T) {
		p := &fakeProducer{err: errors.New("not leader")}
		err := NewKafkaSink(p, "").WriteBatch(context.Background(), []models.ValidationLog{sampleLog()})
		assert.ErrorContains(t, err, "not leader")
	})
}

type fakeBatchResults struct {
	execErrs []error
	calls    int
	closed   bool
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	var err error
	if r.calls < len(r.execErrs) {
		err = r.execErrs[r.calls]
	}
	r.calls++
	return pgconn.NewCommandTag("INSERT 0 1"), err
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (r *fakeBatchResults) Close() error {
	r.closed = true
	return nil
}

type fakeSender struct {
	batch   *pgx.Batch
	results *fakeBatchResults
}

func (s *fakeSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	s.batch = b
	return s.results
}

func TestPostgresSink(t *testing.T) {
	t.Run("queues one idempotent insert per log", func(t *testing.T) {
		sender := &fakeSender{results: &fakeBatchResults{}}
		logs := []models.ValidationLog{sampleLog(), sampleLog()}
		require.NoError(t, NewPostgresSink(sender).WriteBatch(context.Background(), logs))

		require.Equal(t, 2, sender.batch.Len())
		q := sender.batch.QueuedQueries[0]
		assert.Contains(t, q.SQL, "ON CONFLICT (id) DO NOTHING")
		assert.Equal(t, logs[0].ID, q.Arguments[0])
		assert.Equal(t, []string{"disposable_email"}, q.Arguments[6])
		assert.Equal(t, "AS13335", q.Arguments[10])
		assert.True(t, sender.results.closed)
	})

	t.Run("row error fails the batch", func(t *testing.T) {
		sender := &fakeSender{results: &fakeBatchResults{execErrs: []error{nil, errors.New("constraint")}}}
		err := NewPostgresSink(sender).WriteBatch(context.Background(), []models.ValidationLog{sampleLog(), sampleLog()})
		assert.ErrorContains(t, err, "constraint")
		assert.True(t, sender.results.closed)
	})

	t.Run("empty batch sends nothing", func(t *testing.T) {
		sender := &fakeSender{}
		require.NoError(t, NewPostgresSink(sender).WriteBatch(context.Background(), nil))
		assert.Nil(t, sender.batch)
	})
}

type failingSink struct{ calls int }

func (s *failingSink) WriteBatch(context.Context, []models.ValidationLog) error {
	s.calls++
	return errors.New("down")
}

func TestBreakerSink(t *testing.T) {
	inner := &failingSink{}
	breaker := circuit.New("logs", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	s := NewBreakerSink(inner, breaker, nil)
	batch := []models.ValidationLog{sampleLog()}

	assert.Error(t, s.WriteBatch(context.Background(), batch))
	assert.Error(t, s.WriteBatch(context.Background(), batch))
	assert.False(t, breaker.Allow())

	err := s.WriteBatch(context.Background(), batch)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 2, inner.calls, "open breaker short-circuits")
}
