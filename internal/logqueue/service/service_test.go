package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mailguard/internal/logqueue/models"
	"mailguard/internal/logqueue/sink"
	id "mailguard/pkg/domain"
	dErrors "mailguard/pkg/domain-errors"
)

// scriptedSink records batch sizes and fails the batches listed in failOn (1-based).
type scriptedSink struct {
	mu      sync.Mutex
	calls   int
	batches []int
	failOn  map[int]bool
	block   chan struct{}
}

func (s *scriptedSink) WriteBatch(ctx context.Context, logs []models.ValidationLog) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn[s.calls] {
		return errors.New("sink unavailable")
	}
	s.batches = append(s.batches, len(logs))
	return nil
}

func (s *scriptedSink) Batches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches...)
}

func newLogs(n int) []models.ValidationLog {
	logs := make([]models.ValidationLog, n)
	for i := range logs {
		logs[i] = models.ValidationLog{ID: uuid.New(), TenantID: "acme", CreatedAt: time.Now()}
	}
	return logs
}

type LogQueueSuite struct {
	suite.Suite
	ctx    context.Context
	tenant id.TenantID
}

func TestLogQueueSuite(t *testing.T) {
	suite.Run(t, new(LogQueueSuite))
}

func (s *LogQueueSuite) SetupTest() {
	s.ctx = context.Background()
	s.tenant = "acme"
}

// blockedService returns a service whose background flushes wait on release,
// so enqueue results can be observed deterministically.
func (s *LogQueueSuite) blockedService(sk *scriptedSink, opts ...Option) (*Service, func()) {
	sk.block = make(chan struct{})
	svc, err := New(sk, opts...)
	s.Require().NoError(err)
	var once sync.Once
	release := func() {
		once.Do(func() { close(sk.block) })
		s.Require().NoError(svc.Wait(context.Background()))
	}
	s.T().Cleanup(release)
	return svc, release
}

func (s *LogQueueSuite) TestNew() {
	_, err := New(nil)
	s.ErrorContains(err, "log sink is required")
}

func (s *LogQueueSuite) TestEnqueueOverCapacityDropsOldest() {
	sk := &scriptedSink{failOn: map[int]bool{}}
	svc, release := s.blockedService(sk, WithMaxSize(5), WithBatchSize(100))

	res, err := svc.Enqueue(s.ctx, s.tenant, newLogs(5)...)
	s.Require().NoError(err)
	s.Equal(models.EnqueueResult{Queued: 5, TotalQueue: 5}, res)

	res, err = svc.Enqueue(s.ctx, s.tenant, newLogs(1)...)
	s.Require().NoError(err)
	s.Equal(5, res.TotalQueue, "max+1 keeps the queue at max")

	release()
	s.Equal(0, svc.Depth(s.tenant))
}

func (s *LogQueueSuite) TestFlushWritesEverythingInBatches() {
	sk := &scriptedSink{failOn: map[int]bool{}}
	svc, release := s.blockedService(sk, WithBatchSize(100))

	_, err := svc.Enqueue(s.ctx, s.tenant, newLogs(250)...)
	s.Require().NoError(err)
	release()

	s.Equal([]int{100, 100, 50}, sk.Batches())
	res, err := svc.Flush(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(0, res.RemainingQueue)
}

func (s *LogQueueSuite) TestSecondBatchFailureLeavesRestQueued() {
	sk := &scriptedSink{failOn: map[int]bool{2: true}}
	svc, err := New(sk, WithBatchSize(100))
	s.Require().NoError(err)

	// Seed the queue without triggering the background flush.
	svc.queueFor(s.tenant).logs.Push(newLogs(300)...)

	res, err := svc.Flush(s.ctx, s.tenant)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(100, res.Flushed)
	s.Equal(200, res.RemainingQueue)
	s.Equal([]int{100}, sk.Batches(), "flush stops at the failing batch")

	res, err = svc.Flush(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(200, res.Flushed)
	s.Equal(0, res.RemainingQueue)
}

func (s *LogQueueSuite) TestConcurrentFlushIsANoOp() {
	sk := &scriptedSink{failOn: map[int]bool{}}
	svc, release := s.blockedService(sk)

	_, err := svc.Enqueue(s.ctx, s.tenant, newLogs(3)...)
	s.Require().NoError(err)

	// The background flush holds the latch while the sink is blocked.
	s.Eventually(func() bool {
		return svc.queueFor(s.tenant).flushing.Load()
	}, time.Second, time.Millisecond)

	res, err := svc.Flush(s.ctx, s.tenant)
	s.Require().NoError(err)
	s.Equal(models.FlushResult{RemainingQueue: 3}, res)

	release()
	s.Equal(0, svc.Depth(s.tenant))
}

func (s *LogQueueSuite) TestEnqueueDuringFlushIsNotStranded() {
	mem := sink.NewMemorySink()
	svc, err := New(mem, WithBatchSize(1))
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for range 20 {
				_, err := svc.Enqueue(s.ctx, s.tenant, newLogs(1)...)
				s.NoError(err)
			}
		})
	}
	wg.Wait()
	s.Require().NoError(svc.Wait(s.ctx))

	s.Zero(svc.Depth(s.tenant), "every enqueue is flushed without a sweep")
	s.Len(mem.Logs(), 1000)
}

func (s *LogQueueSuite) TestSweepFlushesEveryTenant() {
	mem := sink.NewMemorySink()
	svc, err := New(mem)
	s.Require().NoError(err)

	svc.queueFor("acme").logs.Push(newLogs(2)...)
	svc.queueFor("globex").logs.Push(newLogs(3)...)

	s.Require().NoError(svc.Sweep(s.ctx))
	s.Len(mem.Logs(), 5)
	s.ElementsMatch([]id.TenantID{"acme", "globex"}, svc.Tenants())
}

func (s *LogQueueSuite) TestFlushUnknownTenant() {
	svc, err := New(sink.NewMemorySink())
	s.Require().NoError(err)
	res, err := svc.Flush(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Zero(res.RemainingQueue)
}

func (s *LogQueueSuite) TestEnqueueRequiresTenant() {
	svc, err := New(sink.NewMemorySink())
	s.Require().NoError(err)
	_, err = svc.Enqueue(s.ctx, "", newLogs(1)...)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
