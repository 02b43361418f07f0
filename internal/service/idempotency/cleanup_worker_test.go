package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCleanupWorker_DeleteExpired_MemoryRepository(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	clock := domain.ClockFunc(func() time.Time { return now })
	repo := memory.NewIdempotencyRepository(clock)

	for i := 0; i < 5; i++ {
		_, err := repo.CreateProcessing(ctx, fmt.Sprintf("expired-%d", i), "hash", baseTime.Add(time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing(ctx, "fresh", "hash", baseTime.Add(48*time.Hour))
	require.NoError(t, err)

	now = baseTime.Add(time.Hour)
	worker := NewCleanupWorker(repo, WithBatchSize(2), WithClock(clock))

	deleted, err := worker.DeleteExpired(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	_, err = repo.Get(ctx, "expired-0")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	repo := &stubRepo{results: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.callCount())
	assert.True(t, baseTime.Equal(repo.lastBefore))
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	repo := &stubRepo{results: []int{2}, errAfter: 1, err: errors.New("db down")}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), baseTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 2, deleted)
}

func TestCleanupWorker_DeleteExpired_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCleanupWorker(&stubRepo{}).DeleteExpired(ctx, baseTime)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanupWorker_CleanupMetrics(t *testing.T) {
	worker := NewCleanupWorker(&stubRepo{results: []int{3}}, WithBatchSize(10),
		WithClock(domain.ClockFunc(func() time.Time { return baseTime })))

	before := testutil.ToFloat64(cleanupRunsTotal.WithLabelValues("ok"))
	worker.cleanup(context.Background())

	assert.Equal(t, before+1, testutil.ToFloat64(cleanupRunsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(cleanupLastDeleted))
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	worker := NewCleanupWorker(&stubRepo{}, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop on context cancel")
	}
}

func TestNewCleanupWorker_Defaults(t *testing.T) {
	worker := NewCleanupWorker(nil, WithInterval(0), WithBatchSize(0))

	assert.Equal(t, defaultCleanupInterval, worker.opts.Interval)
	assert.Equal(t, defaultCleanupBatchSize, worker.opts.BatchSize)

	worker.Run(context.Background())
}

type stubRepo struct {
	mu         sync.Mutex
	results    []int
	calls      int
	errAfter   int
	err        error
	lastBefore time.Time
}

func (s *stubRepo) CreateProcessing(context.Context, string, string, time.Time) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, nil
}

func (s *stubRepo) Get(context.Context, string) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
}

func (s *stubRepo) MarkDone(context.Context, string, []byte, int) error { return nil }

func (s *stubRepo) MarkFailed(context.Context, string, []byte, int) error { return nil }

func (s *stubRepo) DeleteExpired(_ context.Context, before time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.lastBefore = before
	if s.err != nil && s.calls > s.errAfter {
		return 0, s.err
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next, nil
}

func (s *stubRepo) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
