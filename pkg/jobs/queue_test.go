package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type outcomeRecorder struct {
	mu      sync.Mutex
	results map[string]error
	done    chan struct{}
	want    int
}

func newOutcomeRecorder(want int) *outcomeRecorder {
	return &outcomeRecorder{results: map[string]error{}, done: make(chan struct{}), want: want}
}

func (r *outcomeRecorder) record(job Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[job.ID] = err
	if len(r.results) == r.want {
		close(r.done)
	}
}

func (r *outcomeRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job outcomes")
	}
}

func TestQueueRunsJobsAndReportsOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	rec := newOutcomeRecorder(2)
	q := NewQueue("rebuild", func(_ context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, QueueConfig{Workers: 2, OnOutcome: rec.record})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "rebuild"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "rebuild"}))
	rec.wait(t)
	q.Stop()

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.NoError(t, rec.results["a"])
	assert.NoError(t, rec.results["b"])
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	rec := newOutcomeRecorder(1)
	boom := errors.New("store unavailable")
	q := NewQueue("rebuild", func(_ context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return boom
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, OnOutcome: rec.record})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	rec.wait(t)
	q.Stop()

	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.ErrorIs(t, rec.results["a"], boom)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("rebuild", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "a"}))
}

func TestQueueRejectsBusyKeyUntilTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	running := make(chan struct{})
	rec := newOutcomeRecorder(2)
	q := NewQueue("rebuild", func(_ context.Context, job Job) error {
		if job.ID == "first" {
			close(running)
			<-release
		}
		return nil
	}, QueueConfig{Workers: 2, OnOutcome: rec.record})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "first", Key: "K3"}))
	<-running
	assert.True(t, q.Busy("K3"))

	err := q.Enqueue(Job{ID: "second", Key: "K3"})
	assert.ErrorIs(t, err, ErrKeyBusy)
	require.NoError(t, q.Enqueue(Job{ID: "other-grade", Key: "K2"}))

	close(release)
	rec.wait(t)
	assert.False(t, q.Busy("K3"))
	assert.NoError(t, q.Enqueue(Job{ID: "third", Key: "K3"}))
}

func TestQueueKeepsKeyAcrossRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	rec := newOutcomeRecorder(1)
	q := NewQueue("rebuild", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 1, RetryDelay: 20 * time.Millisecond, OnOutcome: rec.record})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a", Key: "K3"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, q.Enqueue(Job{ID: "b", Key: "K3"}), ErrKeyBusy)

	rec.wait(t)
	q.Stop()
	assert.NoError(t, rec.results["a"])
	assert.False(t, q.Busy("K3"))
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue("rebuild", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})

	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 2*time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 5*time.Second, q.backoff(4))
	assert.Equal(t, 5*time.Second, q.backoff(10))
}

func TestQueueReportsInterruptedJobsOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	running := make(chan struct{})
	var once sync.Once
	rec := newOutcomeRecorder(2)
	q := NewQueue("rebuild", func(ctx context.Context, job Job) error {
		once.Do(func() { close(running) })
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, OnOutcome: rec.record})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "running", Key: "K3"}))
	<-running
	require.NoError(t, q.Enqueue(Job{ID: "waiting", Key: "K2"}))
	q.Stop()
	rec.wait(t)

	assert.ErrorIs(t, rec.results["running"], ErrInterrupted)
	assert.ErrorIs(t, rec.results["waiting"], ErrInterrupted)
	assert.False(t, q.Busy("K3"))
	assert.False(t, q.Busy("K2"))
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueReportsInterruptedRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls int32
	rec := newOutcomeRecorder(1)
	q := NewQueue("rebuild", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("transient")
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Hour, OnOutcome: rec.record})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a", Key: "K3"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	q.Stop()
	rec.wait(t)

	assert.ErrorIs(t, rec.results["a"], ErrInterrupted)
	assert.False(t, q.Busy("K3"))
}
