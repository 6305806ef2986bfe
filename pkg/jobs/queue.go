package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrKeyBusy is returned by Enqueue when a job with the same key is already
	// queued or running.
	ErrKeyBusy = errors.New("job key busy")
	// ErrInterrupted is reported to the outcome hook for jobs that were running,
	// queued or waiting for a retry when the queue stopped.
	ErrInterrupted = errors.New("job interrupted by shutdown")
)

// Job represents a queued background task. Jobs sharing a non-empty Key never
// overlap: the key is held from Enqueue until the job reaches a terminal state.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// OutcomeFunc is told about every job that reached a terminal state: success,
// failure after the last retry, or ErrInterrupted.
type OutcomeFunc func(job Job, err error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the first backoff; it doubles per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Logger        *zap.Logger
	OnOutcome     OutcomeFunc
}

// Queue is an in-memory worker pool for long-running jobs such as grade rebuilds.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	pending chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	held    map[string]string // key -> job ID
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = 32 * cfg.RetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("queue", name)),
		pending: make(chan Job, cfg.BufferSize),
		held:    make(map[string]string),
	}
}

// Start launches the workers. Calls after the first are ignored.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels running jobs and pending retries and waits for the workers.
// Every job that did not finish is reported with ErrInterrupted.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	for {
		select {
		case job := <-q.pending:
			q.finish(job, ErrInterrupted)
		default:
			q.logger.Info("queue stopped")
			return
		}
	}
}

// Enqueue submits a job. It fails when the queue is not running or when the
// job's key is held by another job.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if !q.started || q.ctx.Err() != nil {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not running", q.name)
	}
	if job.Key != "" {
		if owner, busy := q.held[job.Key]; busy {
			q.mu.Unlock()
			return fmt.Errorf("%w: %s is held by job %s", ErrKeyBusy, job.Key, owner)
		}
		q.held[job.Key] = job.ID
	}
	q.mu.Unlock()

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	if err := q.push(job); err != nil {
		q.release(job)
		return err
	}
	return nil
}

// Busy reports whether key is held by a queued or running job.
func (q *Queue) Busy(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, busy := q.held[key]
	return busy
}

func (q *Queue) push(job Job) error {
	select {
	case <-q.ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, q.ctx.Err())
	case q.pending <- job:
		return nil
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			started := time.Now()
			err := q.handler(q.ctx, job)
			if err == nil {
				q.logger.Info("job finished", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Duration("took", time.Since(started)))
				q.finish(job, nil)
				continue
			}
			q.retryOrFail(job, err)
		}
	}
}

func (q *Queue) retryOrFail(job Job, err error) {
	if q.ctx.Err() != nil {
		q.logger.Warn("job interrupted by shutdown", zap.String("job_id", job.ID), zap.Error(err))
		q.finish(job, fmt.Errorf("%w: %v", ErrInterrupted, err))
		return
	}
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.logger.Error("job exceeded retries", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempts", job.Attempt), zap.Error(err))
		q.finish(job, err)
		return
	}
	delay := q.backoff(job.Attempt)
	q.logger.Warn("job failed, retrying",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.finish(j, ErrInterrupted)
		case <-timer.C:
			// The key stays held across retries.
			if err := q.push(j); err != nil {
				q.logger.Warn("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
				q.finish(j, fmt.Errorf("%w: %v", ErrInterrupted, err))
			}
		}
	}(job)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt && delay < q.cfg.MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > q.cfg.MaxRetryDelay {
		delay = q.cfg.MaxRetryDelay
	}
	return delay
}

// finish releases the job's key before reporting, so the outcome hook may
// enqueue a follow-up for the same key.
func (q *Queue) finish(job Job, err error) {
	q.release(job)
	if q.cfg.OnOutcome != nil {
		q.cfg.OnOutcome(job, err)
	}
}

func (q *Queue) release(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.held[job.Key] == job.ID {
		delete(q.held, job.Key)
	}
}
