package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/internal/repository"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
	"github.com/noah-isme/fourset-checker/pkg/jobs"
)

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	for _, queued := range q.jobs {
		if queued.Key == job.Key {
			return fmt.Errorf("%w: %s", jobs.ErrKeyBusy, job.Key)
		}
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type runnerStub struct {
	grade   string
	opts    RebuildOptions
	err     error
	skipped []string
}

func (r *runnerStub) Rebuild(ctx context.Context, grade string, opts RebuildOptions) (*models.RebuildCheckpoint, error) {
	r.grade = grade
	r.opts = opts
	for _, level := range rebuildLevels {
		if err := sendProgress(ctx, opts.Progress, opts.RunID, level, 1, 1); err != nil {
			return nil, err
		}
		if r.err != nil {
			return &models.RebuildCheckpoint{RunID: opts.RunID, Grade: grade}, r.err
		}
	}
	return &models.RebuildCheckpoint{RunID: opts.RunID, Grade: grade, Completed: rebuildLevels, Skipped: r.skipped}, nil
}

func newRebuildFixture() (*RebuildService, *queueStub, *MetricsService) {
	queue := &queueStub{}
	cache := NewCacheService(repository.NewMemoryStore(), nil, nil)
	return NewRebuildService(cache, queue, "checker", nil), queue, NewMetricsService()
}

func TestRebuildServiceCreateJob(t *testing.T) {
	svc, queue, _ := newRebuildFixture()
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, testGrade, "", "op-1")
	require.NoError(t, err)

	assert.Equal(t, models.RebuildQueued, job.Status)
	assert.Equal(t, job.ID, job.RunID)
	assert.False(t, job.Resume)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, job.ID, queue.jobs[0].ID)
	assert.Equal(t, JobTypeRebuild, queue.jobs[0].Type)

	stored, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RebuildQueued, stored.Status)
	assert.Equal(t, "op-1", stored.CreatedBy)

	_, err = svc.CreateJob(ctx, testGrade, "", "op-2")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	resumed, err := svc.CreateJob(ctx, "K2", "run-7", "op-1")
	require.NoError(t, err)
	assert.Equal(t, "run-7", resumed.RunID)
	assert.True(t, resumed.Resume)
	assert.NotEqual(t, "run-7", resumed.ID)
}

func TestRebuildServiceRequiresGrade(t *testing.T) {
	svc, _, _ := newRebuildFixture()

	_, err := svc.CreateJob(context.Background(), "", "", "op-1")

	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRebuildServiceEnqueueFailure(t *testing.T) {
	svc, queue, _ := newRebuildFixture()
	queue.err = errors.New("queue not started")
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, testGrade, "", "op-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.False(t, errors.Is(err, appErrors.ErrConflict))
}

func TestRebuildServiceGetJobMissing(t *testing.T) {
	svc, _, _ := newRebuildFixture()

	_, err := svc.GetJob(context.Background(), "nope")

	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRebuildWorkerRunsJobToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)
	svc, queue, metrics := newRebuildFixture()
	runner := &runnerStub{skipped: []string{"S9"}}
	worker := NewRebuildWorker(svc, runner, metrics, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, testGrade, "run-5", "op-1")
	require.NoError(t, err)
	require.NoError(t, worker.Handle(ctx, queue.jobs[0]))

	assert.Equal(t, testGrade, runner.grade)
	assert.Equal(t, "run-5", runner.opts.RunID)

	done, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RebuildFinished, done.Status)
	assert.Equal(t, 1.0, done.Progress)
	assert.Equal(t, []string{"S9"}, done.Skipped)
	assert.NotNil(t, done.FinishedAt)
	assert.Equal(t, 1.0, counterTotal(t, metrics, "rebuild_progress_ratio"))
}

func TestRebuildWorkerFailureIsRetriedThenRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)
	svc, queue, metrics := newRebuildFixture()
	runner := &runnerStub{err: errors.New("store unavailable")}
	worker := NewRebuildWorker(svc, runner, metrics, nil)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, testGrade, "", "op-1")
	require.NoError(t, err)

	err = worker.Handle(ctx, queue.jobs[0])
	require.Error(t, err)
	running, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RebuildRunning, running.Status)
	assert.Equal(t, models.LevelStudent, running.Level)
	assert.InDelta(t, 0.2, running.Progress, 1e-9)

	svc.OnOutcome(queue.jobs[0], errors.New("store unavailable"))
	failed, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RebuildFailed, failed.Status)
	assert.Equal(t, "store unavailable", failed.Error)
}

func TestRebuildServiceMarksInterruptedJobs(t *testing.T) {
	svc, queue, _ := newRebuildFixture()
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, testGrade, "run-3", "op-1")
	require.NoError(t, err)

	svc.OnOutcome(queue.jobs[0], fmt.Errorf("%w: context canceled", jobs.ErrInterrupted))

	stored, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RebuildInterrupted, stored.Status)
	assert.Contains(t, stored.Error, "run-3")
	assert.NotNil(t, stored.FinishedAt)
}

func TestOverallProgress(t *testing.T) {
	assert.InDelta(t, 0.1, overallProgress(models.RebuildProgress{Level: models.LevelStudent, Fraction: 0.5}), 1e-9)
	assert.InDelta(t, 0.9, overallProgress(models.RebuildProgress{Level: models.LevelDistrict, Fraction: 0.5}), 1e-9)
	assert.Zero(t, overallProgress(models.RebuildProgress{Level: models.Level("planet")}))
}
