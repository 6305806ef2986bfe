package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/pkg/cache"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
	"github.com/noah-isme/fourset-checker/pkg/jobs"
)

// JobTypeRebuild names rebuild jobs on the queue.
const JobTypeRebuild = "grade_rebuild"

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type gradeRebuilder interface {
	Rebuild(ctx context.Context, grade string, opts RebuildOptions) (*models.RebuildCheckpoint, error)
}

// RebuildService manages asynchronous bulk rebuild jobs.
type RebuildService struct {
	cache     *CacheService
	queue     jobDispatcher
	keyPrefix string
	logger    *zap.Logger
	clock     func() time.Time
}

// NewRebuildService constructs the rebuild job service.
func NewRebuildService(cache *CacheService, queue jobDispatcher, keyPrefix string, logger *zap.Logger) *RebuildService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RebuildService{
		cache:     cache,
		queue:     queue,
		keyPrefix: keyPrefix,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob persists a queued job and hands it to the worker pool. When
// resumeRunID is set the job continues that run after its last checkpoint.
func (s *RebuildService) CreateJob(ctx context.Context, grade, resumeRunID, actorID string) (*models.RebuildJob, error) {
	if grade == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade is required")
	}
	job := &models.RebuildJob{
		ID:        uuid.NewString(),
		Grade:     grade,
		Status:    models.RebuildQueued,
		CreatedBy: actorID,
		CreatedAt: s.clock(),
	}
	job.RunID = job.ID
	if resumeRunID != "" {
		job.RunID = resumeRunID
		job.Resume = true
	}
	if err := s.save(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rebuild job")
	}
	// Keyed by grade: two runs of one grade would race on its checkpoints and batches.
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeRebuild, Key: grade}); err != nil {
		if errors.Is(err, jobs.ErrKeyBusy) {
			s.fail(ctx, job, "another rebuild of this grade is in progress")
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("a rebuild of grade %s is already queued or running", grade))
		}
		s.fail(ctx, job, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue rebuild job")
	}
	s.logger.Info("rebuild job queued", zap.String("job_id", job.ID), zap.String("run_id", job.RunID), zap.String("grade", grade))
	return job, nil
}

// GetJob loads job status.
func (s *RebuildService) GetJob(ctx context.Context, id string) (*models.RebuildJob, error) {
	var job models.RebuildJob
	found, err := s.cache.Get(ctx, cache.JobKey(s.keyPrefix, id), &job)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rebuild job")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("rebuild job %s not found", id))
	}
	return &job, nil
}

// OnOutcome marks jobs that exhausted their retries as failed and jobs cut
// short by shutdown as interrupted. It is meant to be installed as the queue's
// outcome hook.
func (s *RebuildService) OnOutcome(j jobs.Job, err error) {
	if err == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, loadErr := s.GetJob(ctx, j.ID)
	if loadErr != nil {
		s.logger.Warn("rebuild outcome for unknown job", zap.String("job_id", j.ID), zap.Error(loadErr))
		return
	}
	if errors.Is(err, jobs.ErrInterrupted) {
		s.interrupt(ctx, job)
		return
	}
	s.fail(ctx, job, err.Error())
}

func (s *RebuildService) save(ctx context.Context, job *models.RebuildJob) error {
	return s.cache.Set(ctx, cache.JobKey(s.keyPrefix, job.ID), job)
}

func (s *RebuildService) interrupt(ctx context.Context, job *models.RebuildJob) {
	now := s.clock()
	job.Status = models.RebuildInterrupted
	job.Error = fmt.Sprintf("interrupted by shutdown; resume with run %s", job.RunID)
	job.FinishedAt = &now
	if err := s.save(ctx, job); err != nil {
		s.logger.Warn("failed to mark rebuild job interrupted", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	s.logger.Info("rebuild job interrupted", zap.String("job_id", job.ID), zap.String("run_id", job.RunID))
}

func (s *RebuildService) fail(ctx context.Context, job *models.RebuildJob, msg string) {
	now := s.clock()
	job.Status = models.RebuildFailed
	job.Error = msg
	job.FinishedAt = &now
	if err := s.save(ctx, job); err != nil {
		s.logger.Warn("failed to mark rebuild job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// RebuildWorker executes queued rebuild jobs.
type RebuildWorker struct {
	jobs    *RebuildService
	runner  gradeRebuilder
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRebuildWorker wires the worker that runs rebuilds for the queue.
func NewRebuildWorker(svc *RebuildService, runner gradeRebuilder, metrics *MetricsService, logger *zap.Logger) *RebuildWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RebuildWorker{jobs: svc, runner: runner, metrics: metrics, logger: logger}
}

// Handle processes one rebuild job. Errors are returned to the queue so the
// job is retried; a retry resumes from the run's checkpoint.
func (w *RebuildWorker) Handle(ctx context.Context, j jobs.Job) error {
	job, err := w.jobs.GetJob(ctx, j.ID)
	if err != nil {
		return err
	}
	job.Status = models.RebuildRunning
	job.Error = ""
	if err := w.jobs.save(ctx, job); err != nil {
		return err
	}

	var wg sync.WaitGroup
	progress := make(chan models.RebuildProgress, 16)
	wg.Add(1)
	go func() {
		defer wg.Done()
		lastSaved := job.Progress
		for p := range progress {
			overall := overallProgress(p)
			w.metrics.SetRebuildProgress(job.Grade, overall)

			levelChanged := job.Level != p.Level
			job.Level = p.Level
			job.Progress = overall
			if levelChanged || overall-lastSaved >= 0.01 {
				lastSaved = overall
				if err := w.jobs.save(ctx, job); err != nil {
					w.logger.Warn("failed to save rebuild progress", zap.String("job_id", job.ID), zap.Error(err))
				}
			}
		}
	}()

	checkpoint, runErr := w.runner.Rebuild(ctx, job.Grade, RebuildOptions{RunID: job.RunID, Progress: progress})
	close(progress)
	wg.Wait()

	if runErr != nil {
		w.logger.Warn("rebuild run failed", zap.String("job_id", job.ID), zap.String("run_id", job.RunID), zap.Error(runErr))
		return runErr
	}
	now := time.Now().UTC()
	job.Status = models.RebuildFinished
	job.Progress = 1
	job.Level = ""
	job.FinishedAt = &now
	if checkpoint != nil {
		job.Skipped = checkpoint.Skipped
	}
	w.metrics.SetRebuildProgress(job.Grade, 1)
	w.logger.Info("rebuild job finished", zap.String("job_id", job.ID), zap.String("grade", job.Grade), zap.Int("skipped", len(job.Skipped)))
	return w.jobs.save(ctx, job)
}

// overallProgress spreads the per-level fraction evenly over the rebuild levels.
func overallProgress(p models.RebuildProgress) float64 {
	for i, level := range rebuildLevels {
		if level == p.Level {
			return (float64(i) + p.Fraction) / float64(len(rebuildLevels))
		}
	}
	return 0
}
