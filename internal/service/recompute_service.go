package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/pkg/cache"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// AnswerSource yields the raw submissions of one source for a student.
type AnswerSource interface {
	ListByStudent(ctx context.Context, source models.Source, studentID string) ([]models.SourceSubmission, error)
}

// RosterReader exposes the identity mapping of students onto the hierarchy.
type RosterReader interface {
	FindStudent(ctx context.Context, studentID string) (*models.RosterStudent, error)
	ListStudents(ctx context.Context) ([]models.RosterStudent, error)
	ListClasses(ctx context.Context) ([]models.RosterClass, error)
	ListSchools(ctx context.Context) ([]models.RosterSchool, error)
	ListClassStudents(ctx context.Context, classID string) ([]string, error)
	ListSchoolClasses(ctx context.Context, schoolID string) ([]string, error)
	ListGroupSchools(ctx context.Context, group int) ([]string, error)
	ListDistrictSchools(ctx context.Context, district string) ([]string, error)
}

// RecomputeService drives merge, validation and aggregation for one student or
// for a whole grade.
type RecomputeService struct {
	answers    AnswerSource
	roster     RosterReader
	normalizer *AnswerNormalizer
	merger     *MergeService
	aggregator *StudentAggregator
	hierarchy  *HierarchyService
	cache      *CacheService
	keyPrefix  string
	workers    int
	limiter    *rate.Limiter
	metrics    *MetricsService
	logger     *zap.Logger

	// indexMu serialises read-modify-write of student grade indexes.
	indexMu sync.Mutex
}

// RecomputeServiceParams groups recompute dependencies.
type RecomputeServiceParams struct {
	Answers    AnswerSource
	Roster     RosterReader
	Normalizer *AnswerNormalizer
	Merger     *MergeService
	Aggregator *StudentAggregator
	Hierarchy  *HierarchyService
	Cache      *CacheService
	KeyPrefix  string
	Workers    int
	// FetchRate paces calls into the answer source, per second. Zero means unlimited.
	FetchRate  float64
	FetchBurst int
	Metrics    *MetricsService
	Logger     *zap.Logger
}

// NewRecomputeService constructs a RecomputeService.
func NewRecomputeService(params RecomputeServiceParams) *RecomputeService {
	workers := params.Workers
	if workers <= 0 {
		workers = 4
	}
	limit := rate.Inf
	if params.FetchRate > 0 {
		limit = rate.Limit(params.FetchRate)
	}
	burst := params.FetchBurst
	if burst <= 0 {
		burst = 1
	}
	normalizer := params.Normalizer
	if normalizer == nil {
		normalizer = NewAnswerNormalizer()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeService{
		answers:    params.Answers,
		roster:     params.Roster,
		normalizer: normalizer,
		merger:     params.Merger,
		aggregator: params.Aggregator,
		hierarchy:  params.Hierarchy,
		cache:      params.Cache,
		keyPrefix:  params.KeyPrefix,
		workers:    workers,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    params.Metrics,
		logger:     logger,
	}
}

// Keyspace returns the persisted keyspace of a grade.
func (s *RecomputeService) Keyspace(grade string) cache.Keyspace {
	return cache.NewKeyspace(s.keyPrefix, grade)
}

// RecomputeStudent re-merges and re-validates one student, then recomputes the
// class, school, group and district above them from their full child sets.
// Records left in grades the student no longer has answers for are removed and
// the aggregates above them recomputed.
func (s *RecomputeService) RecomputeStudent(ctx context.Context, studentID string) (*models.RecomputeResult, error) {
	student, err := s.roster.FindStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	records, err := s.fetchAnswers(ctx, studentID)
	if err != nil {
		return nil, err
	}
	sets, err := s.merger.Merge(studentID, records)
	if err != nil {
		return nil, err
	}

	result := &models.RecomputeResult{StudentID: studentID, Records: []models.StudentValidationRecord{}, Summaries: []models.Summary{}}
	current := make([]string, 0, len(sets))
	for _, set := range sets {
		ks := s.Keyspace(set.Grade)
		record, err := s.writeStudent(ctx, ks, *student, set)
		if err != nil {
			return nil, err
		}
		current = append(current, ks.Grade())
		result.Records = append(result.Records, record)
		if err := s.cascade(ctx, ks, *student, result); err != nil {
			return nil, err
		}
	}

	previous, err := s.studentGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for _, grade := range previous {
		if containsString(current, grade) {
			continue
		}
		ks := s.Keyspace(grade)
		removed, err := s.dropStudent(ctx, ks, studentID)
		if err != nil {
			return nil, err
		}
		if !removed {
			continue
		}
		result.RemovedGrades = append(result.RemovedGrades, ks.Grade())
		if err := s.cascade(ctx, ks, *student, result); err != nil {
			return nil, err
		}
	}
	if err := s.updateStudentGrades(ctx, studentID, func([]string) []string { return current }); err != nil {
		return nil, err
	}

	s.logger.Info("student recomputed",
		zap.String("student_id", studentID),
		zap.Int("grades", len(sets)),
		zap.Strings("removed_grades", result.RemovedGrades),
		zap.Int("aggregate_errors", len(result.Errors)))
	return result, nil
}

// PurgeGrade drops every persisted record, summary, conflict log and checkpoint
// of a grade. Rebuild jobs are kept.
func (s *RecomputeService) PurgeGrade(ctx context.Context, grade string) error {
	if strings.TrimSpace(grade) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "grade required")
	}
	return s.cache.Purge(ctx, s.Keyspace(grade).Pattern())
}

// StudentRecord reads a persisted record.
func (s *RecomputeService) StudentRecord(ctx context.Context, grade, studentID string) (*models.StudentValidationRecord, error) {
	var record models.StudentValidationRecord
	found, err := s.cache.Get(ctx, s.Keyspace(grade).Student(studentID), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no validation record for student %s in grade %s", studentID, grade))
	}
	return &record, nil
}

// Summary reads a persisted aggregate summary.
func (s *RecomputeService) Summary(ctx context.Context, grade string, level models.Level, id string) (*models.Summary, error) {
	key, err := summaryKey(s.Keyspace(grade), level, id)
	if err != nil {
		return nil, err
	}
	var summary models.Summary
	found, err := s.cache.Get(ctx, key, &summary)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no %s summary %s in grade %s", level, id, grade))
	}
	return &summary, nil
}

func summaryKey(ks cache.Keyspace, level models.Level, id string) (string, error) {
	switch level {
	case models.LevelClass:
		return ks.Class(id), nil
	case models.LevelSchool:
		return ks.School(id), nil
	case models.LevelDistrict:
		return ks.District(id), nil
	case models.LevelGroup:
		group, err := strconv.Atoi(id)
		if err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("group id %q is not a number", id))
		}
		return ks.Group(group), nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("level %q has no summary", level))
	}
}

func (s *RecomputeService) fetchAnswers(ctx context.Context, studentID string) ([]models.AnswerRecord, error) {
	var all []models.AnswerRecord
	for _, source := range []models.Source{models.SourcePrimary, models.SourceSecondary} {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		subs, err := s.answers.ListByStudent(ctx, source, studentID)
		if err != nil {
			return nil, err
		}
		records, err := s.normalizer.NormalizeAll(subs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable submission payload")
		}
		all = append(all, records...)
	}
	return all, nil
}

// writeStudent validates and persists one student record together with the
// conflict log of the merge it came from.
func (s *RecomputeService) writeStudent(ctx context.Context, ks cache.Keyspace, student models.RosterStudent, set models.MergedAnswerSet) (models.StudentValidationRecord, error) {
	start := time.Now()
	record := s.aggregator.Validate(student, set)
	report := models.ConflictReport{
		StudentID: student.StudentID,
		Grade:     set.Grade,
		Conflicts: set.Conflicts,
		MergedAt:  record.LastValidated,
	}
	err := s.cache.SetBatch(ctx, map[string]interface{}{
		ks.Student(student.StudentID):   record,
		ks.Conflicts(student.StudentID): report,
	})
	if err != nil {
		return record, fmt.Errorf("persist student %s: %w", student.StudentID, err)
	}
	s.metrics.ObserveRecompute(models.LevelStudent, time.Since(start))
	return record, nil
}

// dropStudent removes a student's record and conflict log from one grade. It
// reports whether a record was there to remove.
func (s *RecomputeService) dropStudent(ctx context.Context, ks cache.Keyspace, studentID string) (bool, error) {
	var record models.StudentValidationRecord
	found, err := s.cache.Get(ctx, ks.Student(studentID), &record)
	if err != nil || !found {
		return false, err
	}
	if err := s.cache.Delete(ctx, ks.Student(studentID), ks.Conflicts(studentID)); err != nil {
		return false, fmt.Errorf("remove student %s from grade %s: %w", studentID, ks.Grade(), err)
	}
	s.logger.Info("stale student record removed", zap.String("student_id", studentID), zap.String("grade", ks.Grade()))
	return true, nil
}

// studentGrades reads the grades a student has persisted records in.
func (s *RecomputeService) studentGrades(ctx context.Context, studentID string) ([]string, error) {
	var grades []string
	if _, err := s.cache.Get(ctx, cache.StudentGradesKey(s.keyPrefix, studentID), &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

func (s *RecomputeService) updateStudentGrades(ctx context.Context, studentID string, update func([]string) []string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	grades, err := s.studentGrades(ctx, studentID)
	if err != nil {
		return err
	}
	next := update(grades)
	if next == nil {
		next = []string{}
	}
	sort.Strings(next)
	return s.cache.Set(ctx, cache.StudentGradesKey(s.keyPrefix, studentID), next)
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func (s *RecomputeService) cascade(ctx context.Context, ks cache.Keyspace, student models.RosterStudent, result *models.RecomputeResult) error {
	studentIDs, err := s.roster.ListClassStudents(ctx, student.ClassID)
	if err != nil {
		return err
	}
	children, err := s.studentChildren(ctx, ks, studentIDs)
	if err != nil {
		return err
	}
	classSummary, err := s.foldAndWrite(ctx, ks, models.LevelClass, student.ClassID, ks.Class(student.ClassID), children)
	if err != nil {
		return err
	}

	classIDs, err := s.roster.ListSchoolClasses(ctx, student.SchoolID)
	if err != nil {
		return err
	}
	children, err = s.summaryChildren(ctx, classIDs, ks.Class)
	if err != nil {
		return err
	}
	schoolSummary, err := s.foldAndWrite(ctx, ks, models.LevelSchool, student.SchoolID, ks.School(student.SchoolID), children)
	if err != nil {
		return err
	}

	// Group and district are independent dimensions over schools.
	var groupSummary, districtSummary models.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		schoolIDs, err := s.roster.ListGroupSchools(gctx, student.Group)
		if err != nil {
			return err
		}
		children, err := s.summaryChildren(gctx, schoolIDs, ks.School)
		if err != nil {
			return err
		}
		groupSummary, err = s.foldAndWrite(gctx, ks, models.LevelGroup, strconv.Itoa(student.Group), ks.Group(student.Group), children)
		return err
	})
	g.Go(func() error {
		schoolIDs, err := s.roster.ListDistrictSchools(gctx, student.District)
		if err != nil {
			return err
		}
		children, err := s.summaryChildren(gctx, schoolIDs, ks.School)
		if err != nil {
			return err
		}
		districtSummary, err = s.foldAndWrite(gctx, ks, models.LevelDistrict, student.District, ks.District(student.District), children)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, summary := range []models.Summary{classSummary, schoolSummary, groupSummary, districtSummary} {
		result.Summaries = append(result.Summaries, summary)
		if summary.Status == models.CompletionError {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %s", summary.Level, summary.ID, summary.ErrorCode))
		}
	}
	return nil
}

// foldAndWrite folds children into a summary and persists it. A summary that
// fails to fold is persisted in the error state and does not stop the cascade;
// only store failures are returned.
func (s *RecomputeService) foldAndWrite(ctx context.Context, ks cache.Keyspace, level models.Level, id, key string, children []models.ChildStatus) (models.Summary, error) {
	start := time.Now()
	summary := s.fold(ks.Grade(), level, id, children)
	if err := s.cache.Set(ctx, key, summary); err != nil {
		return summary, fmt.Errorf("persist %s %s: %w", level, id, err)
	}
	s.metrics.ObserveRecompute(level, time.Since(start))
	return summary, nil
}

func (s *RecomputeService) fold(grade string, level models.Level, id string, children []models.ChildStatus) models.Summary {
	summary, err := s.hierarchy.FoldUp(level, id, grade, children)
	if err == nil {
		return summary
	}
	s.metrics.RecordAggregateError(level)
	s.logger.Error("aggregate fold failed",
		zap.String("level", string(level)),
		zap.String("id", id),
		zap.String("grade", grade),
		zap.Error(err))
	return s.hierarchy.ErrorSummary(level, id, grade, err)
}

// studentChildren projects the current records of a class roster. A student
// without a record in this grade counts as not started.
func (s *RecomputeService) studentChildren(ctx context.Context, ks cache.Keyspace, studentIDs []string) ([]models.ChildStatus, error) {
	children := make([]models.ChildStatus, 0, len(studentIDs))
	for _, id := range studentIDs {
		var record models.StudentValidationRecord
		found, err := s.cache.Get(ctx, ks.Student(id), &record)
		if err != nil {
			return nil, err
		}
		if found {
			children = append(children, models.ChildFromRecord(id, &record))
		} else {
			children = append(children, models.ChildFromRecord(id, nil))
		}
	}
	return children, nil
}

// summaryChildren projects the current summaries of lower-level nodes. A node
// that was never folded has no data in this grade.
func (s *RecomputeService) summaryChildren(ctx context.Context, ids []string, keyOf func(string) string) ([]models.ChildStatus, error) {
	children := make([]models.ChildStatus, 0, len(ids))
	for _, id := range ids {
		var summary models.Summary
		found, err := s.cache.Get(ctx, keyOf(id), &summary)
		if err != nil {
			return nil, err
		}
		if !found {
			children = append(children, models.ChildStatus{ID: id, Status: models.CompletionNotStarted})
			continue
		}
		children = append(children, models.ChildFromSummary(summary))
	}
	return children, nil
}

// RebuildOptions controls a bulk rebuild.
type RebuildOptions struct {
	// RunID names the run; reusing the ID of an interrupted run resumes it
	// after its last completed level.
	RunID string
	// Progress, when set, receives one message per finished node. The caller
	// must drain it.
	Progress chan<- models.RebuildProgress
}

// rebuildLevels is the bottom-up order a bulk rebuild writes in.
var rebuildLevels = []models.Level{models.LevelStudent, models.LevelClass, models.LevelSchool, models.LevelGroup, models.LevelDistrict}

// Rebuild recomputes every student of the roster and every aggregate of one
// grade. Each level is written in one batch and checkpointed, so a cancelled
// run leaves earlier levels valid and can be resumed.
func (s *RecomputeService) Rebuild(ctx context.Context, grade string, opts RebuildOptions) (*models.RebuildCheckpoint, error) {
	if grade == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade is required")
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ks := s.Keyspace(grade)

	checkpoint := models.RebuildCheckpoint{RunID: runID, Grade: grade}
	if _, err := s.cache.Get(ctx, ks.Checkpoint(runID), &checkpoint); err != nil {
		return nil, err
	}
	if checkpoint.Grade != grade {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("run %s belongs to grade %s", runID, checkpoint.Grade))
	}

	students, err := s.roster.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	classes, err := s.roster.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	schools, err := s.roster.ListSchools(ctx)
	if err != nil {
		return nil, err
	}
	plan := newRebuildPlan(students, classes, schools)

	log := s.logger.With(zap.String("run_id", runID), zap.String("grade", grade))
	log.Info("rebuild started", zap.Int("students", len(students)), zap.Strings("resumed_after", levelNames(checkpoint.Completed)))

	for _, level := range rebuildLevels {
		if checkpoint.Has(level) {
			continue
		}
		var skipped []string
		switch level {
		case models.LevelStudent:
			skipped, err = s.rebuildStudents(ctx, ks, runID, students, opts.Progress)
		case models.LevelClass:
			err = s.rebuildNodes(ctx, ks, runID, level, plan.classIDs, func(id string) (string, []models.ChildStatus, error) {
				children, err := s.studentChildren(ctx, ks, plan.classStudents[id])
				return ks.Class(id), children, err
			}, opts.Progress)
		case models.LevelSchool:
			err = s.rebuildNodes(ctx, ks, runID, level, plan.schoolIDs, func(id string) (string, []models.ChildStatus, error) {
				children, err := s.summaryChildren(ctx, plan.schoolClasses[id], ks.Class)
				return ks.School(id), children, err
			}, opts.Progress)
		case models.LevelGroup:
			err = s.rebuildNodes(ctx, ks, runID, level, plan.groupIDs, func(id string) (string, []models.ChildStatus, error) {
				children, err := s.summaryChildren(ctx, plan.groupSchools[id], ks.School)
				return ks.Group(plan.groupNumbers[id]), children, err
			}, opts.Progress)
		case models.LevelDistrict:
			err = s.rebuildNodes(ctx, ks, runID, level, plan.districtIDs, func(id string) (string, []models.ChildStatus, error) {
				children, err := s.summaryChildren(ctx, plan.districtSchools[id], ks.School)
				return ks.District(id), children, err
			}, opts.Progress)
		}
		if err != nil {
			log.Warn("rebuild stopped", zap.String("level", string(level)), zap.Error(err))
			return &checkpoint, err
		}

		checkpoint.Completed = append(checkpoint.Completed, level)
		checkpoint.Skipped = append(checkpoint.Skipped, skipped...)
		checkpoint.UpdatedAt = time.Now().UTC()
		if err := s.cache.Set(ctx, ks.Checkpoint(runID), checkpoint); err != nil {
			return &checkpoint, err
		}
		log.Info("rebuild level completed", zap.String("level", string(level)))
	}
	return &checkpoint, nil
}

// rebuildStudents validates every roster student concurrently. A student whose
// merge is refused is skipped and reported; other failures abort the level.
func (s *RecomputeService) rebuildStudents(ctx context.Context, ks cache.Keyspace, runID string, students []models.RosterStudent, progress chan<- models.RebuildProgress) ([]string, error) {
	var (
		done    int64
		mu      sync.Mutex
		skipped []string
	)
	total := len(students)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, student := range students {
		student := student
		g.Go(func() error {
			err := s.rebuildStudent(gctx, ks, student)
			if errors.Is(err, appErrors.ErrCrossGradeContamination) || errors.Is(err, appErrors.ErrValidation) {
				s.logger.Error("student skipped in rebuild", zap.String("student_id", student.StudentID), zap.Error(err))
				mu.Lock()
				skipped = append(skipped, student.StudentID)
				mu.Unlock()
				err = nil
			}
			if err != nil {
				return err
			}
			n := int(atomic.AddInt64(&done, 1))
			return sendProgress(gctx, progress, runID, models.LevelStudent, n, total)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(skipped)
	return skipped, nil
}

func (s *RecomputeService) rebuildStudent(ctx context.Context, ks cache.Keyspace, student models.RosterStudent) error {
	records, err := s.fetchAnswers(ctx, student.StudentID)
	if err != nil {
		return err
	}
	sets, err := s.merger.Merge(student.StudentID, records)
	if err != nil {
		return err
	}
	for _, set := range sets {
		if s.Keyspace(set.Grade).Grade() != ks.Grade() {
			continue
		}
		if _, err := s.writeStudent(ctx, ks, student, set); err != nil {
			return err
		}
		return s.updateStudentGrades(ctx, student.StudentID, func(grades []string) []string {
			if containsString(grades, ks.Grade()) {
				return grades
			}
			return append(grades, ks.Grade())
		})
	}

	// No answers in this grade any more; an earlier record must not be folded.
	removed, err := s.dropStudent(ctx, ks, student.StudentID)
	if err != nil || !removed {
		return err
	}
	return s.updateStudentGrades(ctx, student.StudentID, func(grades []string) []string {
		kept := grades[:0]
		for _, g := range grades {
			if g != ks.Grade() {
				kept = append(kept, g)
			}
		}
		return kept
	})
}

// rebuildNodes folds every node of one level and writes them in one batch.
func (s *RecomputeService) rebuildNodes(ctx context.Context, ks cache.Keyspace, runID string, level models.Level, ids []string, childrenOf func(id string) (string, []models.ChildStatus, error), progress chan<- models.RebuildProgress) error {
	entries := make(map[string]interface{}, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		key, children, err := childrenOf(id)
		if err != nil {
			return err
		}
		entries[key] = s.fold(ks.Grade(), level, id, children)
		s.metrics.ObserveRecompute(level, time.Since(start))
		if err := sendProgress(ctx, progress, runID, level, i+1, len(ids)); err != nil {
			return err
		}
	}
	return s.cache.SetBatch(ctx, entries)
}

func sendProgress(ctx context.Context, progress chan<- models.RebuildProgress, runID string, level models.Level, done, total int) error {
	if progress == nil {
		return nil
	}
	fraction := 1.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	select {
	case progress <- models.RebuildProgress{RunID: runID, Level: level, Done: done, Total: total, Fraction: fraction}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func levelNames(levels []models.Level) []string {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return names
}

// rebuildPlan indexes the roster by hierarchy level.
type rebuildPlan struct {
	classIDs        []string
	classStudents   map[string][]string
	schoolIDs       []string
	schoolClasses   map[string][]string
	groupIDs        []string
	groupNumbers    map[string]int
	groupSchools    map[string][]string
	districtIDs     []string
	districtSchools map[string][]string
}

func newRebuildPlan(students []models.RosterStudent, classes []models.RosterClass, schools []models.RosterSchool) rebuildPlan {
	p := rebuildPlan{
		classStudents:   make(map[string][]string),
		schoolClasses:   make(map[string][]string),
		groupNumbers:    make(map[string]int),
		groupSchools:    make(map[string][]string),
		districtSchools: make(map[string][]string),
	}
	for _, c := range classes {
		p.classIDs = append(p.classIDs, c.ID)
		p.schoolClasses[c.SchoolID] = append(p.schoolClasses[c.SchoolID], c.ID)
	}
	for _, st := range students {
		p.classStudents[st.ClassID] = append(p.classStudents[st.ClassID], st.StudentID)
	}
	for _, sc := range schools {
		p.schoolIDs = append(p.schoolIDs, sc.ID)
		groupID := strconv.Itoa(sc.Group)
		if _, ok := p.groupNumbers[groupID]; !ok {
			p.groupNumbers[groupID] = sc.Group
			p.groupIDs = append(p.groupIDs, groupID)
		}
		p.groupSchools[groupID] = append(p.groupSchools[groupID], sc.ID)
		if _, ok := p.districtSchools[sc.District]; !ok {
			p.districtIDs = append(p.districtIDs, sc.District)
		}
		p.districtSchools[sc.District] = append(p.districtSchools[sc.District], sc.ID)
	}
	sort.Strings(p.classIDs)
	sort.Strings(p.schoolIDs)
	sort.Strings(p.groupIDs)
	sort.Strings(p.districtIDs)
	return p
}
