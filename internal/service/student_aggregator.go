package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// StudentAggregator validates every applicable task of a student and rolls the
// results up into sets and an overall status.
type StudentAggregator struct {
	catalog *TaskCatalog
	metrics *MetricsService
	logger  *zap.Logger
	clock   func() time.Time
}

// NewStudentAggregator constructs a StudentAggregator.
func NewStudentAggregator(catalog *TaskCatalog, metrics *MetricsService, logger *zap.Logger) *StudentAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentAggregator{
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Validate builds the record of one student for the grade of the answer set.
// Task variants that do not match the student's gender are left out entirely.
func (a *StudentAggregator) Validate(student models.RosterStudent, answers models.MergedAnswerSet) models.StudentValidationRecord {
	results := make(map[string]models.TaskValidationResult)
	for _, task := range a.catalog.ApplicableTasks(student.Gender) {
		result := ValidateTask(task, a.catalog.Scored(task.TaskID), answers)
		if result.Error != "" {
			a.logger.Warn("task evaluation error",
				zap.String("student_id", student.StudentID),
				zap.String("task_id", task.TaskID),
				zap.String("detail", result.Error))
		}
		a.metrics.RecordTaskResult(result)
		results[task.TaskID] = result
	}

	record := a.Aggregate(student.StudentID, answers.Grade, results, a.catalog.Sets())
	record.PairedCards = a.pairedCards(results)
	record.UnknownQuestions = a.unknownQuestions(answers)
	record.ConflictCount = len(answers.Conflicts)
	if n := len(record.UnknownQuestions); n > 0 {
		a.logger.Debug("answers for unknown questions",
			zap.String("code", appErrors.CodeUnknownQuestion),
			zap.String("student_id", student.StudentID),
			zap.Int("count", n))
	}
	return record
}

// Aggregate folds task results into set and overall status. Set members
// missing from results were filtered out by gender and are not counted. A set
// left with no tasks is reported complete and does not take part in the
// overall status.
func (a *StudentAggregator) Aggregate(studentID, grade string, results map[string]models.TaskValidationResult, sets []models.SetDefinition) models.StudentValidationRecord {
	record := models.StudentValidationRecord{
		StudentID:     studentID,
		Grade:         grade,
		Tasks:         results,
		Sets:          make([]models.SetStatus, 0, len(sets)),
		LastValidated: a.clock(),
	}

	for _, result := range results {
		record.ApplicableTasks++
		if result.StatusLight == models.StatusComplete {
			record.CompletedTasks++
		}
		if result.Termination.Triggered {
			record.HasTerminations = true
		}
		if result.HasPostTerminationAnswers {
			record.HasPostTerminationAnswers = true
		}
		if result.Error != "" {
			record.TaskErrors++
		}
	}
	if record.ApplicableTasks > 0 {
		record.CompletionPercentage = float64(record.CompletedTasks) / float64(record.ApplicableTasks) * 100
	}

	counted, complete, notStarted := 0, 0, 0
	for _, set := range sets {
		status := models.SetStatus{SetID: set.ID}
		for _, taskID := range set.TaskIDs {
			result, ok := results[taskID]
			if !ok {
				continue
			}
			status.TotalTasks++
			switch result.StatusLight {
			case models.StatusComplete:
				status.CompleteTasks++
			case models.StatusNotStarted:
				status.NotStartedTasks++
			case models.StatusPostTermination:
				status.PostTermTasks++
			default:
				status.IncompleteTasks++
			}
		}
		status.Status = rollUp(status.TotalTasks, status.CompleteTasks, status.NotStartedTasks)
		record.Sets = append(record.Sets, status)

		if status.TotalTasks == 0 {
			continue
		}
		counted++
		switch status.Status {
		case models.CompletionComplete:
			complete++
		case models.CompletionNotStarted:
			notStarted++
		}
	}
	if counted == 0 {
		record.OverallStatus = models.CompletionNotStarted
	} else {
		record.OverallStatus = rollUp(counted, complete, notStarted)
	}
	return record
}

// rollUp applies the all-or-nothing rule: complete only if every member is
// complete, not-started only if every member is not-started.
func rollUp(total, complete, notStarted int) models.Completion {
	switch {
	case complete == total:
		return models.CompletionComplete
	case notStarted == total:
		return models.CompletionNotStarted
	default:
		return models.CompletionIncomplete
	}
}

func (a *StudentAggregator) pairedCards(results map[string]models.TaskValidationResult) []models.PairedTaskCard {
	var cards []models.PairedTaskCard
	for _, task := range a.catalog.Tasks() {
		if task.PairedWith == "" || task.TaskID > task.PairedWith {
			continue
		}
		first, ok := results[task.TaskID]
		if !ok {
			continue
		}
		second, ok := results[task.PairedWith]
		if !ok {
			continue
		}
		cards = append(cards, models.PairedTaskCard{
			TaskIDs:       []string{first.TaskID, second.TaskID},
			StatusLight:   combineLights(first.StatusLight, second.StatusLight),
			AnsweredCount: first.AnsweredCount + second.AnsweredCount,
			TotalCount:    first.TotalCount + second.TotalCount,
			CorrectCount:  first.CorrectCount + second.CorrectCount,
			Partners:      []models.PartnerState{partnerState(first), partnerState(second)},
		})
	}
	return cards
}

func partnerState(r models.TaskValidationResult) models.PartnerState {
	return models.PartnerState{TaskID: r.TaskID, StatusLight: r.StatusLight, Termination: r.Termination, Timeout: r.Timeout}
}

func combineLights(a, b models.StatusLight) models.StatusLight {
	switch {
	case a == models.StatusPostTermination || b == models.StatusPostTermination:
		return models.StatusPostTermination
	case a == b:
		return a
	default:
		return models.StatusIncomplete
	}
}

func (a *StudentAggregator) unknownQuestions(answers models.MergedAnswerSet) []string {
	var unknown []string
	for questionID, rec := range answers.Answers {
		if rec.Answered() && !a.catalog.Known(questionID) {
			unknown = append(unknown, questionID)
		}
	}
	sort.Strings(unknown)
	return unknown
}
