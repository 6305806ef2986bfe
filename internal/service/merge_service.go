package service

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// MergeService combines the answer records of both sources into one canonical
// answer set per student and grade.
type MergeService struct {
	resolver   GradeResolver
	precedence []models.PrecedenceRule
	metrics    *MetricsService
	logger     *zap.Logger
}

// MergeServiceParams groups the merge dependencies.
type MergeServiceParams struct {
	Resolver   GradeResolver
	Precedence []models.PrecedenceRule
	Metrics    *MetricsService
	Logger     *zap.Logger
}

// NewMergeService constructs a MergeService.
func NewMergeService(params MergeServiceParams) *MergeService {
	resolver := params.Resolver
	if resolver == nil {
		resolver = NewSchoolYearResolver(0)
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	precedence := append([]models.PrecedenceRule(nil), params.Precedence...)
	// Longest prefix first so the most specific rule matches.
	sort.SliceStable(precedence, func(i, j int) bool {
		return len(precedence[i].QuestionPrefix) > len(precedence[j].QuestionPrefix)
	})
	return &MergeService{resolver: resolver, precedence: precedence, metrics: params.Metrics, logger: logger}
}

// Merge partitions records by grade and merges each partition. The result is
// ordered by grade. Records are never mutated.
func (s *MergeService) Merge(studentID string, records []models.AnswerRecord) ([]models.MergedAnswerSet, error) {
	partitions := make(map[string][]models.AnswerRecord)
	for _, rec := range records {
		if !rec.Source.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("record %s/%s has unknown source %q", rec.SubmissionID, rec.QuestionID, rec.Source))
		}
		grade := s.resolver.Resolve(rec)
		if grade == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("record %s/%s has no resolvable grade", rec.SubmissionID, rec.QuestionID))
		}
		if rec.Grade != "" && rec.Grade != grade {
			s.logger.Error("grade partition disagrees with record label",
				zap.String("student_id", studentID),
				zap.String("submission_id", rec.SubmissionID),
				zap.String("record_grade", rec.Grade),
				zap.String("partition", grade))
			return nil, appErrors.Clone(appErrors.ErrCrossGradeContamination,
				fmt.Sprintf("student %s: submission %s labelled %s was placed in %s", studentID, rec.SubmissionID, rec.Grade, grade))
		}
		rec.Grade = grade
		partitions[grade] = append(partitions[grade], rec)
	}

	grades := make([]string, 0, len(partitions))
	for grade := range partitions {
		grades = append(grades, grade)
	}
	sort.Strings(grades)

	sets := make([]models.MergedAnswerSet, 0, len(grades))
	for _, grade := range grades {
		set, err := s.mergeGrade(studentID, grade, partitions[grade])
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (s *MergeService) mergeGrade(studentID, grade string, records []models.AnswerRecord) (models.MergedAnswerSet, error) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		if a.Source != b.Source {
			return a.Source == models.SourcePrimary
		}
		return a.SubmissionID < b.SubmissionID
	})

	type contenders struct {
		first    *models.AnswerRecord
		bySource map[models.Source]*models.AnswerRecord
	}
	byQuestion := make(map[string]*contenders)
	for i := range records {
		rec := &records[i]
		if rec.Grade != grade {
			return models.MergedAnswerSet{}, appErrors.Clone(appErrors.ErrCrossGradeContamination,
				fmt.Sprintf("student %s: record of grade %s reached partition %s", studentID, rec.Grade, grade))
		}
		c, ok := byQuestion[rec.QuestionID]
		if !ok {
			c = &contenders{bySource: make(map[models.Source]*models.AnswerRecord, 2)}
			byQuestion[rec.QuestionID] = c
		}
		if !rec.Answered() {
			continue
		}
		if c.first == nil {
			c.first = rec
		}
		if _, seen := c.bySource[rec.Source]; !seen {
			c.bySource[rec.Source] = rec
		}
	}

	set := models.MergedAnswerSet{
		StudentID: studentID,
		Grade:     grade,
		Answers:   make(map[string]models.AnswerRecord, len(byQuestion)),
		Conflicts: []models.Conflict{},
	}
	for questionID, c := range byQuestion {
		if c.first == nil {
			continue
		}
		chosen := c.first
		overridden := false
		if rule, ok := s.ruleFor(questionID); ok {
			if winner, has := c.bySource[rule.Winner]; has {
				chosen = winner
				overridden = true
			}
		}
		set.Answers[questionID] = *chosen

		primary, hasPrimary := c.bySource[models.SourcePrimary]
		secondary, hasSecondary := c.bySource[models.SourceSecondary]
		if !hasPrimary || !hasSecondary {
			continue
		}
		if strings.TrimSpace(primary.Value) == strings.TrimSpace(secondary.Value) {
			continue
		}
		set.Conflicts = append(set.Conflicts, models.Conflict{
			QuestionID:     questionID,
			PrimaryValue:   primary.Value,
			SecondaryValue: secondary.Value,
			Resolution:     resolutionFor(chosen.Source, overridden),
		})
	}
	sort.Slice(set.Conflicts, func(i, j int) bool {
		return set.Conflicts[i].QuestionID < set.Conflicts[j].QuestionID
	})

	if len(set.Conflicts) > 0 {
		s.metrics.RecordConflicts(set.Conflicts)
		s.logger.Debug("merge conflicts resolved",
			zap.String("code", appErrors.CodeMergeConflict),
			zap.String("student_id", studentID),
			zap.String("grade", grade),
			zap.Int("conflicts", len(set.Conflicts)))
	}
	return set, nil
}

func (s *MergeService) ruleFor(questionID string) (models.PrecedenceRule, bool) {
	for _, rule := range s.precedence {
		if strings.HasPrefix(questionID, rule.QuestionPrefix) {
			return rule, true
		}
	}
	return models.PrecedenceRule{}, false
}

func resolutionFor(source models.Source, overridden bool) models.Resolution {
	switch {
	case overridden && source == models.SourceSecondary:
		return models.ResolutionSecondaryOverride
	case overridden:
		return models.ResolutionPrimaryOverride
	case source == models.SourceSecondary:
		return models.ResolutionSecondaryWins
	default:
		return models.ResolutionPrimaryWins
	}
}
