package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fourset-checker/internal/models"
)

const testGrade = "K3"

func exactKey(v string) models.Evaluator {
	return models.Evaluator{Kind: models.EvaluatorExact, Expected: v}
}

// testCatalogDocument mirrors the shape of the production catalog at a smaller scale.
func testCatalogDocument() *models.CatalogDocument {
	return &models.CatalogDocument{
		Version: 1,
		Sets: []models.SetSpec{
			{ID: "set1", Title: "Language", Tasks: []string{"ERV", "CWR"}},
			{ID: "set2", Title: "Cognition", Tasks: []string{"CM", "SYM", "NONSYM"}},
			{ID: "set3", Title: "Motor and social", Tasks: []string{"TGMD", "ToM"}},
			{ID: "set4", Title: "Executive", Tasks: []string{"TEC_Male", "TEC_Female"}},
		},
		Precedence: []models.PrecedenceSpec{{Prefix: "TGMD_", Winner: "secondary"}},
		Tasks: []models.TaskSpec{
			{
				ID:        "ERV",
				Questions: []models.QuestionSpec{{ID: "ERV_P1", Practice: true}},
				Generate:  &models.GenerateSpec{Prefix: "ERV_Q", Count: 36, Expected: exactKey("1")},
				Rule: &models.RuleSpec{Type: "stage-based", Stages: []models.Stage{
					{StartIndex: 0, EndIndex: 11, MinCorrect: 5},
					{StartIndex: 12, EndIndex: 23, MinCorrect: 5},
					{StartIndex: 24, EndIndex: 35, MinCorrect: 5},
				}},
			},
			{
				ID:       "CWR",
				Generate: &models.GenerateSpec{Prefix: "CWR_Q", Count: 60, Expected: exactKey("1")},
				Rule:     &models.RuleSpec{Type: "consecutive-incorrect", Threshold: 10},
			},
			{
				ID:       "CM",
				Generate: &models.GenerateSpec{Prefix: "CM_Q", Count: 9, Expected: exactKey("1")},
				Rule:     &models.RuleSpec{Type: "threshold-based", Probes: []int{0, 1, 2, 3}, Threshold: 4, SkipStart: 4},
			},
			{
				ID:         "SYM",
				PairedWith: "NONSYM",
				Generate:   &models.GenerateSpec{Prefix: "SYM_Q", Count: 8, Expected: exactKey("1")},
				Rule:       &models.RuleSpec{Type: "timeout-based", TimeLimitSeconds: 120},
			},
			{
				ID:         "NONSYM",
				PairedWith: "SYM",
				Generate:   &models.GenerateSpec{Prefix: "NONSYM_Q", Count: 8, Expected: exactKey("1")},
				Rule:       &models.RuleSpec{Type: "timeout-based", TimeLimitSeconds: 120},
			},
			{
				ID:       "TGMD",
				Generate: &models.GenerateSpec{Prefix: "TGMD_", Count: 3, Expected: exactKey("1")},
			},
			{
				ID: "ToM",
				Questions: []models.QuestionSpec{
					{ID: "ToM_Q1", Expected: models.Evaluator{Kind: models.EvaluatorRadioText, Expected: "Red"}},
					{ID: "ToM_Q2", Expected: models.Evaluator{Kind: models.EvaluatorNumeric, Expected: "3", Tolerance: 0.5}},
				},
			},
			{
				ID:       "TEC_Male",
				Gender:   "male-only",
				Generate: &models.GenerateSpec{Prefix: "TEC_M_Q", Count: 2},
			},
			{
				ID:       "TEC_Female",
				Gender:   "female-only",
				Generate: &models.GenerateSpec{Prefix: "TEC_F_Q", Count: 2},
			},
		},
	}
}

func testCatalog(t *testing.T) *TaskCatalog {
	t.Helper()
	catalog, err := NewCatalogService(nil, nil, nil).Build(testCatalogDocument())
	require.NoError(t, err)
	return catalog
}

// answerSet builds a merged set directly, bypassing the merger.
func answerSet(values map[string]string) models.MergedAnswerSet {
	set := models.MergedAnswerSet{
		StudentID: "S001",
		Grade:     testGrade,
		Answers:   make(map[string]models.AnswerRecord, len(values)),
		Conflicts: []models.Conflict{},
	}
	for id, v := range values {
		set.Answers[id] = models.AnswerRecord{QuestionID: id, Value: v, Source: models.SourcePrimary, Grade: testGrade}
	}
	return set
}

// fill sets prefix+N to value for N in [from, to].
func fill(values map[string]string, prefix string, from, to int, value string) map[string]string {
	for i := from; i <= to; i++ {
		values[fmt.Sprintf("%s%d", prefix, i)] = value
	}
	return values
}

func validateTask(t *testing.T, catalog *TaskCatalog, taskID string, values map[string]string) models.TaskValidationResult {
	t.Helper()
	task, ok := catalog.Task(taskID)
	require.True(t, ok, "task %s", taskID)
	return ValidateTask(task, catalog.Scored(taskID), answerSet(values))
}

func record(source models.Source, submission, question, value string, at time.Time) models.AnswerRecord {
	return models.AnswerRecord{
		QuestionID:   question,
		Value:        value,
		Source:       source,
		SubmittedAt:  at,
		SubmissionID: submission,
		Grade:        testGrade,
	}
}
