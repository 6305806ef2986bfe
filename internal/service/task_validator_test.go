package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fourset-checker/internal/models"
)

func ervAnswers() map[string]string {
	values := map[string]string{}
	fill(values, "ERV_Q", 1, 6, "1")
	fill(values, "ERV_Q", 7, 12, "0")
	fill(values, "ERV_Q", 13, 14, "1")
	fill(values, "ERV_Q", 15, 24, "0")
	return values
}

func TestValidateTaskStageBasedTermination(t *testing.T) {
	catalog := testCatalog(t)

	result := validateTask(t, catalog, "ERV", ervAnswers())

	assert.Equal(t, models.RuleStageBased, result.RuleKind)
	assert.True(t, result.Termination.Triggered)
	assert.Equal(t, 23, result.Termination.Index)
	assert.Equal(t, ReasonStageThreshold, result.Termination.Reason)
	assert.Equal(t, 24, result.TotalCount)
	assert.Equal(t, 24, result.AnsweredCount)
	assert.Equal(t, 8, result.CorrectCount)
	assert.InDelta(t, 8.0/24.0, result.Accuracy, 1e-9)
	assert.Equal(t, models.StatusComplete, result.StatusLight)
	assert.False(t, result.HasPostTerminationAnswers)
}

func TestValidateTaskPostTerminationAnswers(t *testing.T) {
	catalog := testCatalog(t)
	values := ervAnswers()
	values["ERV_Q25"] = "1"

	result := validateTask(t, catalog, "ERV", values)

	assert.True(t, result.HasPostTerminationAnswers)
	assert.Equal(t, models.StatusPostTermination, result.StatusLight)
	assert.Equal(t, 24, result.TotalCount)
	assert.Equal(t, 24, result.AnsweredCount)
}

func TestValidateTaskStageUndecidedDoesNotTerminate(t *testing.T) {
	catalog := testCatalog(t)
	values := fill(map[string]string{}, "ERV_Q", 1, 3, "1")

	result := validateTask(t, catalog, "ERV", values)

	assert.False(t, result.Termination.Triggered)
	assert.Equal(t, -1, result.Termination.Index)
	assert.Equal(t, 36, result.TotalCount)
	assert.Equal(t, 3, result.AnsweredCount)
	assert.Equal(t, models.StatusIncomplete, result.StatusLight)
}

func TestValidateTaskStageSettledByLaterAnswers(t *testing.T) {
	catalog := testCatalog(t)
	values := fill(map[string]string{}, "ERV_Q", 1, 4, "1")
	values["ERV_Q13"] = "1"

	result := validateTask(t, catalog, "ERV", values)

	assert.True(t, result.Termination.Triggered)
	assert.Equal(t, 11, result.Termination.Index)
	assert.Equal(t, ReasonStageThreshold, result.Termination.Reason)
	assert.Equal(t, 12, result.TotalCount)
	assert.Equal(t, 4, result.AnsweredCount)
	assert.True(t, result.HasPostTerminationAnswers)
	assert.Equal(t, models.StatusPostTermination, result.StatusLight)
}

func TestValidateTaskIgnoresPracticeQuestions(t *testing.T) {
	catalog := testCatalog(t)

	result := validateTask(t, catalog, "ERV", map[string]string{"ERV_P1": "cat"})

	assert.Equal(t, 0, result.AnsweredCount)
	assert.Equal(t, models.StatusNotStarted, result.StatusLight)
}

func TestValidateTaskConsecutiveIncorrect(t *testing.T) {
	catalog := testCatalog(t)
	values := fill(map[string]string{}, "CWR_Q", 1, 14, "1")
	fill(values, "CWR_Q", 15, 24, "0")

	result := validateTask(t, catalog, "CWR", values)

	assert.True(t, result.Termination.Triggered)
	assert.Equal(t, 23, result.Termination.Index)
	assert.Equal(t, ReasonConsecutiveIncorrect, result.Termination.Reason)
	assert.Equal(t, 24, result.TotalCount)
	assert.Equal(t, models.StatusComplete, result.StatusLight)
}

func TestValidateTaskConsecutiveRunBrokenByGap(t *testing.T) {
	catalog := testCatalog(t)
	values := fill(map[string]string{}, "CWR_Q", 1, 5, "0")
	fill(values, "CWR_Q", 7, 11, "0")

	result := validateTask(t, catalog, "CWR", values)

	assert.False(t, result.Termination.Triggered)
	assert.Equal(t, 60, result.TotalCount)
	assert.Equal(t, 10, result.AnsweredCount)
	assert.Equal(t, 0, result.CorrectCount)
}

func TestValidateTaskThresholdSkipsBlock(t *testing.T) {
	catalog := testCatalog(t)
	values := map[string]string{
		"CM_Q1": "1", "CM_Q2": "0", "CM_Q3": "0", "CM_Q4": "1",
		"CM_Q8": "1", "CM_Q9": "0",
	}

	result := validateTask(t, catalog, "CM", values)

	assert.True(t, result.Termination.Triggered)
	assert.Equal(t, 3, result.Termination.Index)
	assert.Equal(t, ReasonProbeThreshold, result.Termination.Reason)
	assert.Equal(t, result.Termination.Index+1, result.TotalCount)
	assert.Equal(t, 4, result.AnsweredCount)
	assert.Equal(t, 2, result.CorrectCount)
	assert.True(t, result.HasPostTerminationAnswers)
	assert.Equal(t, models.StatusPostTermination, result.StatusLight)

	delete(values, "CM_Q8")
	delete(values, "CM_Q9")
	result = validateTask(t, catalog, "CM", values)
	assert.Equal(t, 4, result.TotalCount)
	assert.False(t, result.HasPostTerminationAnswers)
	assert.Equal(t, models.StatusComplete, result.StatusLight)
}

func TestValidateTaskThresholdPassed(t *testing.T) {
	catalog := testCatalog(t)
	values := fill(map[string]string{}, "CM_Q", 1, 4, "1")

	result := validateTask(t, catalog, "CM", values)

	assert.False(t, result.Termination.Triggered)
	assert.Equal(t, 9, result.TotalCount)
	assert.Equal(t, 4, result.AnsweredCount)
}

func TestValidateTaskThresholdWaitsForOpenProbes(t *testing.T) {
	catalog := testCatalog(t)

	result := validateTask(t, catalog, "CM", map[string]string{"CM_Q1": "1", "CM_Q2": "1"})

	assert.False(t, result.Termination.Triggered)
	assert.Equal(t, 9, result.TotalCount)
}

func TestValidateTaskProperTimeout(t *testing.T) {
	catalog := testCatalog(t)
	values := fill(map[string]string{}, "SYM_Q", 1, 5, "1")

	result := validateTask(t, catalog, "SYM", values)

	require.NotNil(t, result.Timeout)
	assert.True(t, result.Timeout.TimedOut)
	assert.Equal(t, models.DataQualityProperTimeout, result.Timeout.DataQuality)
	assert.Equal(t, 4, result.Timeout.LastAnsweredIndex)
	assert.False(t, result.Termination.Triggered)
	assert.Equal(t, 5, result.TotalCount)
	assert.Equal(t, 5, result.AnsweredCount)
	assert.Equal(t, models.StatusComplete, result.StatusLight)
	assert.True(t, result.Stopped())
}

func TestValidateTaskMissingDataGap(t *testing.T) {
	catalog := testCatalog(t)
	values := map[string]string{"NONSYM_Q1": "1", "NONSYM_Q2": "1", "NONSYM_Q4": "1"}

	result := validateTask(t, catalog, "NONSYM", values)

	require.NotNil(t, result.Timeout)
	assert.False(t, result.Timeout.TimedOut)
	assert.Equal(t, models.DataQualityMissingDataGap, result.Timeout.DataQuality)
	assert.Equal(t, 8, result.TotalCount)
	assert.Equal(t, 3, result.AnsweredCount)
	assert.Equal(t, models.StatusIncomplete, result.StatusLight)
}

func TestValidateTaskTimedTaskFullyAnswered(t *testing.T) {
	catalog := testCatalog(t)

	result := validateTask(t, catalog, "NONSYM", fill(map[string]string{}, "NONSYM_Q", 1, 8, "1"))

	require.NotNil(t, result.Timeout)
	assert.False(t, result.Timeout.TimedOut)
	assert.Equal(t, models.DataQualityNone, result.Timeout.DataQuality)
	assert.Equal(t, models.StatusComplete, result.StatusLight)
}

func TestValidateTaskRadioTextAndNumeric(t *testing.T) {
	catalog := testCatalog(t)

	result := validateTask(t, catalog, "ToM", map[string]string{"ToM_Q1_TEXT": "pinkish", "ToM_Q2": "3.4"})
	assert.Equal(t, 2, result.AnsweredCount)
	assert.Equal(t, 1, result.CorrectCount)

	result = validateTask(t, catalog, "ToM", map[string]string{"ToM_Q1": "Red", "ToM_Q2": "three"})
	assert.Equal(t, 2, result.AnsweredCount)
	assert.Equal(t, 1, result.CorrectCount)
	assert.Empty(t, result.Error)
}

func TestValidateTaskMalformedEvaluator(t *testing.T) {
	task := models.TaskDefinition{TaskID: "BAD"}
	scored := []models.QuestionDefinition{
		{ID: "BAD_Q1", Expected: models.Evaluator{Kind: models.EvaluatorNumeric, Expected: "abc"}},
		{ID: "BAD_Q2", OrderIndex: 1, Expected: exactKey("1")},
	}

	result := ValidateTask(task, scored, answerSet(map[string]string{"BAD_Q1": "2", "BAD_Q2": "1"}))

	assert.True(t, strings.HasPrefix(result.Error, "TASK_EVALUATION_ERROR: "), result.Error)
	assert.Contains(t, result.Error, "BAD_Q1")
	assert.Equal(t, 1, result.AnsweredCount)
	assert.Equal(t, 1, result.CorrectCount)
}

func TestValidateTaskCountsStayOrdered(t *testing.T) {
	catalog := testCatalog(t)
	cases := map[string]map[string]string{
		"ERV":      ervAnswers(),
		"CWR":      fill(map[string]string{}, "CWR_Q", 1, 30, "0"),
		"CM":       {"CM_Q1": "0", "CM_Q7": "1"},
		"SYM":      {"SYM_Q2": "1"},
		"TGMD":     {"TGMD_1": "1", "TGMD_3": "0"},
		"TEC_Male": {"TEC_M_Q1": "x"},
	}
	for taskID, values := range cases {
		result := validateTask(t, catalog, taskID, values)
		assert.LessOrEqual(t, result.AnsweredCount, result.TotalCount, taskID)
		assert.LessOrEqual(t, result.CorrectCount, result.AnsweredCount, taskID)
		if result.Termination.Triggered {
			assert.Equal(t, result.Termination.Index+1, result.TotalCount, taskID)
		}
	}
}
