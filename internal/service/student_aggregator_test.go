package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fourset-checker/internal/models"
)

func setStatus(t *testing.T, record models.StudentValidationRecord, setID string) models.SetStatus {
	t.Helper()
	for _, s := range record.Sets {
		if s.SetID == setID {
			return s
		}
	}
	t.Fatalf("set %s missing from record", setID)
	return models.SetStatus{}
}

func TestStudentAggregatorFiltersByGender(t *testing.T) {
	catalog := testCatalog(t)
	aggregator := NewStudentAggregator(catalog, nil, nil)

	boy := aggregator.Validate(models.RosterStudent{StudentID: "S001", Gender: "male"}, answerSet(nil))
	girl := aggregator.Validate(models.RosterStudent{StudentID: "S002", Gender: "F"}, answerSet(nil))

	assert.Contains(t, boy.Tasks, "TEC_Male")
	assert.NotContains(t, boy.Tasks, "TEC_Female")
	assert.Contains(t, girl.Tasks, "TEC_Female")
	assert.NotContains(t, girl.Tasks, "TEC_Male")
	assert.Equal(t, 1, setStatus(t, boy, "set4").TotalTasks)
	assert.Equal(t, 8, boy.ApplicableTasks)
	assert.Equal(t, models.CompletionNotStarted, boy.OverallStatus)
	assert.False(t, boy.HasData())
}

func fullAnswers() map[string]string {
	values := map[string]string{}
	fill(values, "ERV_Q", 1, 36, "1")
	fill(values, "CWR_Q", 1, 60, "1")
	fill(values, "CM_Q", 1, 9, "1")
	fill(values, "SYM_Q", 1, 8, "1")
	fill(values, "NONSYM_Q", 1, 8, "1")
	fill(values, "TGMD_", 1, 3, "1")
	fill(values, "TEC_M_Q", 1, 2, "x")
	values["ToM_Q1"] = "Red"
	values["ToM_Q2"] = "3"
	return values
}

func TestStudentAggregatorCompleteStudent(t *testing.T) {
	catalog := testCatalog(t)
	aggregator := NewStudentAggregator(catalog, nil, nil)

	record := aggregator.Validate(models.RosterStudent{StudentID: "S001", Gender: "M"}, answerSet(fullAnswers()))

	assert.Equal(t, models.CompletionComplete, record.OverallStatus)
	assert.Equal(t, record.ApplicableTasks, record.CompletedTasks)
	assert.InDelta(t, 100, record.CompletionPercentage, 1e-9)
	for _, s := range record.Sets {
		assert.Equal(t, models.CompletionComplete, s.Status, s.SetID)
	}
	assert.False(t, record.HasTerminations)
	assert.Empty(t, record.UnknownQuestions)
}

func TestStudentAggregatorIncompleteWhenOneSetMissing(t *testing.T) {
	catalog := testCatalog(t)
	aggregator := NewStudentAggregator(catalog, nil, nil)
	values := fullAnswers()
	for id := range values {
		if id[:4] == "TGMD" || id[:3] == "ToM" {
			delete(values, id)
		}
	}

	record := aggregator.Validate(models.RosterStudent{StudentID: "S001", Gender: "M"}, answerSet(values))

	assert.Equal(t, models.CompletionNotStarted, setStatus(t, record, "set3").Status)
	assert.Equal(t, models.CompletionIncomplete, record.OverallStatus)
	assert.True(t, record.HasData())
}

func TestStudentAggregatorFlagsTerminationsAndUnknownQuestions(t *testing.T) {
	catalog := testCatalog(t)
	aggregator := NewStudentAggregator(catalog, nil, nil)
	values := ervAnswers()
	values["ERV_Q30"] = "1"
	values["LEGACY_Q9"] = "1"
	values["ToM_Q1_TEXT"] = "blue"
	values["AAA_NOTE"] = "remark"

	record := aggregator.Validate(models.RosterStudent{StudentID: "S001", Gender: "F"}, answerSet(values))

	assert.True(t, record.HasTerminations)
	assert.True(t, record.HasPostTerminationAnswers)
	assert.Equal(t, []string{"AAA_NOTE", "LEGACY_Q9"}, record.UnknownQuestions)
	assert.Equal(t, models.StatusPostTermination, record.Tasks["ERV"].StatusLight)
}

func TestStudentAggregatorPairedCards(t *testing.T) {
	catalog := testCatalog(t)
	aggregator := NewStudentAggregator(catalog, nil, nil)
	values := fill(map[string]string{}, "SYM_Q", 1, 5, "1")
	fill(values, "NONSYM_Q", 1, 8, "1")

	record := aggregator.Validate(models.RosterStudent{StudentID: "S001", Gender: "M"}, answerSet(values))

	require.Len(t, record.PairedCards, 1)
	card := record.PairedCards[0]
	assert.Equal(t, []string{"NONSYM", "SYM"}, card.TaskIDs)
	assert.Equal(t, models.StatusComplete, card.StatusLight)
	assert.Equal(t, 13, card.AnsweredCount)
	assert.Equal(t, 13, card.TotalCount)
	require.Len(t, card.Partners, 2)
	require.NotNil(t, card.Partners[1].Timeout)
	assert.True(t, card.Partners[1].Timeout.TimedOut)
	// A proper timeout is not a rule termination.
	assert.False(t, record.HasTerminations)
}

func TestAggregateEmptySetIsCompleteButNotCounted(t *testing.T) {
	aggregator := NewStudentAggregator(testCatalog(t), nil, nil)
	results := map[string]models.TaskValidationResult{
		"A": {TaskID: "A", StatusLight: models.StatusComplete, AnsweredCount: 3, TotalCount: 3},
		"B": {TaskID: "B", StatusLight: models.StatusNotStarted, TotalCount: 4},
	}
	sets := []models.SetDefinition{
		{ID: "one", TaskIDs: []string{"A"}},
		{ID: "two", TaskIDs: []string{"FILTERED"}},
		{ID: "three", TaskIDs: []string{"B"}},
	}

	record := aggregator.Aggregate("S001", testGrade, results, sets)

	assert.Equal(t, models.CompletionComplete, setStatus(t, record, "two").Status)
	assert.Equal(t, 0, setStatus(t, record, "two").TotalTasks)
	assert.Equal(t, models.CompletionNotStarted, setStatus(t, record, "three").Status)
	assert.Equal(t, models.CompletionIncomplete, record.OverallStatus)

	delete(results, "B")
	record = aggregator.Aggregate("S001", testGrade, results, sets[:2])
	assert.Equal(t, models.CompletionComplete, record.OverallStatus)

	record = aggregator.Aggregate("S001", testGrade, map[string]models.TaskValidationResult{}, sets[1:2])
	assert.Equal(t, models.CompletionNotStarted, record.OverallStatus)
}

func TestAggregatePostTerminationCountsAsIncompleteSet(t *testing.T) {
	aggregator := NewStudentAggregator(testCatalog(t), nil, nil)
	results := map[string]models.TaskValidationResult{
		"A": {TaskID: "A", StatusLight: models.StatusComplete},
		"B": {TaskID: "B", StatusLight: models.StatusPostTermination, HasPostTerminationAnswers: true},
	}

	record := aggregator.Aggregate("S001", testGrade, results, []models.SetDefinition{{ID: "one", TaskIDs: []string{"A", "B"}}})

	status := setStatus(t, record, "one")
	assert.Equal(t, 1, status.PostTermTasks)
	assert.Equal(t, models.CompletionIncomplete, status.Status)
	assert.Equal(t, status.TotalTasks, status.CompleteTasks+status.IncompleteTasks+status.NotStartedTasks+status.PostTermTasks)
}
