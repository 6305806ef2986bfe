package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// Termination reasons recorded on results.
const (
	ReasonStageThreshold       = "stage-threshold-not-met"
	ReasonConsecutiveIncorrect = "consecutive-incorrect"
	ReasonProbeThreshold       = "probe-threshold-not-met"
)

// gate is the outcome of a termination rule over a task's scored questions.
// excluded marks positions that leave the totals.
type gate struct {
	termination models.Termination
	timeout     *models.Timeout
	excluded    []bool
}

func (g gate) stopped() bool {
	return g.termination.Triggered || (g.timeout != nil && g.timeout.TimedOut)
}

// ValidateTask evaluates one task against a merged answer set. Scored is the
// task's non-practice question list in order. It holds no state.
func ValidateTask(task models.TaskDefinition, scored []models.QuestionDefinition, answers models.MergedAnswerSet) models.TaskValidationResult {
	outcomes := make([]outcome, len(scored))
	var evalErrs []string
	for i, q := range scored {
		o, err := score(q, answers)
		if err != nil {
			evalErrs = append(evalErrs, err.Error())
		}
		outcomes[i] = o
	}

	result := models.TaskValidationResult{
		TaskID:   task.TaskID,
		RuleKind: task.RuleKind(),
	}
	g, err := evaluateRule(task.Rule, outcomes)
	if err != nil {
		evalErrs = append(evalErrs, err.Error())
	}
	result.Termination = g.termination
	result.Timeout = g.timeout

	for i, o := range outcomes {
		if g.excluded[i] {
			if o.answered() {
				result.HasPostTerminationAnswers = true
			}
			continue
		}
		result.TotalCount++
		if o.answered() {
			result.AnsweredCount++
		}
		if o == outcomeCorrect {
			result.CorrectCount++
		}
	}
	if result.AnsweredCount > 0 {
		result.Accuracy = float64(result.CorrectCount) / float64(result.AnsweredCount)
	}
	result.StatusLight = statusLight(result, g.stopped())
	if len(evalErrs) > 0 {
		result.Error = fmt.Sprintf("%s: %s", appErrors.CodeTaskEvaluationError, strings.Join(evalErrs, "; "))
	}
	return result
}

func statusLight(r models.TaskValidationResult, stopped bool) models.StatusLight {
	switch {
	case r.AnsweredCount == 0:
		return models.StatusNotStarted
	case stopped && r.HasPostTerminationAnswers:
		return models.StatusPostTermination
	case r.AnsweredCount == r.TotalCount:
		return models.StatusComplete
	default:
		return models.StatusIncomplete
	}
}

// evaluateRule dispatches on the closed set of rule variants. A nil rule never
// terminates.
func evaluateRule(rule models.TerminationRule, outcomes []outcome) (gate, error) {
	g := gate{
		termination: models.Termination{Index: -1},
		excluded:    make([]bool, len(outcomes)),
	}
	switch r := rule.(type) {
	case nil:
		return g, nil
	case models.StageBasedRule:
		return evaluateStages(r, outcomes, g), nil
	case models.ConsecutiveIncorrectRule:
		return evaluateConsecutive(r, outcomes, g), nil
	case models.ThresholdBasedRule:
		return evaluateThreshold(r, outcomes, g), nil
	case models.TimeoutBasedRule:
		return evaluateTimeout(outcomes, g), nil
	default:
		return g, fmt.Errorf("unsupported termination rule %T", rule)
	}
}

// evaluateStages fails a stage below MinCorrect once it is settled: either its
// threshold is out of reach, or the student has answered a later question, so
// the stage's blanks will not be filled. An unsettled stage stops evaluation
// without terminating.
func evaluateStages(r models.StageBasedRule, outcomes []outcome, g gate) gate {
	for _, st := range r.Stages {
		correct, open := 0, 0
		for i := st.StartIndex; i <= st.EndIndex && i < len(outcomes); i++ {
			switch outcomes[i] {
			case outcomeCorrect:
				correct++
			case outcomeUnanswered:
				open++
			}
		}
		if correct >= st.MinCorrect {
			continue
		}
		if correct+open >= st.MinCorrect && !answeredAfter(outcomes, st.EndIndex) {
			return g
		}
		return terminateAt(g, st.EndIndex, ReasonStageThreshold)
	}
	return g
}

// evaluateConsecutive counts runs of incorrect answers. An unanswered question
// breaks the run.
func evaluateConsecutive(r models.ConsecutiveIncorrectRule, outcomes []outcome, g gate) gate {
	run := 0
	for i, o := range outcomes {
		if o != outcomeIncorrect {
			run = 0
			continue
		}
		run++
		if run == r.Threshold {
			return terminateAt(g, i, ReasonConsecutiveIncorrect)
		}
	}
	return g
}

// evaluateThreshold ends the task before the skip block when too few probes
// pass. The decision waits until enough probes are answered to settle it.
func evaluateThreshold(r models.ThresholdBasedRule, outcomes []outcome, g gate) gate {
	passing, open := 0, 0
	for _, p := range r.ProbeIndexes {
		if p < 0 || p >= len(outcomes) {
			continue
		}
		switch outcomes[p] {
		case outcomeCorrect:
			passing++
		case outcomeUnanswered:
			open++
		}
	}
	if passing+open >= r.Threshold {
		return g
	}
	return terminateAt(g, r.SkipStart-1, ReasonProbeThreshold)
}

// evaluateTimeout classifies the answered pattern of a timed task. A contiguous
// answered prefix followed by an empty suffix is a proper timeout and shrinks
// the total; any earlier gap is a data-quality flag only.
func evaluateTimeout(outcomes []outcome, g gate) gate {
	last := -1
	for i, o := range outcomes {
		if o.answered() {
			last = i
		}
	}
	timeout := &models.Timeout{LastAnsweredIndex: last, DataQuality: models.DataQualityNone}
	g.timeout = timeout
	if last < 0 {
		return g
	}
	for i := 0; i < last; i++ {
		if !outcomes[i].answered() {
			timeout.DataQuality = models.DataQualityMissingDataGap
			return g
		}
	}
	if last == len(outcomes)-1 {
		return g
	}
	timeout.TimedOut = true
	timeout.DataQuality = models.DataQualityProperTimeout
	for i := last + 1; i < len(outcomes); i++ {
		g.excluded[i] = true
	}
	return g
}

func answeredAfter(outcomes []outcome, index int) bool {
	for i := index + 1; i < len(outcomes); i++ {
		if outcomes[i].answered() {
			return true
		}
	}
	return false
}

func terminateAt(g gate, index int, reason string) gate {
	g.termination = models.Termination{Triggered: true, Index: index, Reason: reason}
	for i := index + 1; i < len(g.excluded); i++ {
		g.excluded[i] = true
	}
	return g
}
