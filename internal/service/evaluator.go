package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/fourset-checker/internal/models"
)

type outcome uint8

const (
	outcomeUnanswered outcome = iota
	outcomeCorrect
	outcomeIncorrect
)

func (o outcome) answered() bool { return o != outcomeUnanswered }

// checkEvaluator reports evaluators that can never score an answer.
func checkEvaluator(e models.Evaluator) error {
	switch e.Kind {
	case models.EvaluatorAnyNonEmpty:
		return nil
	case models.EvaluatorExact, models.EvaluatorRadioText:
		if strings.TrimSpace(e.Expected) == "" {
			return fmt.Errorf("%s evaluator has no expected value", e.Kind)
		}
		return nil
	case models.EvaluatorNumeric:
		if _, err := strconv.ParseFloat(strings.TrimSpace(e.Expected), 64); err != nil {
			return fmt.Errorf("numeric evaluator expects %q: %w", e.Expected, err)
		}
		if e.Tolerance < 0 || math.IsNaN(e.Tolerance) {
			return fmt.Errorf("numeric evaluator has negative tolerance %v", e.Tolerance)
		}
		return nil
	default:
		return fmt.Errorf("unknown evaluator kind %q", e.Kind)
	}
}

// score evaluates one question. A malformed evaluator scores the question as
// unanswered and returns the reason.
func score(q models.QuestionDefinition, answers models.MergedAnswerSet) (outcome, error) {
	if err := checkEvaluator(q.Expected); err != nil {
		return outcomeUnanswered, fmt.Errorf("question %s: %w", q.ID, err)
	}
	value, answered := answers.Value(q.ID)

	switch q.Expected.Kind {
	case models.EvaluatorRadioText:
		if !answered {
			// Free text in the companion means the child gave an answer
			// outside the offered choices.
			if _, text := answers.Value(q.Expected.CompanionID); text {
				return outcomeIncorrect, nil
			}
			return outcomeUnanswered, nil
		}
		return match(value == strings.TrimSpace(q.Expected.Expected)), nil
	case models.EvaluatorAnyNonEmpty:
		if !answered {
			return outcomeUnanswered, nil
		}
		return outcomeCorrect, nil
	case models.EvaluatorNumeric:
		if !answered {
			return outcomeUnanswered, nil
		}
		expected, _ := strconv.ParseFloat(strings.TrimSpace(q.Expected.Expected), 64)
		got, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return outcomeIncorrect, nil
		}
		return match(math.Abs(got-expected) <= q.Expected.Tolerance), nil
	default:
		if !answered {
			return outcomeUnanswered, nil
		}
		return match(value == strings.TrimSpace(q.Expected.Expected)), nil
	}
}

func match(ok bool) outcome {
	if ok {
		return outcomeCorrect
	}
	return outcomeIncorrect
}
