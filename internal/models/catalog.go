package models

import "strings"

// EvaluatorKind selects how a question's answer is scored.
type EvaluatorKind string

const (
	EvaluatorExact       EvaluatorKind = "exact"
	EvaluatorNumeric     EvaluatorKind = "numeric"
	EvaluatorAnyNonEmpty EvaluatorKind = "any-non-empty"
	// EvaluatorRadioText is a choice question whose "other" option carries a
	// free-text companion question. The companion is display-only.
	EvaluatorRadioText EvaluatorKind = "radio-text"
)

// Evaluator describes the expected answer of a question.
type Evaluator struct {
	Kind        EvaluatorKind `json:"kind" yaml:"kind"`
	Expected    string        `json:"expected,omitempty" yaml:"expected,omitempty"`
	Tolerance   float64       `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	CompanionID string        `json:"companion_id,omitempty" yaml:"companion_id,omitempty"`
}

// QuestionDefinition is one question of a task.
type QuestionDefinition struct {
	ID         string    `json:"id"`
	OrderIndex int       `json:"order_index"`
	Expected   Evaluator `json:"expected"`
	IsPractice bool      `json:"is_practice"`
}

// GenderCondition restricts a task variant to one gender.
type GenderCondition string

const (
	GenderAny    GenderCondition = "none"
	GenderMale   GenderCondition = "male-only"
	GenderFemale GenderCondition = "female-only"
)

// Applies reports whether a task with this condition is evaluated for the
// given roster gender.
func (g GenderCondition) Applies(gender string) bool {
	switch g {
	case GenderMale:
		return NormaliseGender(gender) == "M"
	case GenderFemale:
		return NormaliseGender(gender) == "F"
	default:
		return true
	}
}

// NormaliseGender maps roster spellings onto "M", "F" or "".
func NormaliseGender(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "male", "boy":
		return "M"
	case "f", "female", "girl":
		return "F"
	default:
		return ""
	}
}

// TaskDefinition is an immutable catalog entry.
type TaskDefinition struct {
	TaskID     string               `json:"task_id"`
	Title      string               `json:"title"`
	Questions  []QuestionDefinition `json:"questions"`
	Rule       TerminationRule      `json:"-"`
	Gender     GenderCondition      `json:"gender_condition"`
	PairedWith string               `json:"paired_with,omitempty"`
}

// RuleKind reports the termination rule kind, RuleNone when the task has no rule.
func (t TaskDefinition) RuleKind() RuleKind {
	if t.Rule == nil {
		return RuleNone
	}
	return t.Rule.Kind()
}

// SetDefinition is one of the four fixed task groupings.
type SetDefinition struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	TaskIDs []string `json:"task_ids"`
}

// PrecedenceRule forces a source to win merges for every question whose ID
// starts with QuestionPrefix.
type PrecedenceRule struct {
	QuestionPrefix string `json:"question_prefix"`
	Winner         Source `json:"winner"`
}
