package models

// RuleKind tags the termination rule variants.
type RuleKind string

const (
	RuleNone                 RuleKind = "none"
	RuleStageBased           RuleKind = "stage-based"
	RuleConsecutiveIncorrect RuleKind = "consecutive-incorrect"
	RuleThresholdBased       RuleKind = "threshold-based"
	RuleTimeoutBased         RuleKind = "timeout-based"
)

// TerminationRule is the closed set of early-stop rules. Only the types in this
// file implement it.
type TerminationRule interface {
	Kind() RuleKind
	terminationRule()
}

// Stage is an inclusive range of scored question indexes.
type Stage struct {
	StartIndex int `json:"start_index" yaml:"start" validate:"gte=0"`
	EndIndex   int `json:"end_index" yaml:"end" validate:"gtefield=StartIndex"`
	MinCorrect int `json:"min_correct" yaml:"min_correct" validate:"gte=1"`
}

// StageBasedRule stops at the last question of the first stage whose correct
// count falls below its threshold.
type StageBasedRule struct {
	Stages []Stage
}

// ConsecutiveIncorrectRule stops once Threshold answers in a row are incorrect.
type ConsecutiveIncorrectRule struct {
	Threshold int
}

// ThresholdBasedRule ends the task after question SkipStart-1 when fewer
// than Threshold probe questions pass. Everything from SkipStart on is skipped.
type ThresholdBasedRule struct {
	ProbeIndexes []int
	Threshold    int
	SkipStart    int
}

// TimeoutBasedRule marks a timed task of a pair. The budget is informational;
// timeouts are detected from the answered/unanswered pattern.
type TimeoutBasedRule struct {
	TimeLimitSeconds int
}

func (StageBasedRule) Kind() RuleKind           { return RuleStageBased }
func (ConsecutiveIncorrectRule) Kind() RuleKind { return RuleConsecutiveIncorrect }
func (ThresholdBasedRule) Kind() RuleKind       { return RuleThresholdBased }
func (TimeoutBasedRule) Kind() RuleKind         { return RuleTimeoutBased }

func (StageBasedRule) terminationRule()           {}
func (ConsecutiveIncorrectRule) terminationRule() {}
func (ThresholdBasedRule) terminationRule()       {}
func (TimeoutBasedRule) terminationRule()         {}
