package models

import "time"

// StatusLight is the four-valued per-task completion classification.
type StatusLight string

const (
	StatusNotStarted      StatusLight = "not-started"
	StatusIncomplete      StatusLight = "incomplete"
	StatusComplete        StatusLight = "complete"
	StatusPostTermination StatusLight = "post-termination"
)

// Completion classifies sets, students and aggregates.
type Completion string

const (
	CompletionNotStarted Completion = "not-started"
	CompletionIncomplete Completion = "incomplete"
	CompletionComplete   Completion = "complete"
	// CompletionError marks an aggregate that could not be computed.
	CompletionError Completion = "error"
)

// DataQuality classifies the answered pattern of a timed task.
type DataQuality string

const (
	DataQualityNone           DataQuality = "none"
	DataQualityProperTimeout  DataQuality = "proper-timeout"
	DataQualityMissingDataGap DataQuality = "missing-data-gap"
)

// Termination describes a rule-triggered stop. Index is a 0-based position in
// the task's scored question list, -1 when not triggered.
type Termination struct {
	Triggered bool   `json:"triggered"`
	Index     int    `json:"index"`
	Reason    string `json:"reason,omitempty"`
}

// Timeout is only present on timeout-based tasks.
type Timeout struct {
	TimedOut          bool        `json:"timed_out"`
	LastAnsweredIndex int         `json:"last_answered_index"`
	DataQuality       DataQuality `json:"data_quality"`
}

// TaskValidationResult is the evaluation of one task against one merged answer set.
type TaskValidationResult struct {
	TaskID                    string      `json:"task_id"`
	RuleKind                  RuleKind    `json:"rule_kind"`
	StatusLight               StatusLight `json:"status_light"`
	AnsweredCount             int         `json:"answered_count"`
	TotalCount                int         `json:"total_count"`
	CorrectCount              int         `json:"correct_count"`
	Accuracy                  float64     `json:"accuracy"`
	Termination               Termination `json:"termination"`
	Timeout                   *Timeout    `json:"timeout,omitempty"`
	HasPostTerminationAnswers bool        `json:"has_post_termination_answers"`
	Error                     string      `json:"error,omitempty"`
}

// Stopped reports whether a termination or a proper timeout gated the task.
func (r TaskValidationResult) Stopped() bool {
	return r.Termination.Triggered || (r.Timeout != nil && r.Timeout.TimedOut)
}

// SetStatus is the roll-up of one task set.
type SetStatus struct {
	SetID           string     `json:"set_id"`
	Status          Completion `json:"status"`
	TotalTasks      int        `json:"total_tasks"`
	CompleteTasks   int        `json:"complete_tasks"`
	IncompleteTasks int        `json:"incomplete_tasks"`
	NotStartedTasks int        `json:"not_started_tasks"`
	PostTermTasks   int        `json:"post_termination_tasks"`
}

// PartnerState keeps each partner's own gate on a combined card.
type PartnerState struct {
	TaskID      string      `json:"task_id"`
	StatusLight StatusLight `json:"status_light"`
	Termination Termination `json:"termination"`
	Timeout     *Timeout    `json:"timeout,omitempty"`
}

// PairedTaskCard displays two timeout-coupled partner tasks as one.
type PairedTaskCard struct {
	TaskIDs       []string       `json:"task_ids"`
	StatusLight   StatusLight    `json:"status_light"`
	AnsweredCount int            `json:"answered_count"`
	TotalCount    int            `json:"total_count"`
	CorrectCount  int            `json:"correct_count"`
	Partners      []PartnerState `json:"partners"`
}

// StudentValidationRecord is the single source of truth for one student and grade.
type StudentValidationRecord struct {
	StudentID                 string                          `json:"student_id"`
	Grade                     string                          `json:"grade"`
	Tasks                     map[string]TaskValidationResult `json:"tasks"`
	Sets                      []SetStatus                     `json:"sets"`
	PairedCards               []PairedTaskCard                `json:"paired_cards,omitempty"`
	OverallStatus             Completion                      `json:"overall_status"`
	CompletionPercentage      float64                         `json:"completion_percentage"`
	CompletedTasks            int                             `json:"completed_tasks"`
	ApplicableTasks           int                             `json:"applicable_tasks"`
	HasTerminations           bool                            `json:"has_terminations"`
	HasPostTerminationAnswers bool                            `json:"has_post_termination_answers"`
	UnknownQuestions          []string                        `json:"unknown_questions,omitempty"`
	TaskErrors                int                             `json:"task_errors"`
	ConflictCount             int                             `json:"conflict_count"`
	LastValidated             time.Time                       `json:"last_validated"`
}

// HasData reports whether any task carries an answer.
func (r StudentValidationRecord) HasData() bool {
	return r.OverallStatus != CompletionNotStarted
}
