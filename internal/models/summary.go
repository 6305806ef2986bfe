package models

import (
	"fmt"
	"time"
)

// Level is a rung of the administrative hierarchy.
type Level string

const (
	LevelStudent  Level = "student"
	LevelClass    Level = "class"
	LevelSchool   Level = "school"
	LevelGroup    Level = "group"
	LevelDistrict Level = "district"
)

// ParseLevel accepts the aggregate levels exposed over the API.
func ParseLevel(raw string) (Level, error) {
	switch Level(raw) {
	case LevelClass, LevelSchool, LevelGroup, LevelDistrict:
		return Level(raw), nil
	default:
		return "", fmt.Errorf("unknown aggregate level %q", raw)
	}
}

// Summary is the folded completion of one aggregate node.
type Summary struct {
	Level                Level      `json:"level"`
	ID                   string     `json:"id"`
	Grade                string     `json:"grade"`
	Status               Completion `json:"status"`
	TotalChildren        int        `json:"total_children"`
	Complete             int        `json:"complete"`
	Incomplete           int        `json:"incomplete"`
	NotStarted           int        `json:"not_started"`
	WithData             int        `json:"with_data"`
	CompletionPercentage float64    `json:"completion_percentage"`
	TerminationAlerts    int        `json:"termination_alerts"`
	ChildIDs             []string   `json:"child_ids"`
	Stale                bool       `json:"stale"`
	ErrorCode            string     `json:"error_code,omitempty"`
	LastComputed         time.Time  `json:"last_computed"`
}

// ClassSummary, SchoolSummary, GroupSummary and DistrictSummary share one shape.
type (
	ClassSummary    = Summary
	SchoolSummary   = Summary
	GroupSummary    = Summary
	DistrictSummary = Summary
)

// ChildStatus is the projection a parent folds over. Student records and
// lower-level summaries both reduce to it.
type ChildStatus struct {
	ID      string
	Status  Completion
	HasData bool
	Alerts  int
}

// ChildFromRecord projects a student record. A nil record is a roster student
// with no validated data.
func ChildFromRecord(studentID string, rec *StudentValidationRecord) ChildStatus {
	if rec == nil {
		return ChildStatus{ID: studentID, Status: CompletionNotStarted}
	}
	alerts := 0
	if rec.HasTerminations {
		alerts = 1
	}
	return ChildStatus{ID: studentID, Status: rec.OverallStatus, HasData: rec.HasData(), Alerts: alerts}
}

// ChildFromSummary projects a lower-level summary.
func ChildFromSummary(s Summary) ChildStatus {
	return ChildStatus{
		ID:      s.ID,
		Status:  s.Status,
		HasData: s.WithData > 0,
		Alerts:  s.TerminationAlerts,
	}
}

// RecomputeResult reports an incremental recompute of one student across every
// grade found in their answers. Errors lists aggregates written in the error state.
// RemovedGrades lists grades whose earlier record was dropped because the student
// no longer has answers there.
type RecomputeResult struct {
	StudentID     string                    `json:"student_id"`
	Records       []StudentValidationRecord `json:"records"`
	Summaries     []Summary                 `json:"summaries"`
	Errors        []string                  `json:"errors,omitempty"`
	RemovedGrades []string                  `json:"removed_grades,omitempty"`
}
