package models

import "time"

// RebuildStatus enumerates bulk rebuild job states.
type RebuildStatus string

const (
	RebuildQueued   RebuildStatus = "QUEUED"
	RebuildRunning  RebuildStatus = "RUNNING"
	RebuildFinished RebuildStatus = "FINISHED"
	RebuildFailed   RebuildStatus = "FAILED"

	// RebuildInterrupted marks a job cut short by shutdown. Its run can be
	// resumed by a new job carrying the same run ID.
	RebuildInterrupted RebuildStatus = "INTERRUPTED"
)

// RebuildJob tracks an asynchronous bulk rebuild of one grade.
type RebuildJob struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Grade      string        `json:"grade"`
	Resume     bool          `json:"resume"`
	Status     RebuildStatus `json:"status"`
	Level      Level         `json:"level,omitempty"`
	Progress   float64       `json:"progress"`
	Skipped    []string      `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedBy  string        `json:"created_by,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// RebuildProgress is reported after every completed node of a bulk rebuild.
type RebuildProgress struct {
	RunID    string  `json:"run_id"`
	Level    Level   `json:"level"`
	Done     int     `json:"done"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
}

// RebuildCheckpoint records the last level a run finished writing.
type RebuildCheckpoint struct {
	RunID     string    `json:"run_id"`
	Grade     string    `json:"grade"`
	Completed []Level   `json:"completed"`
	Skipped   []string  `json:"skipped,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Has reports whether level was already written by the run.
func (c RebuildCheckpoint) Has(level Level) bool {
	for _, l := range c.Completed {
		if l == level {
			return true
		}
	}
	return false
}
