package dto

import (
	"time"

	"github.com/noah-isme/fourset-checker/internal/models"
)

// RebuildRequest captures POST /rebuilds payload. ResumeRunID continues a
// previous run from its checkpoint instead of starting over.
type RebuildRequest struct {
	Grade       string `json:"grade" binding:"required"`
	ResumeRunID string `json:"resume_run_id,omitempty"`
}

// RebuildJobResponse is returned after queueing a rebuild and when polling it.
type RebuildJobResponse struct {
	ID         string               `json:"id"`
	RunID      string               `json:"run_id"`
	Grade      string               `json:"grade"`
	Status     models.RebuildStatus `json:"status"`
	Level      models.Level         `json:"level,omitempty"`
	Progress   float64              `json:"progress"`
	Skipped    []string             `json:"skipped,omitempty"`
	Error      string               `json:"error,omitempty"`
	FinishedAt *string              `json:"finished_at,omitempty"`
}

// NewRebuildJobResponse projects a stored job.
func NewRebuildJobResponse(job *models.RebuildJob) RebuildJobResponse {
	resp := RebuildJobResponse{
		ID:       job.ID,
		RunID:    job.RunID,
		Grade:    job.Grade,
		Status:   job.Status,
		Level:    job.Level,
		Progress: job.Progress,
		Skipped:  job.Skipped,
		Error:    job.Error,
	}
	if job.FinishedAt != nil {
		finished := job.FinishedAt.UTC().Format(time.RFC3339)
		resp.FinishedAt = &finished
	}
	return resp
}
