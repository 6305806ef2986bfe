package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/dto"
	"github.com/noah-isme/fourset-checker/internal/middleware"
	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
	"github.com/noah-isme/fourset-checker/pkg/response"
)

type rebuildJobs interface {
	CreateJob(ctx context.Context, grade, resumeRunID, actorID string) (*models.RebuildJob, error)
	GetJob(ctx context.Context, id string) (*models.RebuildJob, error)
}

// RebuildHandler queues and reports bulk grade rebuilds.
type RebuildHandler struct {
	rebuilds rebuildJobs
	logger   *zap.Logger
}

// NewRebuildHandler constructs handler.
func NewRebuildHandler(rebuilds rebuildJobs, logger *zap.Logger) *RebuildHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RebuildHandler{rebuilds: rebuilds, logger: logger}
}

// Create godoc
// @Summary Queue a grade rebuild
// @Tags Rebuilds
// @Accept json
// @Produce json
// @Param payload body dto.RebuildRequest true "Rebuild payload"
// @Success 202 {object} response.Envelope
// @Router /rebuilds [post]
func (h *RebuildHandler) Create(c *gin.Context) {
	var req dto.RebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.rebuilds.CreateJob(c.Request.Context(), req.Grade, req.ResumeRunID, operatorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("rebuild queued", zap.String("job_id", job.ID), zap.String("grade", job.Grade), zap.Bool("resume", job.Resume))
	response.Accepted(c, dto.NewRebuildJobResponse(job), middleware.ExtractMeta(c))
}

// Status godoc
// @Summary Rebuild job status
// @Tags Rebuilds
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /rebuilds/{id} [get]
func (h *RebuildHandler) Status(c *gin.Context) {
	job, err := h.rebuilds.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewRebuildJobResponse(job), middleware.ExtractMeta(c))
}
