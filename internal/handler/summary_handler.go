package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fourset-checker/internal/middleware"
	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
	"github.com/noah-isme/fourset-checker/pkg/response"
)

type summaryReader interface {
	Summary(ctx context.Context, grade string, level models.Level, id string) (*models.Summary, error)
}

// SummaryHandler serves aggregate drill-down summaries.
type SummaryHandler struct {
	summaries summaryReader
}

// NewSummaryHandler constructs handler.
func NewSummaryHandler(summaries summaryReader) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// Get godoc
// @Summary Aggregate summary
// @Tags Summaries
// @Produce json
// @Param level path string true "class, school, group or district"
// @Param id path string true "Aggregate ID"
// @Param grade query string true "Grade label"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "summary is in the error state"
// @Router /summaries/{level}/{id} [get]
func (h *SummaryHandler) Get(c *gin.Context) {
	level, err := models.ParseLevel(c.Param("level"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	grade, err := requireGrade(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.summaries.Summary(c.Request.Context(), grade, level, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if summary.Status == models.CompletionError {
		response.Error(c, appErrors.Clone(appErrors.ErrStaleAggregate,
			fmt.Sprintf("%s %s could not be computed (%s); rebuild grade %s", summary.Level, summary.ID, summary.ErrorCode, grade)))
		return
	}
	if summary.Stale {
		middleware.SetMeta(c, "stale", true)
	}
	response.JSON(c, http.StatusOK, summary, middleware.ExtractMeta(c))
}
