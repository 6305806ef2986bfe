package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fourset-checker/internal/middleware"
	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/internal/service"
	"github.com/noah-isme/fourset-checker/pkg/response"
)

type studentRecords interface {
	StudentRecord(ctx context.Context, grade, studentID string) (*models.StudentValidationRecord, error)
	RecomputeStudent(ctx context.Context, studentID string) (*models.RecomputeResult, error)
}

type conflictReports interface {
	Get(ctx context.Context, grade, studentID string) (*models.ConflictReport, error)
	Export(report *models.ConflictReport, format string) (*service.ConflictExport, error)
}

// StudentHandler exposes per-student validation endpoints.
type StudentHandler struct {
	records   studentRecords
	conflicts conflictReports
}

// NewStudentHandler constructs handler.
func NewStudentHandler(records studentRecords, conflicts conflictReports) *StudentHandler {
	return &StudentHandler{records: records, conflicts: conflicts}
}

// Validation godoc
// @Summary Student validation record
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param grade query string true "Grade label"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/validation [get]
func (h *StudentHandler) Validation(c *gin.Context) {
	grade, err := requireGrade(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.records.StudentRecord(c.Request.Context(), grade, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetStoreHit(c, true)
	response.JSON(c, http.StatusOK, record, middleware.ExtractMeta(c))
}

// Recompute godoc
// @Summary Recompute a student
// @Description Re-merges and re-validates the student in every grade found in their answers, then refreshes each aggregate above them.
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/recompute [post]
func (h *StudentHandler) Recompute(c *gin.Context) {
	result, err := h.records.RecomputeStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(result.Errors) > 0 {
		middleware.SetMeta(c, "aggregate_errors", len(result.Errors))
	}
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Conflicts godoc
// @Summary Merge conflict report
// @Tags Students
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param grade query string true "Grade label"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/conflicts [get]
func (h *StudentHandler) Conflicts(c *gin.Context) {
	grade, err := requireGrade(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.conflicts.Get(c.Request.Context(), grade, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format == "json" {
		response.JSON(c, http.StatusOK, report, middleware.ExtractMeta(c))
		return
	}
	file, err := h.conflicts.Export(report, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
