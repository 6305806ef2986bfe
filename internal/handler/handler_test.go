package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fourset-checker/internal/dto"
	"github.com/noah-isme/fourset-checker/internal/middleware"
	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/internal/service"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data json.RawMessage        `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if dest != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dest))
	}
	return envelope.Meta
}

type recordsMock struct {
	record    *models.StudentValidationRecord
	recordErr error
	result    *models.RecomputeResult
	resultErr error
	grade     string
}

func (m *recordsMock) StudentRecord(ctx context.Context, grade, studentID string) (*models.StudentValidationRecord, error) {
	m.grade = grade
	return m.record, m.recordErr
}

func (m *recordsMock) RecomputeStudent(ctx context.Context, studentID string) (*models.RecomputeResult, error) {
	return m.result, m.resultErr
}

type conflictsMock struct {
	report *models.ConflictReport
	err    error
	format string
}

func (m *conflictsMock) Get(ctx context.Context, grade, studentID string) (*models.ConflictReport, error) {
	return m.report, m.err
}

func (m *conflictsMock) Export(report *models.ConflictReport, format string) (*service.ConflictExport, error) {
	m.format = format
	if format != "csv" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ConflictExport{Filename: "conflicts_K3_S1.csv", ContentType: "text/csv", Body: []byte("question\n")}, nil
}

func TestStudentHandlerValidation(t *testing.T) {
	records := &recordsMock{record: &models.StudentValidationRecord{StudentID: "S1", Grade: "K3", OverallStatus: models.CompletionComplete}}
	h := NewStudentHandler(records, nil)

	c, w := newGinContext(http.MethodGet, "/students/S1/validation?grade=K3", nil)
	c.Params = gin.Params{{Key: "id", Value: "S1"}}
	h.Validation(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.StudentValidationRecord
	meta := decodeData(t, w, &got)
	assert.Equal(t, "S1", got.StudentID)
	assert.Equal(t, "K3", records.grade)
	assert.Equal(t, true, meta["store_hit"])
}

func TestStudentHandlerValidationRequiresGrade(t *testing.T) {
	h := NewStudentHandler(&recordsMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/students/S1/validation", nil)
	c.Params = gin.Params{{Key: "id", Value: "S1"}}
	h.Validation(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerValidationNotFound(t *testing.T) {
	h := NewStudentHandler(&recordsMock{recordErr: appErrors.Clone(appErrors.ErrNotFound, "no validation record")}, nil)

	c, w := newGinContext(http.MethodGet, "/students/S9/validation?grade=K3", nil)
	c.Params = gin.Params{{Key: "id", Value: "S9"}}
	h.Validation(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerRecompute(t *testing.T) {
	records := &recordsMock{result: &models.RecomputeResult{StudentID: "S1", Errors: []string{"class:C1"}}}
	h := NewStudentHandler(records, nil)

	c, w := newGinContext(http.MethodPost, "/students/S1/recompute", nil)
	c.Params = gin.Params{{Key: "id", Value: "S1"}}
	h.Recompute(c)

	require.Equal(t, http.StatusOK, w.Code)
	meta := decodeData(t, w, nil)
	assert.Equal(t, float64(1), meta["aggregate_errors"])
}

func TestStudentHandlerRecomputeContamination(t *testing.T) {
	h := NewStudentHandler(&recordsMock{resultErr: appErrors.ErrCrossGradeContamination}, nil)

	c, w := newGinContext(http.MethodPost, "/students/S1/recompute", nil)
	c.Params = gin.Params{{Key: "id", Value: "S1"}}
	h.Recompute(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "CROSS_GRADE_CONTAMINATION")
}

func TestStudentHandlerConflicts(t *testing.T) {
	report := &models.ConflictReport{StudentID: "S1", Grade: "K3", Conflicts: []models.Conflict{{QuestionID: "ERV_Q1", PrimaryValue: "1", SecondaryValue: "2", Resolution: models.ResolutionPrimaryWins}}}

	t.Run("json", func(t *testing.T) {
		h := NewStudentHandler(nil, &conflictsMock{report: report})
		c, w := newGinContext(http.MethodGet, "/students/S1/conflicts?grade=K3", nil)
		c.Params = gin.Params{{Key: "id", Value: "S1"}}
		h.Conflicts(c)

		require.Equal(t, http.StatusOK, w.Code)
		var got models.ConflictReport
		decodeData(t, w, &got)
		assert.Len(t, got.Conflicts, 1)
	})

	t.Run("csv", func(t *testing.T) {
		conflicts := &conflictsMock{report: report}
		h := NewStudentHandler(nil, conflicts)
		c, w := newGinContext(http.MethodGet, "/students/S1/conflicts?grade=K3&format=CSV", nil)
		c.Params = gin.Params{{Key: "id", Value: "S1"}}
		h.Conflicts(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "csv", conflicts.format)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "conflicts_K3_S1.csv")
	})

	t.Run("unknown format", func(t *testing.T) {
		h := NewStudentHandler(nil, &conflictsMock{report: report})
		c, w := newGinContext(http.MethodGet, "/students/S1/conflicts?grade=K3&format=xlsx", nil)
		c.Params = gin.Params{{Key: "id", Value: "S1"}}
		h.Conflicts(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

type summariesMock struct {
	summary *models.Summary
	err     error
	level   models.Level
	id      string
}

func (m *summariesMock) Summary(ctx context.Context, grade string, level models.Level, id string) (*models.Summary, error) {
	m.level, m.id = level, id
	return m.summary, m.err
}

func TestSummaryHandlerGet(t *testing.T) {
	summaries := &summariesMock{summary: &models.Summary{Level: models.LevelGroup, ID: "2", Grade: "K3", Stale: true, Status: models.CompletionIncomplete}}
	h := NewSummaryHandler(summaries)

	c, w := newGinContext(http.MethodGet, "/summaries/group/2?grade=K3", nil)
	c.Params = gin.Params{{Key: "level", Value: "group"}, {Key: "id", Value: "2"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.LevelGroup, summaries.level)
	assert.Equal(t, "2", summaries.id)
	meta := decodeData(t, w, nil)
	assert.Equal(t, true, meta["stale"])
}

func TestSummaryHandlerErrorStateIsStaleAggregate(t *testing.T) {
	summaries := &summariesMock{summary: &models.Summary{Level: models.LevelClass, ID: "C1", Grade: "K3", Stale: true,
		Status: models.CompletionError, ErrorCode: appErrors.ErrAggregateChildMismatch.Code}}
	h := NewSummaryHandler(summaries)

	c, w := newGinContext(http.MethodGet, "/summaries/class/C1?grade=K3", nil)
	c.Params = gin.Params{{Key: "level", Value: "class"}, {Key: "id", Value: "C1"}}
	h.Get(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, appErrors.ErrStaleAggregate.Code, envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "AGGREGATE_CHILD_COUNT_MISMATCH")
}

func TestSummaryHandlerRejectsUnknownLevel(t *testing.T) {
	h := NewSummaryHandler(&summariesMock{})

	c, w := newGinContext(http.MethodGet, "/summaries/student/S1?grade=K3", nil)
	c.Params = gin.Params{{Key: "level", Value: "student"}, {Key: "id", Value: "S1"}}
	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type rebuildsMock struct {
	job     *models.RebuildJob
	err     error
	actor   string
	resume  string
	created bool
}

func (m *rebuildsMock) CreateJob(ctx context.Context, grade, resumeRunID, actorID string) (*models.RebuildJob, error) {
	m.created, m.actor, m.resume = true, actorID, resumeRunID
	return m.job, m.err
}

func (m *rebuildsMock) GetJob(ctx context.Context, id string) (*models.RebuildJob, error) {
	return m.job, m.err
}

func TestRebuildHandlerCreate(t *testing.T) {
	rebuilds := &rebuildsMock{job: &models.RebuildJob{ID: "job-1", RunID: "run-1", Grade: "K3", Status: models.RebuildQueued}}
	h := NewRebuildHandler(rebuilds, nil)

	payload, _ := json.Marshal(dto.RebuildRequest{Grade: "K3", ResumeRunID: "run-1"})
	c, w := newGinContext(http.MethodPost, "/rebuilds", payload)
	c.Set(middleware.ContextUserKey, &models.OperatorClaims{OperatorID: "op-1", Role: models.RoleOperator})
	h.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "op-1", rebuilds.actor)
	assert.Equal(t, "run-1", rebuilds.resume)
	var got dto.RebuildJobResponse
	decodeData(t, w, &got)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, models.RebuildQueued, got.Status)
}

func TestRebuildHandlerCreateRequiresGrade(t *testing.T) {
	rebuilds := &rebuildsMock{}
	h := NewRebuildHandler(rebuilds, nil)

	c, w := newGinContext(http.MethodPost, "/rebuilds", []byte(`{}`))
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, rebuilds.created)
}

func TestRebuildHandlerStatus(t *testing.T) {
	finished := time.Date(2024, 11, 2, 8, 0, 0, 0, time.UTC)
	rebuilds := &rebuildsMock{job: &models.RebuildJob{ID: "job-1", Status: models.RebuildFinished, Progress: 1, FinishedAt: &finished}}
	h := NewRebuildHandler(rebuilds, nil)

	c, w := newGinContext(http.MethodGet, "/rebuilds/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got dto.RebuildJobResponse
	decodeData(t, w, &got)
	assert.Equal(t, 1.0, got.Progress)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, "2024-11-02T08:00:00Z", *got.FinishedAt)
}

func TestHandlersStampProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	report := &models.ConflictReport{StudentID: "S1", Grade: "K3"}
	students := NewStudentHandler(&recordsMock{result: &models.RecomputeResult{StudentID: "S1"}}, &conflictsMock{report: report})
	rebuilds := NewRebuildHandler(&rebuildsMock{job: &models.RebuildJob{ID: "job-1", Status: models.RebuildQueued}}, nil)

	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.POST("/students/:id/recompute", students.Recompute)
	r.GET("/students/:id/conflicts", students.Conflicts)
	r.GET("/rebuilds/:id", rebuilds.Status)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/students/S1/recompute"},
		{http.MethodGet, "/students/S1/conflicts?grade=K3"},
		{http.MethodGet, "/rebuilds/job-1"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

		require.Equal(t, http.StatusOK, w.Code, tc.path)
		meta := decodeData(t, w, nil)
		assert.Contains(t, meta, "processing_time_ms", tc.path)
		assert.NotContains(t, meta, "aggregate_errors", tc.path)
	}
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(ctx context.Context) error { return nil },
	}, nil)
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return errors.New("connection refused") },
	}, nil)
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
