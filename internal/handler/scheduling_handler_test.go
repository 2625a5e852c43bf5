package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-class-scheduler/internal/dto"
	internalmiddleware "github.com/noah-isme/lms-class-scheduler/internal/middleware"
	"github.com/noah-isme/lms-class-scheduler/internal/models"
	"github.com/noah-isme/lms-class-scheduler/internal/service"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
	"github.com/noah-isme/lms-class-scheduler/pkg/export"
)

type schedulingRunnerMock struct {
	runReq    dto.RunSchedulingRequest
	runResp   *dto.RunSchedulingResponse
	batchReq  dto.BatchSchedulingRequest
	courseID  string
	classID   string
	statusReq dto.UpdateClassStatusRequest
	err       error
}

func (m *schedulingRunnerMock) Run(_ context.Context, req dto.RunSchedulingRequest) (*dto.RunSchedulingResponse, error) {
	m.runReq = req
	return m.runResp, m.err
}

func (m *schedulingRunnerMock) EnqueueBatch(_ context.Context, req dto.BatchSchedulingRequest) (*dto.BatchSchedulingResponse, error) {
	m.batchReq = req
	if m.err != nil {
		return nil, m.err
	}
	resp := &dto.BatchSchedulingResponse{}
	for _, id := range req.CourseIDs {
		resp.Jobs = append(resp.Jobs, dto.BatchJob{JobID: "job-" + id, CourseID: id})
	}
	return resp, nil
}

func (m *schedulingRunnerMock) DetectConflicts(_ context.Context, courseID string) (*dto.ConflictsResponse, error) {
	m.courseID = courseID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ConflictsResponse{CourseID: courseID, Classes: 2, Conflicts: []models.SchedulingConflict{{ID: "c-1", Type: models.ConflictTimeOverlap}}}, nil
}

func (m *schedulingRunnerMock) UpdateClassStatus(_ context.Context, classID string, req dto.UpdateClassStatusRequest) error {
	m.classID = classID
	m.statusReq = req
	return m.err
}

type exporterMock struct {
	query dto.ExportQuery
	token string
	err   error
}

func (m *exporterMock) Render(_ context.Context, query dto.ExportQuery) (*service.ExportFile, error) {
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Name: "schedule.csv", Format: export.FormatCSV, Body: []byte("Class\nclass-1\n")}, nil
}

func (m *exporterMock) Publish(_ context.Context, query dto.ExportQuery) (*dto.ExportLinkResponse, error) {
	m.query = query
	return &dto.ExportLinkResponse{URL: "/api/v1/scheduling/export/files/tok", Format: "pdf", ExpiresAt: time.Now().Add(time.Hour)}, m.err
}

func (m *exporterMock) OpenLink(token string) (*service.ExportFile, error) {
	m.token = token
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Name: "schedule.pdf", Format: export.FormatPDF, Body: []byte("%PDF-1.3")}, nil
}

func newSchedulingRouter(runner *schedulingRunnerMock, exporter *exporterMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &SchedulingHandler{scheduling: runner, exports: exporter}
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.POST("/scheduling/runs", h.Run)
	router.POST("/scheduling/batches", h.Batch)
	router.GET("/scheduling/conflicts", h.Conflicts)
	router.PATCH("/scheduling/classes/:id/status", h.UpdateClassStatus)
	router.GET("/scheduling/export", h.Export)
	router.GET("/scheduling/export/files/:token", h.Download)
	return router
}

func doRequest(router *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSchedulingHandlerRunPreview(t *testing.T) {
	runner := &schedulingRunnerMock{runResp: &dto.RunSchedulingResponse{CourseID: "course-1", Cached: true}}
	router := newSchedulingRouter(runner, &exporterMock{})

	w := doRequest(router, http.MethodPost, "/scheduling/runs", []byte(`{"courseId":"course-1","weights":{"contentProgression":0.5}}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-1", runner.runReq.CourseID)
	require.NotNil(t, runner.runReq.Weights)
	assert.InDelta(t, 0.5, *runner.runReq.Weights.ContentProgression, 1e-9)

	var body struct {
		Data dto.RunSchedulingResponse `json:"data"`
		Meta map[string]interface{}    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Cached)
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestSchedulingHandlerRunPersisted(t *testing.T) {
	runner := &schedulingRunnerMock{runResp: &dto.RunSchedulingResponse{CourseID: "course-1", RunID: "run-1", Persisted: true}}
	router := newSchedulingRouter(runner, &exporterMock{})

	w := doRequest(router, http.MethodPost, "/scheduling/runs", []byte(`{"courseId":"course-1","persist":true}`))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, runner.runReq.Persist)
}

func TestSchedulingHandlerRunErrors(t *testing.T) {
	router := newSchedulingRouter(&schedulingRunnerMock{}, &exporterMock{})
	w := doRequest(router, http.MethodPost, "/scheduling/runs", []byte(`{"courseId":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	runner := &schedulingRunnerMock{err: appErrors.Clone(appErrors.ErrConflict, "slot already booked")}
	router = newSchedulingRouter(runner, &exporterMock{})
	w = doRequest(router, http.MethodPost, "/scheduling/runs", []byte(`{"courseId":"course-1","persist":true}`))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "slot already booked")
}

func TestSchedulingHandlerBatch(t *testing.T) {
	runner := &schedulingRunnerMock{}
	router := newSchedulingRouter(runner, &exporterMock{})

	w := doRequest(router, http.MethodPost, "/scheduling/batches", []byte(`{"courseIds":["a","b"],"persist":true}`))

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"a", "b"}, runner.batchReq.CourseIDs)
	assert.Contains(t, w.Body.String(), `"jobId":"job-a"`)

	runner.err = appErrors.Clone(appErrors.ErrUnavailable, "batch scheduling is disabled")
	w = doRequest(router, http.MethodPost, "/scheduling/batches", []byte(`{"courseIds":["a"]}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSchedulingHandlerConflicts(t *testing.T) {
	runner := &schedulingRunnerMock{}
	router := newSchedulingRouter(runner, &exporterMock{})

	w := doRequest(router, http.MethodGet, "/scheduling/conflicts?courseId=course-9", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-9", runner.courseID)
	assert.Contains(t, w.Body.String(), `"time_overlap"`)
}

func TestSchedulingHandlerUpdateClassStatus(t *testing.T) {
	runner := &schedulingRunnerMock{}
	router := newSchedulingRouter(runner, &exporterMock{})

	w := doRequest(router, http.MethodPatch, "/scheduling/classes/class-1/status", []byte(`{"status":"confirmed"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "class-1", runner.classID)
	assert.Equal(t, "confirmed", runner.statusReq.Status)

	runner.err = appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
	w = doRequest(router, http.MethodPatch, "/scheduling/classes/missing/status", []byte(`{"status":"cancelled"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulingHandlerExportInline(t *testing.T) {
	exporter := &exporterMock{}
	router := newSchedulingRouter(&schedulingRunnerMock{}, exporter)

	w := doRequest(router, http.MethodGet, "/scheduling/export?courseId=course-1&format=csv", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "course-1", exporter.query.CourseID)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="schedule.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Class\nclass-1\n", w.Body.String())
}

func TestSchedulingHandlerExportLink(t *testing.T) {
	exporter := &exporterMock{}
	router := newSchedulingRouter(&schedulingRunnerMock{}, exporter)

	w := doRequest(router, http.MethodGet, "/scheduling/export?courseId=course-1&format=pdf&delivery=link", nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "link", exporter.query.Delivery)
	assert.Contains(t, w.Body.String(), "/api/v1/scheduling/export/files/tok")
}

func TestSchedulingHandlerDownload(t *testing.T) {
	exporter := &exporterMock{}
	router := newSchedulingRouter(&schedulingRunnerMock{}, exporter)

	w := doRequest(router, http.MethodGet, "/scheduling/export/files/tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-1", exporter.token)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	exporter.err = appErrors.Clone(appErrors.ErrNotFound, "export link expired")
	w = doRequest(router, http.MethodGet, "/scheduling/export/files/tok-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
