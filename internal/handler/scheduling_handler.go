package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-class-scheduler/internal/dto"
	internalmiddleware "github.com/noah-isme/lms-class-scheduler/internal/middleware"
	"github.com/noah-isme/lms-class-scheduler/internal/service"
	appErrors "github.com/noah-isme/lms-class-scheduler/pkg/errors"
	"github.com/noah-isme/lms-class-scheduler/pkg/response"
)

type schedulingRunner interface {
	Run(ctx context.Context, req dto.RunSchedulingRequest) (*dto.RunSchedulingResponse, error)
	EnqueueBatch(ctx context.Context, req dto.BatchSchedulingRequest) (*dto.BatchSchedulingResponse, error)
	DetectConflicts(ctx context.Context, courseID string) (*dto.ConflictsResponse, error)
	UpdateClassStatus(ctx context.Context, classID string, req dto.UpdateClassStatusRequest) error
}

type scheduleExporter interface {
	Render(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error)
	Publish(ctx context.Context, query dto.ExportQuery) (*dto.ExportLinkResponse, error)
	OpenLink(token string) (*service.ExportFile, error)
}

// SchedulingHandler exposes class scheduling endpoints.
type SchedulingHandler struct {
	scheduling schedulingRunner
	exports    scheduleExporter
}

// NewSchedulingHandler constructs the handler.
func NewSchedulingHandler(scheduling *service.SchedulingService, exports *service.ExportService) *SchedulingHandler {
	return &SchedulingHandler{scheduling: scheduling, exports: exports}
}

// Run godoc
// @Summary Run the class scheduler for a course
// @Description Groups students by progress, books slots and assigns teachers. Set persist=false for a preview.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.RunSchedulingRequest true "Scheduling run payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduling/runs [post]
func (h *SchedulingHandler) Run(c *gin.Context) {
	var req dto.RunSchedulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduling payload"))
		return
	}
	result, err := h.scheduling.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, result.Cached)
	status := http.StatusOK
	if result.Persisted {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, internalmiddleware.ExtractMeta(c))
}

// Batch godoc
// @Summary Queue background scheduling runs
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.BatchSchedulingRequest true "Batch payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /scheduling/batches [post]
func (h *SchedulingHandler) Batch(c *gin.Context) {
	var req dto.BatchSchedulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.scheduling.EnqueueBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Conflicts godoc
// @Summary Detect conflicts in a persisted course schedule
// @Tags Scheduling
// @Produce json
// @Param courseId query string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /scheduling/conflicts [get]
func (h *SchedulingHandler) Conflicts(c *gin.Context) {
	var query dto.ConflictsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflicts query"))
		return
	}
	result, err := h.scheduling.DetectConflicts(c.Request.Context(), query.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// UpdateClassStatus godoc
// @Summary Confirm or cancel a scheduled class
// @Tags Scheduling
// @Accept json
// @Param id path string true "Scheduled class ID"
// @Param payload body dto.UpdateClassStatusRequest true "Status payload"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduling/classes/{id}/status [patch]
func (h *SchedulingHandler) UpdateClassStatus(c *gin.Context) {
	var req dto.UpdateClassStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	if err := h.scheduling.UpdateClassStatus(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export a course schedule as CSV or PDF
// @Description delivery=inline streams the file, delivery=link returns a signed download URL.
// @Tags Scheduling
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param courseId query string true "Course ID"
// @Param format query string false "csv or pdf"
// @Param delivery query string false "inline or link"
// @Success 200 {file} file
// @Router /scheduling/export [get]
func (h *SchedulingHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	if strings.EqualFold(query.Delivery, "link") {
		link, err := h.exports.Publish(c.Request.Context(), query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, link)
		return
	}
	file, err := h.exports.Render(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Name, file.Format.ContentType(), file.Body)
}

// Download godoc
// @Summary Download a stored export through a signed link
// @Tags Scheduling
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /scheduling/export/files/{token} [get]
func (h *SchedulingHandler) Download(c *gin.Context) {
	file, err := h.exports.OpenLink(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Name, file.Format.ContentType(), file.Body)
}
