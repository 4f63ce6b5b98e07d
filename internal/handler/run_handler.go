package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/middleware"
	"github.com/jengzang/photomap-backend-go/internal/pipeline"
	"github.com/jengzang/photomap-backend-go/internal/repository"
	"github.com/jengzang/photomap-backend-go/internal/service"
	"github.com/jengzang/photomap-backend-go/pkg/response"
)

// RunHandler handles HTTP requests for pipeline runs
type RunHandler struct {
	service  *service.RunService
	defaults config.RunConfig
}

// NewRunHandler creates a new run handler. Submitted configs are overlaid on defaults.
func NewRunHandler(service *service.RunService, defaults config.RunConfig) *RunHandler {
	return &RunHandler{service: service, defaults: defaults}
}

// CreateRunRequest represents the request body for submitting a run
type CreateRunRequest struct {
	Config    config.RunConfig `json:"config"`
	Query     string           `json:"query"`
	KeepQuery bool             `json:"keep_query"`
}

// CreateRun validates the parameters and starts a run in the background
// POST /api/v1/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	req := CreateRunRequest{Config: h.defaults}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
	}

	task, err := h.service.StartRun(service.RunRequest{
		Config:    req.Config,
		Query:     pipeline.Query{Term: req.Query, Keep: req.KeepQuery},
		CreatedBy: c.GetString(middleware.UserKey),
	})
	switch {
	case errors.Is(err, config.ErrInvalidRunConfig):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, service.ErrRunInProgress):
		response.Conflict(c, err.Error())
		return
	case err != nil:
		response.InternalError(c, err.Error())
		return
	}

	response.Accepted(c, task)
}

// GetRun retrieves a run and its report
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	task, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}

	var report json.RawMessage
	if task.ResultSummary != "" {
		report = json.RawMessage(task.ResultSummary)
	}
	response.Success(c, gin.H{
		"run":    task,
		"report": report,
	})
}

// ListRuns retrieves runs, newest first
// GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	status := c.Query("status")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		offset = 0
	}

	runs, err := h.service.ListRuns(status, limit, offset)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// CancelRun cancels a pending or running run
// DELETE /api/v1/runs/:id
func (h *RunHandler) CancelRun(c *gin.Context) {
	err := h.service.CancelRun(c.Param("id"))
	switch {
	case errors.Is(err, service.ErrRunFinished):
		response.Conflict(c, err.Error())
		return
	case err != nil:
		writeLookupError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "Run cancellation requested"})
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	response.InternalError(c, err.Error())
}

// statusFor maps a run error onto an HTTP status for non-JSON paths
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunInProgress), errors.Is(err, service.ErrRunFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
