package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/photomap-backend-go/internal/analysis"
	"github.com/jengzang/photomap-backend-go/internal/dataset"
	"github.com/jengzang/photomap-backend-go/internal/pipeline"
	"github.com/jengzang/photomap-backend-go/internal/service"
	"github.com/jengzang/photomap-backend-go/pkg/response"
)

// ElbowHandler handles k-selection requests
type ElbowHandler struct {
	service *service.RunService
}

// NewElbowHandler creates a new elbow handler
func NewElbowHandler(service *service.RunService) *ElbowHandler {
	return &ElbowHandler{service: service}
}

// Elbow scores k-means over a range of k on the configured dataset
// POST /api/v1/elbow
func (h *ElbowHandler) Elbow(c *gin.Context) {
	var req pipeline.ElbowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	report, err := h.service.Elbow(c.Request.Context(), req)
	switch {
	case errors.Is(err, analysis.ErrInvalidParams),
		errors.Is(err, analysis.ErrTooFewPoints),
		errors.Is(err, dataset.ErrMissingColumns),
		errors.Is(err, pipeline.ErrEmptyDataset):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, report)
}
