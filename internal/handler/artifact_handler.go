package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/photomap-backend-go/internal/service"
	"github.com/jengzang/photomap-backend-go/pkg/response"
)

var chartName = regexp.MustCompile(`^cluster_[0-9]+\.svg$`)

// ArtifactHandler serves the files written by the latest run
type ArtifactHandler struct {
	service *service.RunService
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(service *service.RunService) *ArtifactHandler {
	return &ArtifactHandler{service: service}
}

// Map serves the latest map page
// GET /map
func (h *ArtifactHandler) Map(c *gin.Context) {
	path := h.service.MapPath()
	if _, err := os.Stat(path); err != nil {
		response.NotFound(c, "No map has been rendered yet")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.File(path)
}

// Chart serves one temporal chart
// GET /charts/:file
func (h *ArtifactHandler) Chart(c *gin.Context) {
	name := c.Param("file")
	if !chartName.MatchString(name) {
		response.NotFound(c, "Chart not found")
		return
	}

	path := filepath.Join(h.service.ChartDir(), name)
	if _, err := os.Stat(path); err != nil {
		response.NotFound(c, "Chart not found")
		return
	}
	c.Header("Content-Type", "image/svg+xml")
	c.Header("Cache-Control", "no-store")
	c.File(path)
}

// Health reports liveness
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Photomap API is running",
	})
}
