package pipeline

import (
	"time"

	aspatial "github.com/jengzang/photomap-backend-go/internal/analysis/spatial"
	"github.com/jengzang/photomap-backend-go/internal/stats"
	"github.com/jengzang/photomap-backend-go/internal/viz"
)

// ChartStatus is the per-cluster outcome of chart generation
type ChartStatus string

const (
	ChartDisabled    ChartStatus = "disabled"
	ChartWritten     ChartStatus = "written"
	ChartUnavailable ChartStatus = "unavailable" // no dated records
	ChartFailed      ChartStatus = "failed"
)

// ClusterOutcome describes what the run produced for one cluster
type ClusterOutcome struct {
	ID                int                     `json:"id"`
	Label             string                  `json:"label"`
	Size              int                     `json:"size"`
	Color             string                  `json:"color"`
	AreaSquareM       float64                 `json:"area_m2,omitempty"`
	GeometryStatus    aspatial.GeometryStatus `json:"geometry_status"`
	GeometryReason    string                  `json:"geometry_reason,omitempty"`
	ChartStatus       ChartStatus             `json:"chart_status"`
	ChartPath         string                  `json:"chart_path,omitempty"`
	ChartReason       string                  `json:"chart_reason,omitempty"`
	DroppedTimestamps int                     `json:"dropped_timestamps,omitempty"`
}

// Report summarises one pipeline run
type Report struct {
	Algorithm       string            `json:"algorithm"`
	TotalPoints     int               `json:"total_points"`
	ClusteredPoints int               `json:"clustered_points"`
	NoisePoints     int               `json:"noise_points"`
	ClusterCount    int               `json:"cluster_count"`
	Degenerate      string            `json:"degenerate,omitempty"`
	SizeSummary     stats.SizeSummary `json:"size_summary"`

	CommonTokens  []string `json:"common_tokens"`
	RetainedQuery string   `json:"retained_query,omitempty"`

	Clusters []ClusterOutcome `json:"clusters"`

	MapPath     string           `json:"map_path"`
	ChartDir    string           `json:"chart_dir,omitempty"`
	ChartsWrote int              `json:"charts_written"`
	Render      *viz.RenderStats `json:"render"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Polygons counts clusters that got a hull
func (r *Report) Polygons() int {
	n := 0
	for _, c := range r.Clusters {
		if c.GeometryStatus == aspatial.GeometryBuilt {
			n++
		}
	}
	return n
}

// Cluster returns the outcome for a cluster id
func (r *Report) Cluster(id int) (ClusterOutcome, bool) {
	for _, c := range r.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return ClusterOutcome{}, false
}
