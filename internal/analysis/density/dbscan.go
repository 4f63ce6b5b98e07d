package density

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jengzang/photomap-backend-go/internal/analysis"
	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

const (
	// ctxCheckInterval is how many points are processed between cancellation checks
	ctxCheckInterval = 1024

	// cellMargin widens haversine cells to cover the spherical/planar degree mismatch
	cellMargin = 1.01
)

// DBSCAN implements density-based clustering.
// A point is core when at least MinSamples points (itself included) lie within Eps.
// Clusters grow from core points in input order, so ids follow discovery order.
type DBSCAN struct {
	eps        float64
	minSamples int
	metric     string
}

// NewDBSCAN creates a new DBSCAN clusterer
func NewDBSCAN(params analysis.Params) (analysis.Clusterer, error) {
	metric := strings.ToLower(params.Metric)
	if metric == "" {
		metric = analysis.MetricDegrees
	}
	if metric != analysis.MetricDegrees && metric != analysis.MetricHaversine {
		return nil, fmt.Errorf("%w: unsupported metric %q", analysis.ErrInvalidParams, params.Metric)
	}
	if !(params.Eps > 0) || math.IsInf(params.Eps, 0) {
		return nil, fmt.Errorf("%w: eps must be positive, got %v", analysis.ErrInvalidParams, params.Eps)
	}
	if params.MinSamples < 1 {
		return nil, fmt.Errorf("%w: min_samples must be at least 1, got %d", analysis.ErrInvalidParams, params.MinSamples)
	}

	return &DBSCAN{
		eps:        params.Eps,
		minSamples: params.MinSamples,
		metric:     metric,
	}, nil
}

// Name returns the algorithm name
func (d *DBSCAN) Name() string {
	return analysis.AlgorithmDBSCAN
}

// Fit runs DBSCAN over points
func (d *DBSCAN) Fit(ctx context.Context, points []spatial.Point) (*analysis.Result, error) {
	log := logger.Named("DBSCAN")
	n := len(points)
	labels := make(models.ClusterAssignment, n)
	for i := range labels {
		labels[i] = models.NoiseClusterID
	}

	if n < d.minSamples {
		note := fmt.Sprintf("only %d points for min_samples=%d, every point is noise", n, d.minSamples)
		log.Warnf("Degenerate input: %s", note)
		return &analysis.Result{Labels: labels, Degenerate: note}, nil
	}

	index := d.buildIndex(points)

	// Core flags first, so border points can be attached in one pass afterwards
	core := make([]bool, n)
	for i := range points {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		core[i] = index.count(i) >= d.minSamples
	}

	visited := make([]bool, n)
	var neighborBuf []int
	next := 0
	for i := range points {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !core[i] || labels[i] != models.NoiseClusterID {
			continue
		}

		clusterID := next
		next++
		labels[i] = clusterID
		visited[i] = true
		queue := []int{i}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]

			neighborBuf = index.neighbors(p, neighborBuf)
			for _, q := range neighborBuf {
				if labels[q] == models.NoiseClusterID {
					labels[q] = clusterID
				}
				if core[q] && !visited[q] {
					visited[q] = true
					queue = append(queue, q)
				}
			}
		}
	}

	log.Debugf("Clustered %d points into %d clusters (eps=%v, min_samples=%d, metric=%s)",
		n, next, d.eps, d.minSamples, d.metric)
	return &analysis.Result{Labels: labels}, nil
}

func (d *DBSCAN) buildIndex(points []spatial.Point) *gridIndex {
	if d.metric == analysis.MetricDegrees {
		eps := d.eps
		return newGridIndex(points, eps, func(a, b spatial.Point) bool {
			return spatial.DegreeDistance(a, b) <= eps
		})
	}

	maxAbsLat := 0.0
	for _, p := range points {
		maxAbsLat = math.Max(maxAbsLat, math.Abs(p.Lat))
	}
	cell := spatial.MetersToDegrees(d.eps, maxAbsLat) * cellMargin
	eps := d.eps
	return newGridIndex(points, cell, func(a, b spatial.Point) bool {
		return spatial.HaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon) <= eps
	})
}

// Register the clusterer
func init() {
	analysis.RegisterClusterer(analysis.AlgorithmDBSCAN, NewDBSCAN)
}
