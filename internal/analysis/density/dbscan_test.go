package density

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/photomap-backend-go/internal/analysis"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

func tightGroupWithOutlier() []spatial.Point {
	return []spatial.Point{
		{Lat: 45.7600, Lon: 4.8300},
		{Lat: 45.7601, Lon: 4.8301},
		{Lat: 45.7602, Lon: 4.8300},
		{Lat: 45.7600, Lon: 4.8302},
		{Lat: 45.7601, Lon: 4.8302},
		{Lat: 45.8000, Lon: 4.9000},
	}
}

func TestDBSCANGroupAndOutlier(t *testing.T) {
	c, err := analysis.NewClusterer(analysis.AlgorithmDBSCAN, analysis.Params{Eps: 0.0005, MinSamples: 5})
	require.NoError(t, err)

	res, err := c.Fit(context.Background(), tightGroupWithOutlier())
	require.NoError(t, err)
	assert.Equal(t, models.ClusterAssignment{0, 0, 0, 0, 0, -1}, res.Labels)
	assert.Empty(t, res.Degenerate)
	assert.Equal(t, 1, res.ClusterCount())
}

func TestDBSCANHaversineMetric(t *testing.T) {
	c, err := NewDBSCAN(analysis.Params{Eps: 60, MinSamples: 5, Metric: "haversine"})
	require.NoError(t, err)

	res, err := c.Fit(context.Background(), tightGroupWithOutlier())
	require.NoError(t, err)
	assert.Equal(t, models.ClusterAssignment{0, 0, 0, 0, 0, -1}, res.Labels)
}

func TestDBSCANDiscoveryOrder(t *testing.T) {
	var points []spatial.Point
	// the northern group comes first in input, so it is discovered first
	for i := 0; i < 4; i++ {
		points = append(points, spatial.Point{Lat: 10 + float64(i)*0.0001, Lon: 10})
	}
	for i := 0; i < 4; i++ {
		points = append(points, spatial.Point{Lat: 1 + float64(i)*0.0001, Lon: 1})
	}

	c, err := NewDBSCAN(analysis.Params{Eps: 0.00015, MinSamples: 2})
	require.NoError(t, err)
	res, err := c.Fit(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, models.ClusterAssignment{0, 0, 0, 0, 1, 1, 1, 1}, res.Labels)
}

func TestDBSCANBorderPoint(t *testing.T) {
	// both end points are border points reachable only through the core middle
	points := []spatial.Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.0001},
		{Lat: 0, Lon: 0.0002},
		{Lat: 0, Lon: 0.0003},
	}
	c, err := NewDBSCAN(analysis.Params{Eps: 0.000101, MinSamples: 3})
	require.NoError(t, err)
	res, err := c.Fit(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, models.ClusterAssignment{0, 0, 0, 0}, res.Labels)
}

func TestDBSCANTooFewPointsIsDegenerate(t *testing.T) {
	c, err := NewDBSCAN(analysis.Params{Eps: 1, MinSamples: 5})
	require.NoError(t, err)

	res, err := c.Fit(context.Background(), tightGroupWithOutlier()[:3])
	require.NoError(t, err)
	assert.Equal(t, models.ClusterAssignment{-1, -1, -1}, res.Labels)
	assert.NotEmpty(t, res.Degenerate)
	assert.Zero(t, res.ClusterCount())
}

func TestDBSCANInvalidParams(t *testing.T) {
	_, err := NewDBSCAN(analysis.Params{Eps: 0, MinSamples: 5})
	assert.ErrorIs(t, err, analysis.ErrInvalidParams)

	_, err = NewDBSCAN(analysis.Params{Eps: 0.1, MinSamples: 0})
	assert.ErrorIs(t, err, analysis.ErrInvalidParams)

	_, err = NewDBSCAN(analysis.Params{Eps: 0.1, MinSamples: 5, Metric: "manhattan"})
	assert.ErrorIs(t, err, analysis.ErrInvalidParams)
}

func TestDBSCANMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([]spatial.Point, 600)
	for i := range points {
		points[i] = spatial.Point{Lat: 45.7 + rng.Float64()*0.02, Lon: 4.8 + rng.Float64()*0.02}
	}
	eps, minSamples := 0.0012, 4

	c, err := NewDBSCAN(analysis.Params{Eps: eps, MinSamples: minSamples})
	require.NoError(t, err)
	res, err := c.Fit(context.Background(), points)
	require.NoError(t, err)

	// a core point and everything in its neighbourhood end up in a cluster
	for i := range points {
		var neigh []int
		for j := range points {
			if spatial.DegreeDistance(points[i], points[j]) <= eps {
				neigh = append(neigh, j)
			}
		}
		if len(neigh) < minSamples {
			continue
		}
		require.NotEqual(t, models.NoiseClusterID, res.Labels[i], "core point %d labelled noise", i)
		for _, j := range neigh {
			assert.NotEqual(t, models.NoiseClusterID, res.Labels[j])
		}
	}
}

func TestDBSCANCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := NewDBSCAN(analysis.Params{Eps: 0.001, MinSamples: 2})
	require.NoError(t, err)
	_, err = c.Fit(ctx, tightGroupWithOutlier())
	assert.ErrorIs(t, err, context.Canceled)
}
