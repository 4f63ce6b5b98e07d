package spatial

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

func TestBuildTwoDistinctCoordinatesHasNoPolygon(t *testing.T) {
	points := []spatial.Point{
		{Lat: 45.76, Lon: 4.83},
		{Lat: 45.76, Lon: 4.83},
		{Lat: 45.77, Lon: 4.84},
		{Lat: 45.77, Lon: 4.84},
	}
	labels := models.ClusterAssignment{0, 0, 0, 0}

	out, err := NewGeometryBuilder(42).Build(context.Background(), points, labels)
	require.NoError(t, err)
	require.Contains(t, out, 0)
	assert.Equal(t, GeometryTooFewPoints, out[0].Status)
	assert.False(t, out[0].HasPolygon())
	assert.Nil(t, out[0].Ring())
}

func TestBuildHullContainsMembers(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var points []spatial.Point
	var labels models.ClusterAssignment
	for c := 0; c < 2; c++ {
		for i := 0; i < 60; i++ {
			points = append(points, spatial.Point{
				Lat: 45.72 + float64(c)*0.1 + rng.Float64()*0.01,
				Lon: 4.80 + rng.Float64()*0.01,
			})
			labels = append(labels, c)
		}
	}
	// noise is never given a hull
	points = append(points, spatial.Point{Lat: 45.0, Lon: 4.0})
	labels = append(labels, models.NoiseClusterID)

	out, err := NewGeometryBuilder(42).Build(context.Background(), points, labels)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotContains(t, out, models.NoiseClusterID)

	for id, g := range out {
		require.True(t, g.HasPolygon(), "cluster %d", id)
		assert.GreaterOrEqual(t, len(g.Hull), 3)
		assert.Greater(t, g.AreaSquareM, 0.0)

		hull := make([]spatial.Point, len(g.Hull))
		for i, v := range g.Hull {
			hull[i] = spatial.Point{Lat: v.Lat, Lon: v.Lon}
		}
		for i, p := range points {
			if labels[i] == id {
				assert.True(t, spatial.HullContains(hull, p, 0.01), "cluster %d point %d", id, i)
			}
		}

		ring := g.Ring()
		assert.Equal(t, ring[0], ring[len(ring)-1])
	}
}

func TestBuildCollinearIsSkippedNotFatal(t *testing.T) {
	points := []spatial.Point{
		{Lat: 45.0, Lon: 4.0},
		{Lat: 45.0, Lon: 4.001},
		{Lat: 45.0, Lon: 4.002},
	}
	labels := models.ClusterAssignment{3, 3, 3}

	out, err := NewGeometryBuilder(1).Build(context.Background(), points, labels)
	require.NoError(t, err)
	require.Contains(t, out, 3)
	// the perturbation may or may not open up a sliver; either way there is an outcome
	assert.Contains(t, []GeometryStatus{GeometryBuilt, GeometrySkipped}, out[3].Status)
}

func TestBuildCollinearWithoutJitterIsSkipped(t *testing.T) {
	points := []spatial.Point{
		{Lat: 45.0, Lon: 4.0},
		{Lat: 45.001, Lon: 4.0},
		{Lat: 45.002, Lon: 4.0},
		{Lat: 45.76, Lon: 4.83},
		{Lat: 45.77, Lon: 4.83},
		{Lat: 45.76, Lon: 4.84},
	}
	labels := models.ClusterAssignment{0, 0, 0, 1, 1, 1}

	b := NewGeometryBuilder(1)
	b.jitter = 0
	out, err := b.Build(context.Background(), points, labels)
	require.NoError(t, err)

	require.Contains(t, out, 0)
	assert.Equal(t, GeometrySkipped, out[0].Status)
	assert.Equal(t, "points are collinear", out[0].Reason)
	assert.False(t, out[0].HasPolygon())

	// the other cluster is unaffected
	assert.Equal(t, GeometryBuilt, out[1].Status)
	assert.Positive(t, out[1].AreaSquareM)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGeometryBuilder(1).Build(ctx, []spatial.Point{{Lat: 1, Lon: 1}}, models.ClusterAssignment{0})
	assert.ErrorIs(t, err, context.Canceled)
}
