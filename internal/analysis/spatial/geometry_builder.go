package spatial

import (
	"context"
	"errors"
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

// GeometryStatus is the per-cluster outcome of hull construction
type GeometryStatus string

const (
	// GeometryBuilt: a polygon is available
	GeometryBuilt GeometryStatus = "built"
	// GeometryTooFewPoints: fewer than three distinct coordinates, no polygon expected
	GeometryTooFewPoints GeometryStatus = "too_few_points"
	// GeometrySkipped: hull construction failed for this cluster
	GeometrySkipped GeometryStatus = "skipped"
)

const (
	// DefaultJitterDegrees perturbs coordinates by roughly 0.1 mm
	DefaultJitterDegrees = 1e-9

	minDistinctPoints = 3
)

// ClusterGeometry is the hull of one cluster, or the reason there is none
type ClusterGeometry struct {
	ClusterID   int             `json:"cluster_id"`
	Status      GeometryStatus  `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Hull        []models.LatLng `json:"hull,omitempty"`
	AreaSquareM float64         `json:"area_m2,omitempty"`
}

// HasPolygon reports whether a hull was produced
func (g *ClusterGeometry) HasPolygon() bool {
	return g != nil && g.Status == GeometryBuilt
}

// Ring returns the hull as a closed orb ring (lon, lat order)
func (g *ClusterGeometry) Ring() orb.Ring {
	if !g.HasPolygon() {
		return nil
	}
	ring := make(orb.Ring, 0, len(g.Hull)+1)
	for _, v := range g.Hull {
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}
	return append(ring, ring[0])
}

// GeometryBuilder computes a convex hull per non-noise cluster
type GeometryBuilder struct {
	jitter float64
	seed   int64
}

// NewGeometryBuilder creates a builder whose perturbation is seeded
func NewGeometryBuilder(seed int64) *GeometryBuilder {
	return &GeometryBuilder{jitter: DefaultJitterDegrees, seed: seed}
}

// Build returns one entry per non-noise cluster in labels. Degenerate clusters
// come back with a status instead of an error; only cancellation fails the call.
func (b *GeometryBuilder) Build(ctx context.Context, points []spatial.Point, labels models.ClusterAssignment) (map[int]*ClusterGeometry, error) {
	log := logger.Named("GeometryBuilder")
	rng := rand.New(rand.NewSource(b.seed))
	members := labels.Members()

	out := make(map[int]*ClusterGeometry)
	for _, id := range labels.ClusterIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		clusterPoints := make([]spatial.Point, len(members[id]))
		for i, idx := range members[id] {
			clusterPoints[i] = points[idx]
		}

		g := b.buildOne(id, clusterPoints, rng)
		if g.Status == GeometrySkipped {
			log.Warnf("Cluster %d: no hull (%s)", id, g.Reason)
		}
		out[id] = g
	}
	return out, nil
}

func (b *GeometryBuilder) buildOne(id int, points []spatial.Point, rng *rand.Rand) *ClusterGeometry {
	g := &ClusterGeometry{ClusterID: id}

	if spatial.DistinctCount(points) < minDistinctPoints {
		g.Status = GeometryTooFewPoints
		g.Reason = "fewer than 3 distinct coordinates"
		return g
	}

	jittered := make([]spatial.Point, len(points))
	for i, p := range points {
		jittered[i] = spatial.Point{
			Lat: p.Lat + (rng.Float64()*2-1)*b.jitter,
			Lon: p.Lon + (rng.Float64()*2-1)*b.jitter,
		}
	}

	hull, err := spatial.ConvexHull(jittered)
	if err != nil {
		g.Status = GeometrySkipped
		if errors.Is(err, spatial.ErrDegenerateHull) {
			g.Reason = "points are collinear"
		} else {
			g.Reason = err.Error()
		}
		return g
	}

	g.Status = GeometryBuilt
	g.Hull = make([]models.LatLng, len(hull))
	for i, v := range hull {
		g.Hull[i] = models.LatLng{Lat: v.Lat, Lon: v.Lon}
	}
	g.AreaSquareM = geo.Area(orb.Polygon{g.Ring()})
	return g
}
