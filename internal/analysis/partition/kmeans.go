package partition

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/jengzang/photomap-backend-go/internal/analysis"
	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
	"github.com/jengzang/photomap-backend-go/internal/stats"
)

const (
	DefaultSeed    = 42
	DefaultMaxIter = 300

	// tolerance on centroid movement, relative to the mean per-axis variance
	relativeTolerance = 1e-4
)

// Solution is a fitted k-means partition
type Solution struct {
	Labels     models.ClusterAssignment
	Centroids  []spatial.Point
	Inertia    float64 // sum of squared distances to the assigned centroid
	Iterations int
}

// KMeans implements Lloyd's algorithm with k-means++ seeding.
// Distances are Euclidean on raw (lat, lon) degrees.
type KMeans struct {
	k       int
	seed    int64
	maxIter int
}

// NewKMeans creates a new k-means clusterer
func NewKMeans(params analysis.Params) (analysis.Clusterer, error) {
	return newKMeans(params)
}

func newKMeans(params analysis.Params) (*KMeans, error) {
	if params.K <= 0 {
		return nil, fmt.Errorf("%w: n_clusters must be positive, got %d", analysis.ErrInvalidParams, params.K)
	}
	maxIter := params.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	return &KMeans{k: params.K, seed: params.Seed, maxIter: maxIter}, nil
}

// Name returns the algorithm name
func (km *KMeans) Name() string {
	return analysis.AlgorithmKMeans
}

// Fit partitions points into k clusters. Fewer come back only when points coincide.
func (km *KMeans) Fit(ctx context.Context, points []spatial.Point) (*analysis.Result, error) {
	sol, err := km.Solve(ctx, points)
	if err != nil {
		return nil, err
	}
	return &analysis.Result{Labels: sol.Labels}, nil
}

// Solve runs k-means and returns labels together with centroids and inertia
func (km *KMeans) Solve(ctx context.Context, points []spatial.Point) (*Solution, error) {
	n := len(points)
	if km.k > n {
		return nil, fmt.Errorf("%w: n_clusters=%d, points=%d", analysis.ErrTooFewPoints, km.k, n)
	}

	rng := rand.New(rand.NewSource(km.seed))
	centroids := seedPlusPlus(points, km.k, rng)
	labels := make(models.ClusterAssignment, n)
	tol := relativeTolerance * meanVariance(points)

	iter := 0
	for iter < km.maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter++

		assign(points, centroids, labels)
		next := recompute(points, labels, km.k)
		fixEmpty(points, labels, next)

		shift := 0.0
		for c := range centroids {
			shift += sqDist(centroids[c], next[c])
		}
		centroids = next
		if shift <= tol {
			break
		}
	}

	// final assignment against the converged centroids
	inertia := assign(points, centroids, labels)
	labels, centroids = compact(labels, centroids)

	logger.Named("KMeans").Debugf("Partitioned %d points into %d clusters in %d iterations (inertia=%.6g)",
		n, km.k, iter, inertia)

	return &Solution{
		Labels:     labels,
		Centroids:  centroids,
		Inertia:    inertia,
		Iterations: iter,
	}, nil
}

// seedPlusPlus picks k initial centroids, each new one sampled with probability
// proportional to its squared distance from the nearest centroid chosen so far.
func seedPlusPlus(points []spatial.Point, k int, rng *rand.Rand) []spatial.Point {
	centroids := make([]spatial.Point, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	closest := make([]float64, len(points))
	for i, p := range points {
		closest[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range closest {
			total += d
		}

		chosen := -1
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range closest {
				target -= d
				if target < 0 {
					chosen = i
					break
				}
			}
			if chosen < 0 {
				chosen = len(points) - 1
			}
		} else {
			// all remaining points coincide with a centroid
			chosen = rng.Intn(len(points))
		}

		c := points[chosen]
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < closest[i] {
				closest[i] = d
			}
		}
	}
	return centroids
}

// assign labels each point with its nearest centroid and returns the inertia
func assign(points []spatial.Point, centroids []spatial.Point, labels models.ClusterAssignment) float64 {
	inertia := 0.0
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := sqDist(p, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

func recompute(points []spatial.Point, labels models.ClusterAssignment, k int) []spatial.Point {
	sums := make([]spatial.Point, k)
	counts := make([]int, k)
	for i, p := range points {
		c := labels[i]
		sums[c].Lat += p.Lat
		sums[c].Lon += p.Lon
		counts[c]++
	}

	next := make([]spatial.Point, k)
	for c := range next {
		if counts[c] == 0 {
			next[c] = spatial.Point{Lat: math.NaN(), Lon: math.NaN()}
			continue
		}
		next[c] = spatial.Point{Lat: sums[c].Lat / float64(counts[c]), Lon: sums[c].Lon / float64(counts[c])}
	}
	return next
}

// fixEmpty relocates each empty centroid onto the point farthest from its
// current centroid, which then moves into that cluster.
func fixEmpty(points []spatial.Point, labels models.ClusterAssignment, centroids []spatial.Point) {
	taken := make(map[int]bool)
	for c := range centroids {
		if !math.IsNaN(centroids[c].Lat) {
			continue
		}

		far, farDist := -1, -1.0
		for i, p := range points {
			if taken[i] || math.IsNaN(centroids[labels[i]].Lat) {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			far = 0
		}
		taken[far] = true
		centroids[c] = points[far]
		labels[far] = c
	}
}

// compact renumbers clusters by first appearance so ids are dense 0..k-1
func compact(labels models.ClusterAssignment, centroids []spatial.Point) (models.ClusterAssignment, []spatial.Point) {
	mapping := make(map[int]int, len(centroids))
	ordered := make([]spatial.Point, 0, len(centroids))
	for _, l := range labels {
		if _, ok := mapping[l]; !ok {
			mapping[l] = len(ordered)
			ordered = append(ordered, centroids[l])
		}
	}
	for i, l := range labels {
		labels[i] = mapping[l]
	}
	return labels, ordered
}

func meanVariance(points []spatial.Point) float64 {
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	return (stats.PopulationVariance(lats) + stats.PopulationVariance(lons)) / 2
}

func sqDist(a, b spatial.Point) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return dLat*dLat + dLon*dLon
}

// Register the clusterer
func init() {
	analysis.RegisterClusterer(analysis.AlgorithmKMeans, NewKMeans)
}
