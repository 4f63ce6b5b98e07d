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

// silhouetteSampleSize caps the O(n^2) silhouette computation
const silhouetteSampleSize = 2000

// ElbowPoint holds the scores for one candidate k
type ElbowPoint struct {
	K          int     `json:"k"`
	Inertia    float64 `json:"inertia"`
	Silhouette float64 `json:"silhouette"`
}

// ElbowReport is the outcome of scanning a range of k
type ElbowReport struct {
	Points []ElbowPoint `json:"points"`
	BestK  int          `json:"best_k"`
}

// Elbow fits k-means for every k in [kMin, kMax] and picks the k with the
// highest mean silhouette.
func Elbow(ctx context.Context, points []spatial.Point, kMin, kMax int, seed int64) (*ElbowReport, error) {
	log := logger.Named("Elbow")

	if kMin < 2 || kMax <= kMin {
		return nil, fmt.Errorf("%w: need 2 <= kmin < kmax, got kmin=%d kmax=%d", analysis.ErrInvalidParams, kMin, kMax)
	}
	if kMax > len(points) {
		return nil, fmt.Errorf("%w: kmax=%d, points=%d", analysis.ErrTooFewPoints, kMax, len(points))
	}

	sample := sampleIndices(len(points), silhouetteSampleSize, seed)

	report := &ElbowReport{Points: make([]ElbowPoint, 0, kMax-kMin+1)}
	scores := make([]float64, 0, kMax-kMin+1)
	for k := kMin; k <= kMax; k++ {
		km, err := newKMeans(analysis.Params{K: k, Seed: seed})
		if err != nil {
			return nil, err
		}
		sol, err := km.Solve(ctx, points)
		if err != nil {
			return nil, fmt.Errorf("failed to fit k=%d: %w", k, err)
		}

		sil := Silhouette(points, sol.Labels, sample)
		report.Points = append(report.Points, ElbowPoint{K: k, Inertia: sol.Inertia, Silhouette: sil})
		scores = append(scores, sil)
		log.Debugf("k=%d inertia=%.6g silhouette=%.4f", k, sol.Inertia, sil)
	}

	report.BestK = report.Points[stats.ArgMax(scores)].K
	log.Infof("Best k by silhouette: %d (scanned %d..%d)", report.BestK, kMin, kMax)
	return report, nil
}

// Silhouette returns the mean silhouette coefficient over the sampled indices.
// Distances are Euclidean on degrees. Points in singleton clusters score 0.
func Silhouette(points []spatial.Point, labels models.ClusterAssignment, sample []int) float64 {
	if len(sample) == 0 {
		return 0
	}

	inSample := make(map[int]int)
	for _, i := range sample {
		inSample[labels[i]]++
	}
	if len(inSample) < 2 {
		return 0
	}

	values := make([]float64, 0, len(sample))
	for _, i := range sample {
		sums := make(map[int]float64)
		counts := make(map[int]int)
		for _, j := range sample {
			if i == j {
				continue
			}
			sums[labels[j]] += spatial.DegreeDistance(points[i], points[j])
			counts[labels[j]]++
		}

		own := labels[i]
		if counts[own] == 0 {
			values = append(values, 0)
			continue
		}
		a := sums[own] / float64(counts[own])

		b := math.Inf(1)
		for label, sum := range sums {
			if label == own {
				continue
			}
			if mean := sum / float64(counts[label]); mean < b {
				b = mean
			}
		}

		denom := math.Max(a, b)
		if denom == 0 || math.IsInf(b, 1) {
			values = append(values, 0)
			continue
		}
		values = append(values, (b-a)/denom)
	}
	return stats.Mean(values)
}

// sampleIndices returns all indices when n <= size, otherwise a seeded sample of size
func sampleIndices(n, size int, seed int64) []int {
	if n <= size {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	rng := rand.New(rand.NewSource(seed))
	return rng.Perm(n)[:size]
}
