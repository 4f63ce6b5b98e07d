package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

// Algorithm names accepted by NewClusterer
const (
	AlgorithmDBSCAN = "dbscan"
	AlgorithmKMeans = "kmeans"
)

// Distance metrics understood by density clustering
const (
	MetricDegrees   = "degrees"
	MetricHaversine = "haversine"
)

var (
	ErrInvalidParams    = errors.New("invalid clustering parameters")
	ErrTooFewPoints     = errors.New("too few points for requested cluster count")
	ErrUnknownAlgorithm = errors.New("unknown clustering algorithm")
)

// Clusterer is the interface that all clustering algorithms must implement
type Clusterer interface {
	// Name returns the registered algorithm name
	Name() string

	// Fit assigns every point a cluster id. The returned labels are positionally
	// aligned with points; NoiseClusterID marks points outside any cluster.
	Fit(ctx context.Context, points []spatial.Point) (*Result, error)
}

// Result is the outcome of a clustering run
type Result struct {
	Labels models.ClusterAssignment

	// Degenerate is set when the input could not form any cluster at all,
	// e.g. fewer points than the density threshold.
	Degenerate string
}

// ClusterCount returns the number of non-noise clusters
func (r *Result) ClusterCount() int {
	return len(r.Labels.ClusterIDs())
}

// Params holds the tunables for every algorithm. Each algorithm reads only the
// fields it needs.
type Params struct {
	// density
	Eps        float64
	MinSamples int
	Metric     string

	// partition
	K       int
	Seed    int64
	MaxIter int
}

// ClustererFactory creates a clusterer from params, validating them
type ClustererFactory func(params Params) (Clusterer, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ClustererFactory)
)

// RegisterClusterer registers a clusterer factory for an algorithm name
func RegisterClusterer(name string, factory ClustererFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// NewClusterer builds the clusterer registered under name
func NewClusterer(name string, params Params) (Clusterer, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return factory(params)
}

// Algorithms lists the registered algorithm names in sorted order
func Algorithms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an algorithm is available
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(name)]
	return ok
}
