package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jengzang/photomap-backend-go/internal/analysis"
	"github.com/jengzang/photomap-backend-go/internal/analysis/temporal"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

// ErrInvalidRunConfig wraps every validation failure of a RunConfig
var ErrInvalidRunConfig = errors.New("invalid run configuration")

// DefaultStudyArea is the rectangle drawn over the map when none is configured
var DefaultStudyArea = spatial.Rect{MinLat: 45.70, MinLon: 4.78, MaxLat: 45.87, MaxLon: 4.95}

// RunConfig is the immutable parameter set of one pipeline run
type RunConfig struct {
	Algorithm  string  `yaml:"algorithm" json:"algorithm"`
	Eps        float64 `yaml:"eps" json:"eps"`
	MinSamples int     `yaml:"min_samples" json:"min_samples"`
	Metric     string  `yaml:"metric" json:"metric"`
	NClusters  int     `yaml:"n_clusters" json:"n_clusters"`
	Seed       int64   `yaml:"seed" json:"seed"`

	NCommonTags int `yaml:"n_common_tags" json:"n_common_tags"`
	MaxPoints   int `yaml:"max_points" json:"max_points"`

	MaxDisplayPoints int          `yaml:"max_display_points" json:"max_display_points"`
	ShowMarkers      bool         `yaml:"show_markers" json:"show_markers"`
	TemporalCharts   bool         `yaml:"temporal_charts" json:"temporal_charts"`
	TemporalGrouping string       `yaml:"temporal_grouping" json:"temporal_grouping"`
	StudyArea        spatial.Rect `yaml:"study_area" json:"study_area"`
}

// DefaultRunConfig returns the stock parameters, tuned for the Lyon photo set
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Algorithm:        analysis.AlgorithmDBSCAN,
		Eps:              0.0003,
		MinSamples:       5,
		Metric:           analysis.MetricDegrees,
		NClusters:        10,
		Seed:             42,
		NCommonTags:      100,
		MaxPoints:        10000,
		MaxDisplayPoints: 2000,
		ShowMarkers:      true,
		TemporalCharts:   true,
		TemporalGrouping: string(temporal.GroupByMonth),
		StudyArea:        DefaultStudyArea,
	}
}

// LoadRunConfig overlays a YAML file on the defaults
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read run config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse run config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations no run can honour
func (c RunConfig) Validate() error {
	var problems []string

	switch strings.ToLower(c.Algorithm) {
	case analysis.AlgorithmDBSCAN:
		if !(c.Eps > 0) {
			problems = append(problems, fmt.Sprintf("eps must be positive, got %v", c.Eps))
		}
		if c.MinSamples < 1 {
			problems = append(problems, fmt.Sprintf("min_samples must be at least 1, got %d", c.MinSamples))
		}
		switch strings.ToLower(c.Metric) {
		case "", analysis.MetricDegrees, analysis.MetricHaversine:
		default:
			problems = append(problems, fmt.Sprintf("unknown metric %q", c.Metric))
		}
	case analysis.AlgorithmKMeans:
		if c.NClusters <= 0 {
			problems = append(problems, fmt.Sprintf("n_clusters must be positive, got %d", c.NClusters))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown algorithm %q", c.Algorithm))
	}

	if c.NCommonTags < 0 {
		problems = append(problems, "n_common_tags must not be negative")
	}
	if c.MaxPoints < 0 {
		problems = append(problems, "max_points must not be negative")
	}
	if c.MaxDisplayPoints < 0 {
		problems = append(problems, "max_display_points must not be negative")
	}
	if _, err := temporal.ParseGrouping(c.TemporalGrouping); err != nil {
		problems = append(problems, err.Error())
	}
	if !c.StudyArea.Valid() {
		problems = append(problems, "study_area must have positive extent within lat/lon bounds")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRunConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Grouping returns the parsed temporal grouping, month when unset
func (c RunConfig) Grouping() temporal.Grouping {
	g, err := temporal.ParseGrouping(c.TemporalGrouping)
	if err != nil {
		return temporal.GroupByMonth
	}
	return g
}

// ClusterParams maps the run parameters onto clusterer parameters
func (c RunConfig) ClusterParams() analysis.Params {
	return analysis.Params{
		Eps:        c.Eps,
		MinSamples: c.MinSamples,
		Metric:     c.Metric,
		K:          c.NClusters,
		Seed:       c.Seed,
	}
}
