package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PHOTOMAP_PORT", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "./data/photomap.db", cfg.DBPath)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.False(t, cfg.OpenViewer)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PHOTOMAP_DB_PATH", "/tmp/x.db")
	t.Setenv("PHOTOMAP_CHART_DIR", "/tmp/charts")
	t.Setenv("PHOTOMAP_OPEN_VIEWER", "true")
	t.Setenv("PHOTOMAP_PORT", "")
	t.Setenv("PORT", "9090")

	cfg := Load()
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "/tmp/charts", cfg.ChartDir)
	assert.True(t, cfg.OpenViewer)
	assert.Equal(t, ":9090", cfg.Port)
}

func TestDefaultRunConfigIsValid(t *testing.T) {
	cfg := DefaultRunConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dbscan", cfg.Algorithm)
	assert.Equal(t, 0.0003, cfg.Eps)
	assert.Equal(t, 5, cfg.MinSamples)
	assert.Equal(t, 10, cfg.NClusters)
	assert.Equal(t, 10000, cfg.MaxPoints)
	assert.Equal(t, 100, cfg.NCommonTags)
	assert.Equal(t, DefaultStudyArea, cfg.StudyArea)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*RunConfig){
		"eps":       func(c *RunConfig) { c.Eps = 0 },
		"min":       func(c *RunConfig) { c.MinSamples = 0 },
		"metric":    func(c *RunConfig) { c.Metric = "manhattan" },
		"algorithm": func(c *RunConfig) { c.Algorithm = "optics" },
		"k": func(c *RunConfig) {
			c.Algorithm = "kmeans"
			c.NClusters = 0
		},
		"grouping": func(c *RunConfig) { c.TemporalGrouping = "week" },
		"area":     func(c *RunConfig) { c.StudyArea.MaxLat = c.StudyArea.MinLat },
		"display":  func(c *RunConfig) { c.MaxDisplayPoints = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultRunConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidRunConfig)
		})
	}
}

func TestKMeansIgnoresDensityParams(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Algorithm = "kmeans"
	cfg.Eps = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadRunConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	yml := `
algorithm: kmeans
n_clusters: 7
temporal_grouping: year
show_markers: false
study_area:
  min_lat: 48.80
  min_lon: 2.25
  max_lat: 48.90
  max_lon: 2.42
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "kmeans", cfg.Algorithm)
	assert.Equal(t, 7, cfg.NClusters)
	assert.Equal(t, "year", string(cfg.Grouping()))
	assert.False(t, cfg.ShowMarkers)
	assert.Equal(t, 48.80, cfg.StudyArea.MinLat)
	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.NCommonTags)

	params := cfg.ClusterParams()
	assert.Equal(t, 7, params.K)
	assert.Equal(t, int64(42), params.Seed)
}

func TestLoadRunConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("eps: -1\n"), 0o644))

	_, err := LoadRunConfig(path)
	assert.ErrorIs(t, err, ErrInvalidRunConfig)

	cfg, err := LoadRunConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig(), cfg)
}
