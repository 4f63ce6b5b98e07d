package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jengzang/photomap-backend-go/internal/analysis"
	_ "github.com/jengzang/photomap-backend-go/internal/analysis/density"
	_ "github.com/jengzang/photomap-backend-go/internal/analysis/partition"
	aspatial "github.com/jengzang/photomap-backend-go/internal/analysis/spatial"
	"github.com/jengzang/photomap-backend-go/internal/analysis/temporal"
	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/dataset"
	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
	"github.com/jengzang/photomap-backend-go/internal/stats"
	"github.com/jengzang/photomap-backend-go/internal/textproc"
	"github.com/jengzang/photomap-backend-go/internal/viz"
)

// ErrEmptyDataset is returned when there is no record to cluster
var ErrEmptyDataset = errors.New("dataset has no records")

// Query is the optional search term a dataset was collected with. When Keep
// is set the term stays eligible for labels even if it is globally common.
type Query struct {
	Term string `json:"term" yaml:"term"`
	Keep bool   `json:"keep" yaml:"keep"`
}

// Stage names a step of the run
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageCluster  Stage = "cluster"
	StageLabel    Stage = "label"
	StageGeometry Stage = "geometry"
	StageCharts   Stage = "charts"
	StageRender   Stage = "render"
	StageDone     Stage = "done"
)

// Progress is reported at every stage boundary
type Progress struct {
	Stage   Stage   `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// ProgressFunc receives progress updates; it must not block
type ProgressFunc func(Progress)

// Options locates the run artifacts
type Options struct {
	MapPath  string
	ChartDir string

	// ChartURLPrefix, when set, is joined with the chart file name for links
	// in the map (e.g. "/charts/"). Otherwise links are relative to the map file.
	ChartURLPrefix string

	Stopwords  textproc.Set
	OpenViewer bool
}

// Pipeline turns a dataset into a labelled cluster map
type Pipeline struct {
	opts     Options
	renderer *viz.Renderer
}

// New creates a pipeline writing artifacts where opts says
func New(opts Options) (*Pipeline, error) {
	if opts.MapPath == "" {
		return nil, fmt.Errorf("map path is required")
	}
	if opts.Stopwords == nil {
		base, err := textproc.DefaultStopwords()
		if err != nil {
			return nil, fmt.Errorf("failed to load stopwords: %w", err)
		}
		opts.Stopwords = base
	}

	renderer, err := viz.NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, renderer: renderer}, nil
}

// MapPath returns where the map artifact is written
func (p *Pipeline) MapPath() string {
	return p.opts.MapPath
}

// ChartDir returns the chart directory
func (p *Pipeline) ChartDir() string {
	return p.opts.ChartDir
}

// Run executes every stage in order. Missing columns, invalid parameters and
// clustering failures abort the run; per-cluster geometry and chart problems
// are recorded in the report instead.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, cfg config.RunConfig, q Query, progress ProgressFunc) (*Report, error) {
	log := logger.Named("Pipeline")
	started := time.Now()
	if progress == nil {
		progress = func(Progress) {}
	}

	progress(Progress{Stage: StagePrepare, Percent: 0})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ds.RequireColumns(dataset.RequiredColumns...); err != nil {
		return nil, err
	}
	if cfg.MaxPoints > 0 {
		ds = ds.Head(cfg.MaxPoints)
	}
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}

	records := ds.Records
	points := make([]spatial.Point, len(records))
	for i, rec := range records {
		points[i] = spatial.Point{Lat: rec.Lat, Lon: rec.Lon}
	}
	log.Infof("Starting run: algorithm=%s, points=%d", cfg.Algorithm, len(points))

	// 1. Spatial clustering
	progress(Progress{Stage: StageCluster, Percent: 10, Message: fmt.Sprintf("clustering %d points", len(points))})
	params := cfg.ClusterParams()
	if strings.EqualFold(cfg.Algorithm, analysis.AlgorithmKMeans) && params.K > len(points) {
		log.Infof("Clamping n_clusters from %d to %d points", params.K, len(points))
		params.K = len(points)
	}
	clusterer, err := analysis.NewClusterer(cfg.Algorithm, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterer: %w", err)
	}
	result, err := clusterer.Fit(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster points: %w", err)
	}
	labels := result.Labels
	ids := labels.ClusterIDs()
	log.Infof("Found %d clusters, %d noise points", len(ids), labels.NoiseCount())

	// 2. Labels
	progress(Progress{Stage: StageLabel, Percent: 40, Message: fmt.Sprintf("labelling %d clusters", len(ids))})
	retain := ""
	if q.Keep {
		retain = textproc.NormalizeQuery(q.Term)
	}
	common := textproc.TopTokens(records, textproc.NewNormalizer(p.opts.Stopwords), cfg.NCommonTags, retain)
	exclusion := textproc.ExclusionSet(p.opts.Stopwords, common, retain)
	corpus := textproc.BuildCorpus(records, labels, textproc.NewNormalizer(exclusion))
	names := textproc.NewLabeler(corpus).LabelAll(labels)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Hulls
	progress(Progress{Stage: StageGeometry, Percent: 55})
	geometries, err := aspatial.NewGeometryBuilder(cfg.Seed).Build(ctx, points, labels)
	if err != nil {
		return nil, err
	}

	colors := viz.NewPalette(len(ids)).Assign(ids)
	members := labels.Members()

	report := &Report{
		Algorithm:       clusterer.Name(),
		TotalPoints:     len(points),
		NoisePoints:     labels.NoiseCount(),
		ClusteredPoints: len(points) - labels.NoiseCount(),
		ClusterCount:    len(ids),
		Degenerate:      result.Degenerate,
		CommonTokens:    common,
		RetainedQuery:   retain,
		MapPath:         p.opts.MapPath,
		StartedAt:       started,
	}

	sizes := make([]int, 0, len(ids))
	outcomes := make(map[int]*ClusterOutcome, len(ids))
	for _, id := range ids {
		g := geometries[id]
		o := &ClusterOutcome{
			ID:             id,
			Label:          names[id],
			Size:           len(members[id]),
			Color:          colors[id],
			GeometryStatus: g.Status,
			GeometryReason: g.Reason,
			AreaSquareM:    g.AreaSquareM,
			ChartStatus:    ChartDisabled,
		}
		outcomes[id] = o
		sizes = append(sizes, o.Size)
	}
	report.SizeSummary = stats.SummarizeSizes(sizes)

	// 4. Temporal charts
	chartURLs := make(map[int]string)
	if cfg.TemporalCharts {
		progress(Progress{Stage: StageCharts, Percent: 70})
		report.ChartDir = p.opts.ChartDir
		report.ChartsWrote = p.writeCharts(ctx, records, labels, cfg.Grouping(), outcomes, chartURLs)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Map
	progress(Progress{Stage: StageRender, Percent: 85})
	in := viz.MapInput{
		Records:    records,
		Labels:     labels,
		Names:      names,
		Geometries: geometries,
		Colors:     colors,
		ChartURLs:  chartURLs,
	}
	studyArea := cfg.StudyArea
	renderStats, err := p.renderer.WriteFile(p.opts.MapPath, in, viz.DisplayOptions{
		Title:            mapTitle(q),
		ShowMarkers:      cfg.ShowMarkers,
		MaxDisplayPoints: cfg.MaxDisplayPoints,
		TemporalCharts:   cfg.TemporalCharts,
		StudyArea:        &studyArea,
		Seed:             cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	report.Render = renderStats

	if p.opts.OpenViewer {
		if err := viz.OpenInViewer(p.opts.MapPath); err != nil {
			log.Warnf("Failed to open map viewer: %v", err)
		}
	}

	report.Clusters = make([]ClusterOutcome, 0, len(ids))
	for _, id := range ids {
		report.Clusters = append(report.Clusters, *outcomes[id])
	}
	report.Duration = time.Since(started)

	progress(Progress{Stage: StageDone, Percent: 100})
	log.Infof("Run completed in %s: %d clusters, %d polygons, %d charts",
		report.Duration.Round(time.Millisecond), report.ClusterCount, report.Polygons(), report.ChartsWrote)
	return report, nil
}

// writeCharts purges old charts and writes one per cluster. Failures only
// degrade the affected cluster.
func (p *Pipeline) writeCharts(ctx context.Context, records []models.PhotoRecord, labels models.ClusterAssignment,
	grouping temporal.Grouping, outcomes map[int]*ClusterOutcome, urls map[int]string) int {
	log := logger.Named("Pipeline")
	writer := viz.NewChartWriter(p.opts.ChartDir)

	if removed, err := writer.Purge(); err != nil {
		log.Warnf("Failed to purge old charts: %v", err)
	} else if removed > 0 {
		log.Debugf("Removed %d charts from previous run", removed)
	}

	written := 0
	for id, hist := range temporal.ByCluster(records, labels, grouping) {
		if ctx.Err() != nil {
			return written
		}

		o := outcomes[id]
		o.DroppedTimestamps = hist.Dropped
		if hist.Empty() {
			o.ChartStatus = ChartUnavailable
			o.ChartReason = temporal.NoChartMessage
			continue
		}

		path, err := writer.Write(hist, o.Label, o.Color)
		if err != nil {
			log.Warnf("Cluster %d: chart not written: %v", id, err)
			o.ChartStatus = ChartFailed
			o.ChartReason = err.Error()
			continue
		}

		o.ChartStatus = ChartWritten
		o.ChartPath = path
		urls[id] = p.chartURL(path)
		written++
	}
	return written
}

func (p *Pipeline) chartURL(path string) string {
	name := filepath.Base(path)
	if p.opts.ChartURLPrefix != "" {
		return strings.TrimSuffix(p.opts.ChartURLPrefix, "/") + "/" + name
	}
	rel, err := filepath.Rel(filepath.Dir(p.opts.MapPath), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func mapTitle(q Query) string {
	if q.Term == "" {
		return "Photo clusters"
	}
	return "Photo clusters: " + q.Term
}
