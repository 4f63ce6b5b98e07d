package viz

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/browser"

	aspatial "github.com/jengzang/photomap-backend-go/internal/analysis/spatial"
	"github.com/jengzang/photomap-backend-go/internal/analysis/temporal"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

//go:embed templates/map.html.tmpl
var templateFS embed.FS

const defaultZoom = 13

// MapInput is everything the renderer draws. All maps are keyed by cluster id.
type MapInput struct {
	Records    []models.PhotoRecord
	Labels     models.ClusterAssignment
	Names      map[int]string
	Geometries map[int]*aspatial.ClusterGeometry
	Colors     map[int]string
	ChartURLs  map[int]string
}

// DisplayOptions controls what ends up on the map
type DisplayOptions struct {
	Title            string
	ShowMarkers      bool
	MaxDisplayPoints int
	TemporalCharts   bool
	StudyArea        *spatial.Rect
	Seed             int64
}

// RenderStats summarises a rendered map
type RenderStats struct {
	Polygons        int `json:"polygons"`
	DisplayedPoints int `json:"displayed_points"`
	MarkersDrawn    int `json:"markers_drawn"`
	OutsideStudy    int `json:"outside_study_area"` // displayed points outside the study rectangle
	Bytes           int `json:"bytes"`
}

type markerView struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Color string  `json:"color"`
	Label string  `json:"label"`
	URL   string  `json:"url"`
}

type mapView struct {
	Title        string
	Center       spatial.Point
	Zoom         int
	Bounds       *spatial.Rect
	StudyArea    *spatial.Rect
	ClusterCount int
	Clusters     *geojson.FeatureCollection
	Markers      []markerView
}

// Renderer produces the interactive Leaflet map
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded map template
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/map.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse map template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the map HTML to w
func (r *Renderer) Render(w io.Writer, in MapInput, opts DisplayOptions) (*RenderStats, error) {
	if len(in.Labels) != len(in.Records) {
		return nil, fmt.Errorf("cluster assignment covers %d records, dataset has %d", len(in.Labels), len(in.Records))
	}

	sample := StratifiedSample(in.Labels, opts.MaxDisplayPoints, opts.Seed)
	displayed := make([]spatial.Point, len(sample))
	for i, idx := range sample {
		displayed[i] = spatial.Point{Lat: in.Records[idx].Lat, Lon: in.Records[idx].Lon}
	}

	view := mapView{
		Title:        opts.Title,
		Center:       spatial.Centroid(displayed),
		Zoom:         defaultZoom,
		StudyArea:    opts.StudyArea,
		ClusterCount: len(in.Labels.ClusterIDs()),
		Clusters:     BuildFeatureCollection(in, opts.TemporalCharts),
		Markers:      []markerView{},
	}
	if view.Title == "" {
		view.Title = "Photo clusters"
	}
	if len(displayed) == 0 && opts.StudyArea != nil {
		view.Center = spatial.Point{
			Lat: (opts.StudyArea.MinLat + opts.StudyArea.MaxLat) / 2,
			Lon: (opts.StudyArea.MinLon + opts.StudyArea.MaxLon) / 2,
		}
	}
	if box := spatial.BoundingBox(displayed); box.Valid() {
		view.Bounds = &box
	}
	if opts.ShowMarkers {
		view.Markers = buildMarkers(in, sample)
	}

	outside := 0
	if opts.StudyArea != nil {
		for _, p := range displayed {
			if !opts.StudyArea.Contains(p) {
				outside++
			}
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render map: %w", err)
	}
	n, err := w.Write(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to write map: %w", err)
	}

	return &RenderStats{
		Polygons:        len(view.Clusters.Features),
		DisplayedPoints: len(sample),
		MarkersDrawn:    len(view.Markers),
		OutsideStudy:    outside,
		Bytes:           n,
	}, nil
}

// WriteFile renders the map and atomically replaces the file at path
func (r *Renderer) WriteFile(path string, in MapInput, opts DisplayOptions) (*RenderStats, error) {
	var buf bytes.Buffer
	stats, err := r.Render(&buf, in, opts)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create map directory: %w", err)
		}
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write map %s: %w", path, err)
	}
	return stats, nil
}

// OpenInViewer opens a rendered map with the system browser
func OpenInViewer(path string) error {
	return browser.OpenFile(path)
}

// BuildFeatureCollection turns every cluster hull into a GeoJSON polygon
// feature carrying its label, size, color, area and chart link.
func BuildFeatureCollection(in MapInput, chartsEnabled bool) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	members := in.Labels.Members()

	for _, id := range in.Labels.ClusterIDs() {
		g := in.Geometries[id]
		if !g.HasPolygon() {
			continue
		}

		f := geojson.NewFeature(orb.Polygon{g.Ring()})
		f.Properties["cluster_id"] = id
		f.Properties["label"] = in.Names[id]
		f.Properties["size"] = len(members[id])
		f.Properties["color"] = colorOf(in.Colors, id)
		f.Properties["area_m2"] = g.AreaSquareM
		if chartsEnabled {
			if url := in.ChartURLs[id]; url != "" {
				f.Properties["chart_url"] = url
			} else {
				f.Properties["chart_note"] = temporal.NoChartMessage
			}
		}
		fc.Append(f)
	}
	return fc
}

func buildMarkers(in MapInput, sample []int) []markerView {
	markers := make([]markerView, 0, len(sample))
	for _, idx := range sample {
		rec := in.Records[idx]
		id := in.Labels[idx]
		label := in.Names[id]
		if id == models.NoiseClusterID {
			label = models.NoiseLabel
		}
		markers = append(markers, markerView{
			Lat:   rec.Lat,
			Lon:   rec.Lon,
			Color: colorOf(in.Colors, id),
			Label: label,
			URL:   rec.PhotoURL(),
		})
	}
	return markers
}

func colorOf(colors map[int]string, id int) string {
	if c, ok := colors[id]; ok {
		return c
	}
	return NoiseColor
}
