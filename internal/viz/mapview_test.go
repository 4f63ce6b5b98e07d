package viz

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	aspatial "github.com/jengzang/photomap-backend-go/internal/analysis/spatial"
	"github.com/jengzang/photomap-backend-go/internal/models"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

func square(id int) *aspatial.ClusterGeometry {
	return &aspatial.ClusterGeometry{
		ClusterID: id,
		Status:    aspatial.GeometryBuilt,
		Hull: []models.LatLng{
			{Lat: 45.75, Lon: 4.82},
			{Lat: 45.75, Lon: 4.83},
			{Lat: 45.76, Lon: 4.83},
			{Lat: 45.76, Lon: 4.82},
		},
		AreaSquareM: 860000,
	}
}

func fixtureInput() MapInput {
	var records []models.PhotoRecord
	var labels models.ClusterAssignment
	for i := 0; i < 12; i++ {
		id := i % 3
		if i == 11 {
			id = models.NoiseClusterID
		}
		records = append(records, models.PhotoRecord{
			ID:   "100" + string(rune('a'+i)),
			User: "user<" + string(rune('a'+i)) + ">",
			Lat:  45.75 + float64(i)*0.001,
			Lon:  4.82 + float64(i)*0.001,
		})
		labels = append(labels, id)
	}
	return MapInput{
		Records: records,
		Labels:  labels,
		Names:   map[int]string{0: "Fourviere, Basilica", 1: "Bellecour", 2: "</script><b>x</b>"},
		Geometries: map[int]*aspatial.ClusterGeometry{
			0: square(0),
			1: {ClusterID: 1, Status: aspatial.GeometryTooFewPoints},
			2: square(2),
		},
		Colors:    NewPalette(3).Assign([]int{0, 1, 2}),
		ChartURLs: map[int]string{0: "charts/cluster_0.svg"},
	}
}

func TestBuildFeatureCollection(t *testing.T) {
	fc := BuildFeatureCollection(fixtureInput(), true)
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	assert.Equal(t, 0, first.Properties["cluster_id"])
	assert.Equal(t, "Fourviere, Basilica", first.Properties["label"])
	assert.Equal(t, 4, first.Properties["size"])
	assert.Equal(t, "charts/cluster_0.svg", first.Properties["chart_url"])

	// charts enabled but none written for cluster 2
	assert.Equal(t, "no chart available", fc.Features[1].Properties["chart_note"])

	noCharts := BuildFeatureCollection(fixtureInput(), false)
	assert.NotContains(t, noCharts.Features[0].Properties, "chart_url")
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestRenderProducesLeafletPage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	area := spatial.Rect{MinLat: 45.70, MinLon: 4.78, MaxLat: 45.87, MaxLon: 4.95}
	var buf bytes.Buffer
	stats, err := r.Render(&buf, fixtureInput(), DisplayOptions{
		ShowMarkers:      true,
		MaxDisplayPoints: 6,
		TemporalCharts:   true,
		StudyArea:        &area,
		Seed:             42,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Polygons)
	assert.Equal(t, 6, stats.DisplayedPoints)
	assert.Equal(t, 6, stats.MarkersDrawn)
	assert.Zero(t, stats.OutsideStudy)

	doc, err := html.Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	mapDiv := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && attr(n, "id") == "map"
	})
	require.NotNil(t, mapDiv)
	assert.Equal(t, "3", attr(mapDiv, "data-clusters"))
	assert.Equal(t, "6", attr(mapDiv, "data-markers"))

	script := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "script" && attr(n, "src") == "" &&
			n.FirstChild != nil && strings.Contains(n.FirstChild.Data, "L.geoJSON")
	})
	require.NotNil(t, script)
	body := script.FirstChild.Data
	assert.Contains(t, body, "FeatureCollection")
	assert.Contains(t, body, "L.rectangle")
	assert.Contains(t, body, "map.fitBounds")
	assert.Contains(t, body, "https://www.flickr.com/photos/")
	// labels cannot terminate the script element
	assert.NotContains(t, body, "</script><b>")
}

func TestRenderWithoutMarkersOrArea(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := r.Render(&buf, fixtureInput(), DisplayOptions{MaxDisplayPoints: 100})
	require.NoError(t, err)
	assert.Zero(t, stats.MarkersDrawn)
	assert.Equal(t, 12, stats.DisplayedPoints)
	assert.NotContains(t, buf.String(), "L.rectangle([[")
}

func TestRenderRejectsMismatchedAssignment(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	in := fixtureInput()
	in.Labels = in.Labels[:3]
	_, err = r.Render(&bytes.Buffer{}, in, DisplayOptions{})
	assert.Error(t, err)
}

func TestWriteFileReplacesMap(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "map.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	_, err = r.WriteFile(path, fixtureInput(), DisplayOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}

func TestRenderCountsPointsOutsideStudyArea(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	// covers the first six fixture points only
	area := spatial.Rect{MinLat: 45.70, MinLon: 4.78, MaxLat: 45.7555, MaxLon: 4.95}
	stats, err := r.Render(&bytes.Buffer{}, fixtureInput(), DisplayOptions{StudyArea: &area})
	require.NoError(t, err)
	assert.Equal(t, 12, stats.DisplayedPoints)
	assert.Equal(t, 6, stats.OutsideStudy)
}
