package viz

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/jengzang/photomap-backend-go/internal/analysis/temporal"
)

// ErrEmptyHistogram is returned when there is nothing to draw
var ErrEmptyHistogram = errors.New(temporal.NoChartMessage)

// chartPattern matches every per-cluster chart in the chart directory
const chartPattern = "cluster_*.svg"

// ChartLayout sizes the bar chart
type ChartLayout struct {
	Width        int
	Height       int
	MarginLeft   int
	MarginRight  int
	MarginTop    int
	MarginBottom int
	FontFamily   string
	FontSize     int
}

// DefaultChartLayout returns the layout used for cluster charts
func DefaultChartLayout() ChartLayout {
	return ChartLayout{
		Width:        640,
		Height:       320,
		MarginLeft:   48,
		MarginRight:  16,
		MarginTop:    40,
		MarginBottom: 64,
		FontFamily:   "Arial, sans-serif",
		FontSize:     11,
	}
}

// ChartWriter writes one SVG histogram per cluster into a directory
type ChartWriter struct {
	dir    string
	layout ChartLayout
}

// NewChartWriter creates a writer for dir
func NewChartWriter(dir string) *ChartWriter {
	return &ChartWriter{dir: dir, layout: DefaultChartLayout()}
}

// Dir returns the chart directory
func (w *ChartWriter) Dir() string {
	return w.dir
}

// FileName returns the chart file name of a cluster
func FileName(clusterID int) string {
	return fmt.Sprintf("cluster_%d.svg", clusterID)
}

// Purge removes every chart left by a previous run
func (w *ChartWriter) Purge() (int, error) {
	matches, err := filepath.Glob(filepath.Join(w.dir, chartPattern))
	if err != nil {
		return 0, fmt.Errorf("failed to list charts: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", m, err)
		}
		removed++
	}
	return removed, nil
}

// Write renders h and atomically writes it as cluster_{id}.svg
func (w *ChartWriter) Write(h *temporal.Histogram, title, color string) (string, error) {
	if h.Empty() {
		return "", ErrEmptyHistogram
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}

	path := filepath.Join(w.dir, FileName(h.ClusterID))
	svg := RenderBarChart(h, title, color, w.layout)
	if err := renameio.WriteFile(path, []byte(svg), 0o644); err != nil {
		return "", fmt.Errorf("failed to write chart %s: %w", path, err)
	}
	return path, nil
}

// RenderBarChart draws the histogram as an SVG bar chart, one bar per period
func RenderBarChart(h *temporal.Histogram, title, color string, layout ChartLayout) string {
	plotWidth := layout.Width - layout.MarginLeft - layout.MarginRight
	plotHeight := layout.Height - layout.MarginTop - layout.MarginBottom
	baseY := layout.MarginTop + plotHeight

	maxCount := 0
	for _, b := range h.Buckets {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	var svg strings.Builder
	svg.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="#ffffff"/>
<defs>
<style>
.title-text { font-family: %s; font-size: %dpx; font-weight: bold; fill: #222222; }
.axis-text { font-family: %s; font-size: %dpx; fill: #444444; }
</style>
</defs>
`, layout.Width, layout.Height,
		layout.FontFamily, layout.FontSize+3,
		layout.FontFamily, layout.FontSize))

	svg.WriteString(fmt.Sprintf(`<text class="title-text" x="%d" y="%d" text-anchor="middle">%s</text>`+"\n",
		layout.Width/2, layout.MarginTop/2+4, escapeXML(title)))

	// axes
	svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#444444" stroke-width="1"/>`+"\n",
		layout.MarginLeft, baseY, layout.MarginLeft+plotWidth, baseY))
	svg.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#444444" stroke-width="1"/>`+"\n",
		layout.MarginLeft, layout.MarginTop, layout.MarginLeft, baseY))
	svg.WriteString(fmt.Sprintf(`<text class="axis-text" x="%d" y="%d" text-anchor="end">%d</text>`+"\n",
		layout.MarginLeft-4, layout.MarginTop+4, maxCount))

	n := len(h.Buckets)
	slot := float64(plotWidth) / float64(n)
	barWidth := slot * 0.8
	// thin out period labels when they would overlap
	labelEvery := 1
	if minSlot := float64(layout.FontSize) * 1.6; slot < minSlot {
		labelEvery = int(minSlot/slot) + 1
	}

	for i, b := range h.Buckets {
		barHeight := 0.0
		if maxCount > 0 {
			barHeight = float64(b.Count) / float64(maxCount) * float64(plotHeight)
		}
		x := float64(layout.MarginLeft) + float64(i)*slot + (slot-barWidth)/2
		y := float64(baseY) - barHeight

		svg.WriteString(fmt.Sprintf(`<rect class="bar" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s: %d</title></rect>`+"\n",
			x, y, barWidth, barHeight, color, escapeXML(b.Period), b.Count))

		if i%labelEvery == 0 {
			cx := x + barWidth/2
			svg.WriteString(fmt.Sprintf(`<text class="axis-text" x="%.2f" y="%d" text-anchor="end" transform="rotate(-45 %.2f %d)">%s</text>`+"\n",
				cx, baseY+14, cx, baseY+14, escapeXML(b.Period)))
		}
	}

	svg.WriteString("</svg>")
	return svg.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
