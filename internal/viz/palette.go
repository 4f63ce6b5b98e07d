package viz

import (
	"github.com/lucasb-eyer/go-colorful"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

const (
	// NoiseColor is reserved for unclustered points
	NoiseColor = "#808080"

	paletteSaturation = 0.8
	paletteValue      = 0.9
)

// Palette holds one color per cluster index, preceded by the noise color.
// It depends only on the cluster count.
type Palette struct {
	colors []string
}

// NewPalette spreads n hues evenly around the color wheel (hue = i/n)
func NewPalette(n int) Palette {
	if n < 0 {
		n = 0
	}
	colors := make([]string, 0, n+1)
	colors = append(colors, NoiseColor)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n) * 360
		colors = append(colors, colorful.Hsv(hue, paletteSaturation, paletteValue).Clamped().Hex())
	}
	return Palette{colors: colors}
}

// Len returns the number of cluster colors, noise excluded
func (p Palette) Len() int {
	return len(p.colors) - 1
}

// Colors returns the noise color followed by the cluster colors
func (p Palette) Colors() []string {
	out := make([]string, len(p.colors))
	copy(out, p.colors)
	return out
}

// Index returns the color of the i-th cluster. Out of range indexes wrap.
func (p Palette) Index(i int) string {
	if p.Len() == 0 || i < 0 {
		return NoiseColor
	}
	return p.colors[1+i%p.Len()]
}

// Assign maps each cluster id to a color by its position in ids, and the
// noise id to NoiseColor.
func (p Palette) Assign(ids []int) map[int]string {
	out := make(map[int]string, len(ids)+1)
	out[models.NoiseClusterID] = NoiseColor
	for i, id := range ids {
		out[id] = p.Index(i)
	}
	return out
}
