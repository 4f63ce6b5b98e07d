package density

import (
	"math"

	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

type cellKey struct {
	row, col int64
}

// gridIndex buckets points into square cells at least eps wide so a radius
// query only has to scan the 3x3 block around the query cell.
type gridIndex struct {
	points   []spatial.Point
	cellSize float64
	cells    map[cellKey][]int
	within   func(a, b spatial.Point) bool
}

func newGridIndex(points []spatial.Point, cellSize float64, within func(a, b spatial.Point) bool) *gridIndex {
	g := &gridIndex{
		points:   points,
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
		within:   within,
	}
	for i, p := range points {
		k := g.key(p)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *gridIndex) key(p spatial.Point) cellKey {
	return cellKey{
		row: int64(math.Floor(p.Lat / g.cellSize)),
		col: int64(math.Floor(p.Lon / g.cellSize)),
	}
}

// neighbors appends to buf the indices of all points within the radius of
// point i, including i itself.
func (g *gridIndex) neighbors(i int, buf []int) []int {
	buf = buf[:0]
	center := g.points[i]
	k := g.key(center)
	for dr := int64(-1); dr <= 1; dr++ {
		for dc := int64(-1); dc <= 1; dc++ {
			for _, j := range g.cells[cellKey{row: k.row + dr, col: k.col + dc}] {
				if g.within(center, g.points[j]) {
					buf = append(buf, j)
				}
			}
		}
	}
	return buf
}

// count returns the neighbourhood size of point i without materialising it
func (g *gridIndex) count(i int) int {
	n := 0
	center := g.points[i]
	k := g.key(center)
	for dr := int64(-1); dr <= 1; dr++ {
		for dc := int64(-1); dc <= 1; dc++ {
			for _, j := range g.cells[cellKey{row: k.row + dr, col: k.col + dc}] {
				if g.within(center, g.points[j]) {
					n++
				}
			}
		}
	}
	return n
}
