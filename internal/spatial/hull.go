package spatial

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
)

// ErrDegenerateHull is returned when the points span fewer than three hull vertices
// (all identical or all collinear).
var ErrDegenerateHull = errors.New("degenerate convex hull")

// collinearTolerance is the distance in radians (about 0.6 µm) under which a
// point counts as lying on a great circle.
const collinearTolerance = 1e-13

// ConvexHull returns the convex hull vertices of points in counter-clockwise order.
// The hull is computed on the sphere, so edges are geodesics.
func ConvexHull(points []Point) ([]Point, error) {
	vertices := make([]s2.Point, len(points))
	for i, p := range points {
		vertices[i] = toS2(p)
	}
	if onGreatCircle(vertices) {
		return nil, ErrDegenerateHull
	}

	query := s2.NewConvexHullQuery()
	for _, v := range vertices {
		query.AddPoint(v)
	}

	loop := query.ConvexHull()
	if loop.IsEmpty() || loop.IsFull() || loop.NumVertices() < 3 {
		return nil, ErrDegenerateHull
	}

	hull := make([]Point, loop.NumVertices())
	for i := range hull {
		ll := s2.LatLngFromPoint(loop.Vertex(i))
		hull[i] = Point{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()}
	}
	return hull, nil
}

// HullContains reports whether p lies inside hull or within toleranceMeters of its boundary.
func HullContains(hull []Point, p Point, toleranceMeters float64) bool {
	if len(hull) < 3 {
		return false
	}

	vertices := make([]s2.Point, len(hull))
	for i, v := range hull {
		vertices[i] = toS2(v)
	}
	loop := s2.LoopFromPoints(vertices)

	x := toS2(p)
	if loop.ContainsPoint(x) {
		return true
	}

	tolerance := toleranceMeters / EarthRadiusMeters
	for i := range vertices {
		a := vertices[i]
		b := vertices[(i+1)%len(vertices)]
		if s2.DistanceFromSegment(x, a, b).Radians() <= tolerance {
			return true
		}
	}
	return false
}

// onGreatCircle reports whether all points are identical or lie on one great
// circle. s2 would otherwise return a zero-area loop for them.
func onGreatCircle(points []s2.Point) bool {
	if len(points) < 3 {
		return true
	}

	a := points[0]
	for _, p := range points[1:] {
		n := a.Cross(p.Vector)
		if n.Norm() <= collinearTolerance {
			continue
		}
		normal := n.Normalize()
		for _, q := range points {
			if math.Abs(q.Dot(normal)) > collinearTolerance {
				return false
			}
		}
		return true
	}
	return true
}

func toS2(p Point) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
}
