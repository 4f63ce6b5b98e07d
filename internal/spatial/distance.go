package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// DegreeDistance is the planar Euclidean distance on raw (lat, lon) degrees.
// Density radii expressed in degrees (e.g. 0.0003) use this metric.
func DegreeDistance(a, b Point) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// MetersToDegrees converts a ground distance to an upper bound in degrees at the given
// latitude, used to size search cells for haversine neighbourhoods.
func MetersToDegrees(meters, lat float64) float64 {
	latDeg := meters / MetersPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	return math.Max(latDeg, latDeg/cos)
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	MetersPerDegree   = 111320.0  // meters per degree of latitude (approx)
)
