package models

import "sort"

// NoiseClusterID is the reserved id for points outside every dense region.
const NoiseClusterID = -1

// NoiseLabel is the fixed display label of the noise cluster.
const NoiseLabel = "Unclustered points"

// ClusterAssignment maps each record index to a cluster id (or NoiseClusterID).
// It is total: len(ClusterAssignment) equals the number of clustered records.
type ClusterAssignment []int

// ClusterIDs returns the distinct non-noise ids in ascending order.
func (a ClusterAssignment) ClusterIDs() []int {
	seen := make(map[int]struct{})
	for _, id := range a {
		if id != NoiseClusterID {
			seen[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Members groups record indexes by cluster id, noise included.
func (a ClusterAssignment) Members() map[int][]int {
	members := make(map[int][]int)
	for idx, id := range a {
		members[id] = append(members[id], idx)
	}
	return members
}

// NoiseCount returns how many records were left unclustered.
func (a ClusterAssignment) NoiseCount() int {
	n := 0
	for _, id := range a {
		if id == NoiseClusterID {
			n++
		}
	}
	return n
}

// LatLng is one polygon vertex.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PeriodCount is one bucket of a temporal histogram.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}
