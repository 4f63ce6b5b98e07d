package stats

import (
	mstats "github.com/montanaflynn/stats"
)

// Mean calculates the arithmetic mean, 0 for no values
func Mean(values []float64) float64 {
	m, err := mstats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// PopulationVariance calculates the population variance, 0 for no values
func PopulationVariance(values []float64) float64 {
	v, err := mstats.PopulationVariance(values)
	if err != nil {
		return 0
	}
	return v
}

// Median returns the middle value, averaging the two central ones for even counts
func Median(values []float64) float64 {
	m, err := mstats.Median(values)
	if err != nil {
		return 0
	}
	return m
}

// ArgMax returns the index of the largest value, the first one on ties. -1 when empty.
func ArgMax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// SizeSummary describes the distribution of cluster sizes
type SizeSummary struct {
	Min    int     `json:"min"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Max    int     `json:"max"`
}

// SummarizeSizes computes a SizeSummary over integer sizes
func SummarizeSizes(sizes []int) SizeSummary {
	if len(sizes) == 0 {
		return SizeSummary{}
	}

	data := mstats.LoadRawData(sizes)
	lo, _ := data.Min()
	hi, _ := data.Max()
	return SizeSummary{
		Min:    int(lo),
		Max:    int(hi),
		Mean:   Mean(data),
		Median: Median(data),
	}
}
