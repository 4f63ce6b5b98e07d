package temporal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

// Grouping selects the calendar bucket of a histogram
type Grouping string

const (
	GroupByMonth Grouping = "month"
	GroupByYear  Grouping = "year"
)

// NoChartMessage replaces a histogram with no dated records
const NoChartMessage = "no chart available"

// ParseGrouping validates a grouping name
func ParseGrouping(s string) (Grouping, error) {
	switch g := Grouping(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupByMonth, GroupByYear:
		return g, nil
	case "":
		return GroupByMonth, nil
	default:
		return "", fmt.Errorf("unknown temporal grouping %q (want month or year)", s)
	}
}

// layout is the period key format; both sort chronologically as strings
func (g Grouping) layout() string {
	if g == GroupByYear {
		return "2006"
	}
	return "2006-01"
}

// Histogram is the dated-record count per period of one cluster
type Histogram struct {
	ClusterID int                  `json:"cluster_id"`
	Grouping  Grouping             `json:"grouping"`
	Buckets   []models.PeriodCount `json:"buckets"`
	Dropped   int                  `json:"dropped"` // records without a usable timestamp
}

// Empty reports whether no record could be dated
func (h *Histogram) Empty() bool {
	return len(h.Buckets) == 0
}

// Total returns the number of dated records
func (h *Histogram) Total() int {
	n := 0
	for _, b := range h.Buckets {
		n += b.Count
	}
	return n
}

// Distribution buckets records by period. Unparseable timestamps are counted
// in Dropped and otherwise ignored.
func Distribution(clusterID int, records []models.PhotoRecord, grouping Grouping) *Histogram {
	h := &Histogram{ClusterID: clusterID, Grouping: grouping}
	layout := grouping.layout()

	counts := make(map[string]int)
	for _, rec := range records {
		ts, ok := rec.ParseDateTaken()
		if !ok {
			h.Dropped++
			continue
		}
		counts[ts.Format(layout)]++
	}

	periods := make([]string, 0, len(counts))
	for p := range counts {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	h.Buckets = make([]models.PeriodCount, len(periods))
	for i, p := range periods {
		h.Buckets[i] = models.PeriodCount{Period: p, Count: counts[p]}
	}
	return h
}

// ByCluster builds a histogram for every non-noise cluster in labels
func ByCluster(records []models.PhotoRecord, labels models.ClusterAssignment, grouping Grouping) map[int]*Histogram {
	members := labels.Members()
	out := make(map[int]*Histogram)
	for _, id := range labels.ClusterIDs() {
		clusterRecords := make([]models.PhotoRecord, len(members[id]))
		for i, idx := range members[id] {
			clusterRecords[i] = records[idx]
		}
		out[id] = Distribution(id, clusterRecords, grouping)
	}
	return out
}
