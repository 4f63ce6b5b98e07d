package viz

import (
	"math/rand"
	"sort"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

// StratifiedSample picks up to budget record indexes so that every cluster,
// noise included, keeps floor(budget * share) of its members. Rounding losses
// are topped up at random from the records not yet picked, so exactly budget
// indexes come back whenever there are that many records. A budget <= 0 or
// one covering every record returns all indexes. Output is sorted.
func StratifiedSample(labels models.ClusterAssignment, budget int, seed int64) []int {
	n := len(labels)
	if budget <= 0 || budget >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	rng := rand.New(rand.NewSource(seed))
	members := labels.Members()

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	picked := make([]bool, n)
	sample := make([]int, 0, budget)
	for _, id := range ids {
		group := members[id]
		quota := budget * len(group) / n
		for _, k := range rng.Perm(len(group))[:quota] {
			picked[group[k]] = true
			sample = append(sample, group[k])
		}
	}

	if short := budget - len(sample); short > 0 {
		rest := make([]int, 0, n-len(sample))
		for i := 0; i < n; i++ {
			if !picked[i] {
				rest = append(rest, i)
			}
		}
		for _, k := range rng.Perm(len(rest))[:short] {
			sample = append(sample, rest[k])
		}
	}

	sort.Ints(sample)
	return sample
}
