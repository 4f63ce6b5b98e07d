package textproc

import (
	"sort"
	"strings"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

// RecordTokens appends the tag tokens and then the title tokens of a record
func (n *Normalizer) RecordTokens(dst []string, rec models.PhotoRecord) []string {
	dst = n.AppendTokens(dst, rec.Tags, FieldTags)
	return n.AppendTokens(dst, rec.Title, FieldTitle)
}

// TopTokens returns the n most frequent tokens over all records, most frequent
// first, ties broken by first appearance. retain, when non-empty, is never
// returned even if it would rank.
func TopTokens(records []models.PhotoRecord, normalizer *Normalizer, n int, retain string) []string {
	if n <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	var buf []string
	for _, rec := range records {
		buf = normalizer.RecordTokens(buf[:0], rec)
		for _, t := range buf {
			if _, seen := counts[t]; !seen {
				order = append(order, t)
			}
			counts[t]++
		}
	}

	// stable sort keeps first-appearance order among equal counts
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	if retain == "" {
		return order
	}

	top := order[:0:0]
	for _, t := range order {
		if t != retain {
			top = append(top, t)
		}
	}
	return top
}

// Corpus holds the tokens of every non-noise cluster and their document
// frequencies. A cluster counts as one document.
type Corpus struct {
	ClusterTokens map[int][]string
	DocFreq       map[string]int
	Clusters      int
}

// BuildCorpus tokenizes every clustered record with normalizer. Noise records
// are skipped.
func BuildCorpus(records []models.PhotoRecord, labels models.ClusterAssignment, normalizer *Normalizer) *Corpus {
	c := &Corpus{
		ClusterTokens: make(map[int][]string),
		DocFreq:       make(map[string]int),
	}

	for i, rec := range records {
		id := labels[i]
		if id == models.NoiseClusterID {
			continue
		}
		// a cluster without usable tokens is still a document
		c.ClusterTokens[id] = normalizer.RecordTokens(c.ClusterTokens[id], rec)
	}

	c.Clusters = len(c.ClusterTokens)
	for _, tokens := range c.ClusterTokens {
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			c.DocFreq[t]++
		}
	}
	return c
}

// ExclusionSet combines the base stopwords with the globally common tokens,
// keeping retain out of it.
func ExclusionSet(base Set, common []string, retain string) Set {
	set := base.Union(NewSet(common...))
	if retain != "" {
		set = set.Without(retain)
	}
	return set
}

// NormalizeQuery folds a search term the same way tokens are folded
func NormalizeQuery(term string) string {
	return strings.TrimSpace(strings.ToLower(StripAccents(term)))
}
