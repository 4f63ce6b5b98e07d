package textproc

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jengzang/photomap-backend-go/internal/models"
)

const (
	// idfEpsilon keeps the idf denominator away from zero
	idfEpsilon = 1e-10

	// keepRatio is the share of the best score a token needs to make the label
	keepRatio = 0.7

	// maxLabelTokens caps the number of tokens joined into one label
	maxLabelTokens = 3

	// minTokenRunes: tokens this short or shorter are not scored
	minTokenRunes = 2
)

// TokenScore is a scored token of one cluster
type TokenScore struct {
	Token string  `json:"token"`
	Score float64 `json:"score"`
}

// Labeler names clusters from their most distinctive tokens (TF-IDF, one
// cluster per document).
type Labeler struct {
	corpus *Corpus
	title  cases.Caser
}

// NewLabeler creates a labeler over a built corpus
func NewLabeler(corpus *Corpus) *Labeler {
	return &Labeler{
		corpus: corpus,
		title:  cases.Title(language.Und),
	}
}

// Scores returns tf-idf scores for every token of the cluster, highest first
func (l *Labeler) Scores(clusterID int) []TokenScore {
	tokens := l.corpus.ClusterTokens[clusterID]
	if len(tokens) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}

	total := float64(len(tokens))
	docs := float64(l.corpus.Clusters)
	scores := make([]TokenScore, 0, len(counts))
	for token, count := range counts {
		tf := float64(count) / total
		idf := math.Log(docs / (float64(l.corpus.DocFreq[token]) + idfEpsilon))
		scores = append(scores, TokenScore{Token: token, Score: tf * idf})
	}
	sortScores(scores)
	return scores
}

// Label returns the display label for a cluster
func (l *Labeler) Label(clusterID int) string {
	if clusterID == models.NoiseClusterID {
		return models.NoiseLabel
	}

	raw := l.Scores(clusterID)
	if len(raw) == 0 {
		return fmt.Sprintf("Cluster %d", clusterID)
	}

	eligible := make([]TokenScore, 0, len(raw))
	for _, s := range raw {
		if scorable(s.Token) {
			eligible = append(eligible, s)
		}
	}

	var kept []TokenScore
	if len(eligible) > 0 {
		best := eligible[0].Score
		for _, s := range eligible {
			if s.Score >= keepRatio*best {
				kept = append(kept, s)
			}
		}
	}
	if len(kept) > maxLabelTokens {
		kept = kept[:maxLabelTokens]
	}

	if len(kept) == 0 {
		// fall back to the single best token
		if len(eligible) > 0 {
			kept = eligible[:1]
		} else {
			kept = raw[:1]
		}
	}

	words := make([]string, len(kept))
	for i, s := range kept {
		words[i] = l.title.String(s.Token)
	}
	return strings.Join(words, ", ")
}

// LabelAll labels every cluster id present in labels, noise included
func (l *Labeler) LabelAll(labels models.ClusterAssignment) map[int]string {
	out := make(map[int]string)
	for _, id := range labels.ClusterIDs() {
		out[id] = l.Label(id)
	}
	if labels.NoiseCount() > 0 {
		out[models.NoiseClusterID] = models.NoiseLabel
	}
	return out
}

func scorable(token string) bool {
	if utf8.RuneCountInString(token) <= minTokenRunes {
		return false
	}
	return strings.IndexFunc(token, unicode.IsSpace) < 0
}

// highest score first, then lexical so results do not depend on map order
func sortScores(scores []TokenScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Token < scores[j].Token
	})
}
