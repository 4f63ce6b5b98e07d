package textproc

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stopwords.yaml
var defaultStopwordsYAML []byte

// Set is a set of normalized tokens
type Set map[string]struct{}

// NewSet builds a set from tokens
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Contains checks membership
func (s Set) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Union returns a new set holding the members of s and other
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Without returns a copy of s with the given tokens removed
func (s Set) Without(tokens ...string) Set {
	out := make(Set, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	for _, t := range tokens {
		delete(out, t)
	}
	return out
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Stoplist represents the stopword list file
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// DefaultStopwords returns the built-in stopword set
func DefaultStopwords() (Set, error) {
	return parseStoplist(defaultStopwordsYAML)
}

// LoadStopwords merges the built-in list with the terms from a YAML file.
// An empty path yields the built-in list alone.
func LoadStopwords(path string) (Set, error) {
	base, err := DefaultStopwords()
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in stopwords: %w", err)
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stopword file: %w", err)
	}
	extra, err := parseStoplist(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stopword file %s: %w", path, err)
	}
	return base.Union(extra), nil
}

// terms are folded the same way tokens are so lookups match
func parseStoplist(data []byte) (Set, error) {
	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}
	set := make(Set, len(sl.Terms))
	for _, term := range sl.Terms {
		term = strings.TrimSpace(strings.ToLower(StripAccents(term)))
		if term != "" {
			set[term] = struct{}{}
		}
	}
	return set, nil
}
