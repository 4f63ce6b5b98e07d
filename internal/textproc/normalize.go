package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field selects how a raw string is split into candidate tokens
type Field int

const (
	// FieldTags splits on commas
	FieldTags Field = iota
	// FieldTitle splits on whitespace
	FieldTitle
)

// Normalizer turns raw tag and title strings into tokens, dropping anything in
// its exclusion set. A Normalizer is read-only after construction.
type Normalizer struct {
	exclude Set
}

// NewNormalizer creates a normalizer that drops the given tokens
func NewNormalizer(exclude Set) *Normalizer {
	if exclude == nil {
		exclude = Set{}
	}
	return &Normalizer{exclude: exclude}
}

// Excluded reports whether token is in the exclusion set
func (n *Normalizer) Excluded(token string) bool {
	return n.exclude.Contains(token)
}

// Tokens normalizes raw and returns its tokens in order of appearance.
// Duplicates are kept.
func (n *Normalizer) Tokens(raw string, field Field) []string {
	return n.AppendTokens(nil, raw, field)
}

// AppendTokens is Tokens appending to dst
func (n *Normalizer) AppendTokens(dst []string, raw string, field Field) []string {
	if raw == "" {
		return dst
	}

	folded := strings.ToLower(StripAccents(raw))

	var parts []string
	if field == FieldTags {
		parts = strings.Split(folded, ",")
	} else {
		parts = strings.Fields(folded)
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || n.exclude.Contains(part) || hasDigit(part) {
			continue
		}
		for _, sub := range strings.FieldsFunc(part, isSubTokenSeparator) {
			if n.exclude.Contains(sub) {
				continue
			}
			dst = append(dst, sub)
		}
	}
	return dst
}

// StripAccents removes combining marks after canonical decomposition, so
// "Fourvière" becomes "Fourviere".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func isSubTokenSeparator(r rune) bool {
	return r == '_' || r == '-' || unicode.IsSpace(r)
}
