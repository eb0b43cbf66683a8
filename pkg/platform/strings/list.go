// Package strings holds small list helpers shared by config and query parsing.
package strings

import (
	"strings"
)

// SplitList splits v on sep, trims each element and drops empties and
// repeats. Order is preserved. An all-empty input yields nil.
//
//	SplitList(" https://a.uy, https://b.uy,,https://a.uy ", ",")
//	// []string{"https://a.uy", "https://b.uy"}
func SplitList(v, sep string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(v, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// FoldedSet reports membership case-insensitively.
type FoldedSet map[string]struct{}

// NewFoldedSet builds a FoldedSet from values, ignoring blanks.
func NewFoldedSet(values ...string) FoldedSet {
	s := make(FoldedSet, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

func (s FoldedSet) Has(v string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(v))]
	return ok
}
