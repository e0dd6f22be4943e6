// Package resolver maps loosely labeled model output onto canonical taxonomy keys.
//
// A candidate label is tried against the valid keys with three rules, first
// match wins:
//
//   - exact: byte-for-byte membership
//   - normalized: NFKC, trimmed, case-folded, hyphens as underscores
//   - substring: after normalization, either string contains the other
//
// Substring matches are ambiguous by nature, so ties are broken by the shortest
// key and then lexicographically. The result never depends on the order of
// the key slice. There is no fuzzy or edit-distance matching.
package resolver

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Rule string

const (
	RuleExact      Rule = "exact"
	RuleNormalized Rule = "normalized"
	RuleSubstring  Rule = "substring"
)

type Match struct {
	Key  string `json:"key"`
	Rule Rule   `json:"rule"`
}

var folder = cases.Fold()

// Normalize returns the comparison form of a label: NFKC, trimmed,
// case-folded, with hyphens as underscores. Inner whitespace is kept, so
// "Career History" does not normalize to career_history.
func Normalize(s string) string {
	s = strings.TrimSpace(norm.NFKC.String(s))
	return strings.ReplaceAll(folder.String(s), "-", "_")
}

// Find resolves candidate against keys and reports which rule matched.
func Find(candidate string, keys []string) (Match, bool) {
	for _, k := range keys {
		if k == candidate && k != "" {
			return Match{Key: k, Rule: RuleExact}, true
		}
	}

	nc := Normalize(candidate)
	if nc == "" {
		return Match{}, false
	}

	normalized := make([]string, len(keys))
	for i, k := range keys {
		normalized[i] = Normalize(k)
	}

	var best string
	found := false
	for i, nk := range normalized {
		if nk != "" && nk == nc {
			if !found || better(keys[i], best) {
				best, found = keys[i], true
			}
		}
	}
	if found {
		return Match{Key: best, Rule: RuleNormalized}, true
	}

	for i, nk := range normalized {
		if nk == "" {
			continue
		}
		if strings.Contains(nc, nk) || strings.Contains(nk, nc) {
			if !found || better(keys[i], best) {
				best, found = keys[i], true
			}
		}
	}
	if found {
		return Match{Key: best, Rule: RuleSubstring}, true
	}
	return Match{}, false
}

// Resolve is Find without the rule.
func Resolve(candidate string, keys []string) (string, bool) {
	m, ok := Find(candidate, keys)
	return m.Key, ok
}

func better(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
