package extractor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

type ChangeKind string

const (
	ChangeAdded              ChangeKind = "added"
	ChangeImproved           ChangeKind = "improved"
	ChangeConfidenceAdjusted ChangeKind = "confidence_adjusted"
	ChangeConsolidated       ChangeKind = "consolidated"
)

const (
	improvedGrowth  = 1.2
	confidenceDelta = 0.1
)

// Change is one entry in the informational log of what gap analysis did.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	Section    string     `json:"section,omitempty"`
	Subsection string     `json:"subsection,omitempty"`
	Field      string     `json:"field,omitempty"`
	Count      int        `json:"count,omitempty"`
	Detail     string     `json:"detail"`
}

type chunkKey struct {
	section, subsection, field string
}

type aggregate struct {
	length     int
	confidence float64
}

func keyOf(c Chunk) chunkKey {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return chunkKey{norm(c.TargetSection), norm(c.TargetSubsection), norm(c.TargetField)}
}

// aggregateChunks groups chunks by target. Several chunks for one target sum
// their content length and keep the highest confidence.
func aggregateChunks(chunks []Chunk) map[chunkKey]aggregate {
	out := make(map[chunkKey]aggregate, len(chunks))
	for _, c := range chunks {
		k := keyOf(c)
		a := out[k]
		a.length += utf8.RuneCountInString(c.Content)
		if c.Confidence > a.confidence {
			a.confidence = c.Confidence
		}
		out[k] = a
	}
	return out
}

// SummarizeChanges compares the first pass to the final set.
func SummarizeChanges(first, final []Chunk) []Change {
	before := aggregateChunks(first)
	after := aggregateChunks(final)

	keys := make([]chunkKey, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.section != b.section {
			return a.section < b.section
		}
		if a.subsection != b.subsection {
			return a.subsection < b.subsection
		}
		return a.field < b.field
	})

	var changes []Change
	added := 0
	for _, k := range keys {
		cur := after[k]
		prev, existed := before[k]
		if !existed {
			added++
			changes = append(changes, change(ChangeAdded, k, fmt.Sprintf("new content for %s", k.field)))
			continue
		}
		if float64(cur.length) > float64(prev.length)*improvedGrowth {
			changes = append(changes, change(ChangeImproved, k,
				fmt.Sprintf("content grew from %d to %d characters", prev.length, cur.length)))
		}
		if math.Abs(cur.confidence-prev.confidence) > confidenceDelta {
			changes = append(changes, change(ChangeConfidenceAdjusted, k,
				fmt.Sprintf("confidence %.2f -> %.2f", prev.confidence, cur.confidence)))
		}
	}

	if merged := len(first) + added - len(final); merged > 0 {
		changes = append(changes, Change{
			Kind:   ChangeConsolidated,
			Count:  merged,
			Detail: fmt.Sprintf("%d chunks merged or removed", merged),
		})
	}
	return changes
}

func change(kind ChangeKind, k chunkKey, detail string) Change {
	return Change{Kind: kind, Section: k.section, Subsection: k.subsection, Field: k.field, Detail: detail}
}
