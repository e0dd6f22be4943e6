// Package score computes deterministic completeness scores for a profile.
//
// A field earns 40 points for a summary, 30 for captured context and 10 for
// corroboration by more than one source. The total is scaled by
// (0.5 + 0.5 * confidence), rounded and capped at 100. Subsections, sections
// and the whole profile are unweighted means of their children.
package score

import (
	"math"
	"sort"

	"github.com/MikeSquared-Agency/dossier/internal/profile"
)

const (
	summaryPoints       = 40
	contextPoints       = 30
	corroborationPoints = 10
	maxScore            = 100

	// WeakThreshold separates weak fields from complete ones.
	WeakThreshold = 50
)

type FieldScore struct {
	Section    string  `json:"section"`
	Subsection string  `json:"subsection"`
	Field      string  `json:"field"`
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
	Sources    int     `json:"sources"`
}

type SubsectionScore struct {
	Key    string       `json:"key"`
	Name   string       `json:"name"`
	Score  int          `json:"score"`
	Fields []FieldScore `json:"fields"`
}

type SectionScore struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Score       int               `json:"score"`
	Completion  int               `json:"completion"`
	Subsections []SubsectionScore `json:"subsections"`
}

type Snapshot struct {
	Overall    int            `json:"overall"`
	Completion int            `json:"completion"`
	Sections   []SectionScore `json:"sections"`
}

// Field scores a single field instance.
func Field(f *profile.Field) int {
	if f == nil || f.Empty() {
		return 0
	}
	base := 0
	if f.Summary != "" {
		base += summaryPoints
	}
	if f.FullContext != "" {
		base += contextPoints
	}
	if len(f.Sources) > 1 {
		base += corroborationPoints
	}
	s := int(math.Round(float64(base) * (0.5 + 0.5*clamp(f.Confidence))))
	if s > maxScore {
		return maxScore
	}
	return s
}

// Compute builds the full snapshot. It holds no state between calls.
func Compute(p *profile.Profile) Snapshot {
	snap := Snapshot{Sections: make([]SectionScore, 0, len(p.Sections))}
	var sectionScores []float64
	var total, complete int

	for _, sec := range p.Sections {
		ss := SectionScore{Key: sec.Key, Name: sec.Name, Subsections: make([]SubsectionScore, 0, len(sec.Subsections))}
		var subScores []float64
		var secTotal, secComplete int

		for _, sub := range sec.Subsections {
			sbs := SubsectionScore{Key: sub.Key, Name: sub.Name, Fields: make([]FieldScore, 0, len(sub.Fields))}
			var fieldScores []float64
			for _, f := range sub.Fields {
				fs := fieldScore(sec.Key, sub.Key, f)
				sbs.Fields = append(sbs.Fields, fs)
				fieldScores = append(fieldScores, float64(fs.Score))
				secTotal++
				if fs.Score >= WeakThreshold {
					secComplete++
				}
			}
			subMean := mean(fieldScores)
			sbs.Score = round(subMean)
			subScores = append(subScores, subMean)
			ss.Subsections = append(ss.Subsections, sbs)
		}

		secMean := mean(subScores)
		ss.Score = round(secMean)
		ss.Completion = percent(secComplete, secTotal)
		sectionScores = append(sectionScores, secMean)
		snap.Sections = append(snap.Sections, ss)
		total += secTotal
		complete += secComplete
	}

	snap.Overall = round(mean(sectionScores))
	snap.Completion = percent(complete, total)
	return snap
}

// WeakFields lists fields scoring below WeakThreshold, weakest first.
func WeakFields(p *profile.Profile) []FieldScore {
	out := []FieldScore{}
	for _, sec := range p.Sections {
		for _, sub := range sec.Subsections {
			for _, f := range sub.Fields {
				if fs := fieldScore(sec.Key, sub.Key, f); fs.Score < WeakThreshold {
					out = append(out, fs)
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		if out[i].Subsection != out[j].Subsection {
			return out[i].Subsection < out[j].Subsection
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Delta is the per-level change between two snapshots, keyed by section.
type Delta struct {
	Overall  int            `json:"overall"`
	Sections map[string]int `json:"sections"`
}

func Diff(prev, cur Snapshot) Delta {
	d := Delta{Overall: cur.Overall - prev.Overall, Sections: map[string]int{}}
	before := make(map[string]int, len(prev.Sections))
	for _, s := range prev.Sections {
		before[s.Key] = s.Score
	}
	for _, s := range cur.Sections {
		if diff := s.Score - before[s.Key]; diff != 0 {
			d.Sections[s.Key] = diff
		}
	}
	return d
}

func fieldScore(section, subsection string, f *profile.Field) FieldScore {
	return FieldScore{
		Section:    section,
		Subsection: subsection,
		Field:      f.Key,
		Name:       f.Name,
		Score:      Field(f),
		Confidence: f.Confidence,
		Sources:    len(f.Sources),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return round(100 * float64(n) / float64(total))
}

func round(x float64) int {
	return int(math.Round(x))
}

func clamp(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
