package extractor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/dossier/internal/resolver"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

// MaxSummaryLen is the longest summary, in characters, a chunk may carry.
const MaxSummaryLen = 150

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrInvalidScope    = errors.New("invalid scope")
)

// Chunk is one unit of extracted knowledge aimed at a single field.
type Chunk struct {
	Content          string   `json:"content"`
	TargetSection    string   `json:"target_section"`
	TargetSubsection string   `json:"target_subsection"`
	TargetField      string   `json:"target_field"`
	Summary          string   `json:"summary"`
	Confidence       float64  `json:"confidence"`
	Insights         []string `json:"insights,omitempty"`
}

// Validate checks the chunk's shape. Target labels are not checked here: a
// missing label is one that does not resolve, and the chunk is dropped later.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("content is empty")
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c.Confidence)
	}
	if n := utf8.RuneCountInString(c.Summary); n > MaxSummaryLen {
		return fmt.Errorf("summary is %d characters, max %d", n, MaxSummaryLen)
	}
	return nil
}

// Output is the structured object the oracle must return on both passes.
type Output struct {
	Chunks    []Chunk  `json:"chunks"`
	Themes    []string `json:"themes"`
	FollowUps []string `json:"follow_ups"`
}

func (o *Output) Validate() error {
	for i, c := range o.Chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

// Scope optionally restricts extraction to one section or subsection.
type Scope struct {
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`
}

func (s Scope) IsZero() bool {
	return s.Section == "" && s.Subsection == ""
}

// Canonical resolves the scope labels against the taxonomy.
func (s Scope) Canonical(tx *taxonomy.Taxonomy) (Scope, error) {
	if s.IsZero() {
		return s, nil
	}
	if s.Section == "" {
		return Scope{}, fmt.Errorf("%w: subsection %q requires a section", ErrInvalidScope, s.Subsection)
	}
	sec, ok := resolver.Resolve(s.Section, tx.SectionKeys())
	if !ok {
		return Scope{}, fmt.Errorf("%w: unknown section %q", ErrInvalidScope, s.Section)
	}
	out := Scope{Section: sec}
	if s.Subsection != "" {
		sub, ok := resolver.Resolve(s.Subsection, tx.SubsectionKeys(sec))
		if !ok {
			return Scope{}, fmt.Errorf("%w: unknown subsection %q in %s", ErrInvalidScope, s.Subsection, sec)
		}
		out.Subsection = sub
	}
	return out, nil
}

// Contains reports whether a resolved path lies inside the scope.
func (s Scope) Contains(p resolver.Path) bool {
	if s.Section != "" && p.Section != s.Section {
		return false
	}
	if s.Subsection != "" && p.Subsection != s.Subsection {
		return false
	}
	return true
}

type Input struct {
	Transcript string
	SourceType string
	Scope      Scope
}

type Metadata struct {
	FirstPassCount     int      `json:"first_pass_count"`
	FinalCount         int      `json:"final_count"`
	GapAnalysisApplied bool     `json:"gap_analysis_applied"`
	Changes            []Change `json:"changes"`
	Model              string   `json:"model,omitempty"`
	TaxonomyVersion    string   `json:"taxonomy_version"`
	DurationMS         int64    `json:"duration_ms"`
}

type Result struct {
	Chunks    []Chunk  `json:"chunks"`
	Themes    []string `json:"themes"`
	FollowUps []string `json:"follow_ups"`
	Scope     Scope    `json:"scope"`
	Metadata  Metadata `json:"metadata"`
}
