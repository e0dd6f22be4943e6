package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dossier/internal/oracle"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

// Extractor runs the two-pass extraction: a first pass, then a gap-analysis
// pass that returns the complete corrected set. A failed second pass falls
// back to the first-pass result.
type Extractor struct {
	oracle      oracle.Oracle
	tax         *taxonomy.Taxonomy
	model       string
	gapAnalysis bool
	logger      *slog.Logger
}

func New(o oracle.Oracle, tx *taxonomy.Taxonomy, logger *slog.Logger) *Extractor {
	return &Extractor{oracle: o, tax: tx, gapAnalysis: true, logger: logger}
}

func (e *Extractor) WithGapAnalysis(enabled bool) *Extractor {
	e.gapAnalysis = enabled
	return e
}

// WithModel sets the model name reported in result metadata.
func (e *Extractor) WithModel(model string) *Extractor {
	e.model = model
	return e
}

func (e *Extractor) Taxonomy() *taxonomy.Taxonomy {
	return e.tax
}

func (e *Extractor) Model() string     { return e.model }
func (e *Extractor) GapAnalysis() bool { return e.gapAnalysis }

// Extract processes a transcript and returns the final chunk set.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, ErrEmptyTranscript
	}
	scope, err := in.Scope.Canonical(e.tax)
	if err != nil {
		return nil, err
	}
	scoped, err := e.tax.Scoped(scope.Section, scope.Subsection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	sourceType := in.SourceType
	if sourceType == "" {
		sourceType = "text"
	}
	tax := renderTaxonomy(scoped)
	start := time.Now()

	e.logger.Info("extracting from transcript",
		"transcript_len", len(in.Transcript),
		"source_type", sourceType,
		"scope_section", scope.Section,
		"scope_subsection", scope.Subsection,
	)

	var first Output
	err = e.oracle.Generate(ctx, oracle.Request{
		System: systemPrompt,
		User:   fmt.Sprintf(extractionUserPrompt, sourceType, tax, in.Transcript),
		Schema: outputSchema,
	}, &first)
	if err != nil {
		return nil, fmt.Errorf("first pass: %w", err)
	}

	final := first
	applied := false
	if e.gapAnalysis {
		second, err := e.gapPass(ctx, sourceType, tax, in.Transcript, &first)
		if err != nil {
			e.logger.Warn("gap analysis failed, using first pass", "error", err)
		} else {
			final = *second
			applied = true
		}
	}

	var changes []Change
	if applied {
		changes = SummarizeChanges(first.Chunks, final.Chunks)
	}

	res := &Result{
		Chunks:    nonNil(final.Chunks),
		Themes:    final.Themes,
		FollowUps: final.FollowUps,
		Scope:     scope,
		Metadata: Metadata{
			FirstPassCount:     len(first.Chunks),
			FinalCount:         len(final.Chunks),
			GapAnalysisApplied: applied,
			Changes:            changes,
			Model:              e.model,
			TaxonomyVersion:    e.tax.Version,
			DurationMS:         time.Since(start).Milliseconds(),
		},
	}

	e.logger.Info("extraction complete",
		"first_pass", res.Metadata.FirstPassCount,
		"final", res.Metadata.FinalCount,
		"gap_analysis", applied,
		"changes", len(changes),
	)
	return res, nil
}

func (e *Extractor) gapPass(ctx context.Context, sourceType, tax, transcript string, first *Output) (*Output, error) {
	prior, err := oracle.Compact(first)
	if err != nil {
		return nil, err
	}
	var second Output
	err = e.oracle.Generate(ctx, oracle.Request{
		System: gapAnalysisSystemPrompt,
		User:   fmt.Sprintf(gapAnalysisUserPrompt, sourceType, tax, transcript, prior),
		Schema: outputSchema,
	}, &second)
	if err != nil {
		return nil, fmt.Errorf("gap analysis: %w", err)
	}
	return &second, nil
}

func nonNil(chunks []Chunk) []Chunk {
	if chunks == nil {
		return []Chunk{}
	}
	return chunks
}
