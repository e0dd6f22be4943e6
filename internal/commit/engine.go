// Package commit merges extracted chunks into a stored profile.
package commit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/dossier/internal/extractor"
	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/resolver"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

// ContextDelimiter separates entries appended to a field's full context.
const ContextDelimiter = "\n\n---\n\n"

const defaultSynthesisConcurrency = 4

// Synthesizer rewrites a field from all of its sources. It is called after a
// commit for every touched field that has more than one source.
type Synthesizer interface {
	Synthesize(ctx context.Context, fieldID uuid.UUID) error
}

// Session describes the input being committed. When present and at least
// one chunk is saved, a capture session is archived with the new sources.
type Session struct {
	Title      string             `json:"title"`
	InputType  profile.SourceType `json:"input_type"`
	Transcript string             `json:"transcript"`
}

// Batch is one commit request. A non-zero Scope drops chunks that resolve
// outside it.
type Batch struct {
	Chunks  []extractor.Chunk
	Scope   extractor.Scope
	Session *Session
}

type Result struct {
	Saved         int             `json:"saved"`
	Dropped       int             `json:"dropped"`
	Drops         []resolver.Drop `json:"drops"`
	TouchedFields []uuid.UUID     `json:"touched_fields"`
	Synthesized   int             `json:"synthesized"`
	SessionID     *uuid.UUID      `json:"session_id,omitempty"`
}

type Engine struct {
	store       profile.Store
	tax         *taxonomy.Taxonomy
	synth       Synthesizer
	concurrency int
	logger      *slog.Logger
}

func New(store profile.Store, tx *taxonomy.Taxonomy, synth Synthesizer, logger *slog.Logger) *Engine {
	return &Engine{store: store, tax: tx, synth: synth, concurrency: defaultSynthesisConcurrency, logger: logger}
}

// Commit applies chunks in order. Chunks that do not resolve are dropped and
// the loop continues. A storage error aborts the commit; writes made by
// earlier chunks remain. The in-memory profile is updated as chunks land so
// later chunks for the same field append to the latest context.
func (e *Engine) Commit(ctx context.Context, p *profile.Profile, b Batch) (*Result, error) {
	res := &Result{Drops: []resolver.Drop{}, TouchedFields: []uuid.UUID{}}
	sess := b.Session
	sourceType := profile.SourceText
	if sess != nil && sess.InputType != "" {
		sourceType = sess.InputType
	}

	touched := map[uuid.UUID]*profile.Field{}
	var sourceIDs []uuid.UUID

	for i, c := range b.Chunks {
		path, reason, ok := resolver.ResolvePath(e.tax, c.TargetSection, c.TargetSubsection, c.TargetField)
		switch {
		case !ok:
		case !b.Scope.Contains(path):
			reason, ok = resolver.ReasonOutOfScope, false
		case p.Field(path.Section, path.Subsection, path.Field) == nil:
			reason, ok = resolver.ReasonNotInProfile, false
		}
		if !ok {
			res.Dropped++
			res.Drops = append(res.Drops, resolver.Drop{
				Reason:     reason,
				Section:    c.TargetSection,
				Subsection: c.TargetSubsection,
				Field:      c.TargetField,
				Summary:    c.Summary,
			})
			e.logger.Info("chunk dropped",
				"profile_id", p.ID,
				"index", i,
				"reason", reason,
				"section", c.TargetSection,
				"subsection", c.TargetSubsection,
				"field", c.TargetField,
			)
			continue
		}

		f := p.Field(path.Section, path.Subsection, path.Field)
		update := merge(f, c)
		update.Source = profile.Source{Content: c.Content, Type: sourceType, Confidence: c.Confidence}

		src, err := e.store.ApplyFieldUpdate(ctx, update)
		if err != nil {
			return nil, fmt.Errorf("apply chunk %d to %s: %w", i, path, err)
		}

		f.Summary = update.Summary
		f.FullContext = update.FullContext
		f.Confidence = update.Confidence
		f.Sources = append(f.Sources, src)

		if _, seen := touched[f.ID]; !seen {
			res.TouchedFields = append(res.TouchedFields, f.ID)
		}
		touched[f.ID] = f
		sourceIDs = append(sourceIDs, src.ID)
		res.Saved++
	}

	res.Synthesized = e.synthesize(ctx, p.ID, res.TouchedFields, touched)

	if sess != nil && res.Saved > 0 {
		title := sess.Title
		if title == "" {
			title = "Capture " + time.Now().UTC().Format("2006-01-02 15:04")
		}
		cs, err := e.store.CreateCaptureSession(ctx, profile.CaptureSession{
			ProfileID:       p.ID,
			Title:           title,
			InputType:       sourceType,
			Transcript:      sess.Transcript,
			FieldsPopulated: len(res.TouchedFields),
		}, sourceIDs)
		if err != nil {
			return nil, fmt.Errorf("create capture session: %w", err)
		}
		res.SessionID = &cs.ID
	}

	e.logger.Info("commit complete",
		"profile_id", p.ID,
		"saved", res.Saved,
		"dropped", res.Dropped,
		"fields", len(res.TouchedFields),
		"synthesized", res.Synthesized,
	)
	return res, nil
}

// merge appends the chunk to the field's running context and takes its
// summary and confidence. An empty summary keeps the current one, but the
// confidence is overwritten either way, so a summary-less chunk can lower the
// confidence attached to a summary it did not write.
func merge(f *profile.Field, c extractor.Chunk) profile.FieldUpdate {
	fullContext := c.Content
	if f.FullContext != "" {
		fullContext = f.FullContext + ContextDelimiter + c.Content
	}
	summary := c.Summary
	if summary == "" {
		summary = f.Summary
	}
	return profile.FieldUpdate{
		FieldID:     f.ID,
		Summary:     summary,
		FullContext: fullContext,
		Confidence:  c.Confidence,
	}
}

// synthesize fans out over multi-source fields. Failures are logged and
// never fail the commit.
func (e *Engine) synthesize(ctx context.Context, profileID uuid.UUID, order []uuid.UUID, fields map[uuid.UUID]*profile.Field) int {
	if e.synth == nil {
		return 0
	}
	var ok atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, id := range order {
		if len(fields[id].Sources) <= 1 {
			continue
		}
		id := id
		g.Go(func() error {
			if err := e.synth.Synthesize(gctx, id); err != nil {
				e.logger.Warn("field synthesis failed",
					"profile_id", profileID,
					"field_id", id,
					"error", err,
				)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load())
}
