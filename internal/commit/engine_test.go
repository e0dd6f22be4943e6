package commit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/dossier/internal/extractor"
	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/resolver"
	"github.com/MikeSquared-Agency/dossier/internal/store/memory"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, fieldID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fieldID)
	return f.err
}

// failingStore fails ApplyFieldUpdate from the nth call on.
type failingStore struct {
	*memory.Store
	failAt int
	calls  int
}

func (s *failingStore) ApplyFieldUpdate(ctx context.Context, u profile.FieldUpdate) (*profile.Source, error) {
	s.calls++
	if s.calls >= s.failAt {
		return nil, errors.New("connection reset")
	}
	return s.Store.ApplyFieldUpdate(ctx, u)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) (*memory.Store, *profile.Profile) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	p, err := s.GetOrCreateProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.InitializeProfile(ctx, p.ID, taxonomy.Default()))
	p, err = s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	return s, p
}

func chunk(section, subsection, field, content, summary string, conf float64) extractor.Chunk {
	return extractor.Chunk{
		Content:          content,
		TargetSection:    section,
		TargetSubsection: subsection,
		TargetField:      field,
		Summary:          summary,
		Confidence:       conf,
	}
}

func TestCommit_SavesAndDrops(t *testing.T) {
	s, p := setup(t)
	e := New(s, taxonomy.Default(), nil, discardLogger())

	res, err := e.Commit(context.Background(), p, Batch{Chunks: []extractor.Chunk{
		chunk("Organization", "fundamentals", "team-size", "We are 12 people.", "12 people", 0.9),
		chunk("finance", "fundamentals", "team_size", "x", "lost", 0.5),
		chunk("organization", "cafeteria", "team_size", "x", "", 0.5),
		chunk("organization", "fundamentals", "mascot", "x", "", 0.5),
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 3, res.Dropped)
	require.Len(t, res.Drops, 3)
	assert.Equal(t, resolver.ReasonUnknownSection, res.Drops[0].Reason)
	assert.Equal(t, "finance", res.Drops[0].Section)
	assert.Equal(t, "lost", res.Drops[0].Summary)
	assert.Equal(t, resolver.ReasonUnknownSubsection, res.Drops[1].Reason)
	assert.Equal(t, resolver.ReasonUnknownField, res.Drops[2].Reason)
	assert.Nil(t, res.SessionID)

	stored, err := s.LoadProfile(context.Background(), p.ID)
	require.NoError(t, err)
	f := stored.Field("organization", "fundamentals", "team_size")
	assert.Equal(t, "12 people", f.Summary)
	assert.Equal(t, "We are 12 people.", f.FullContext)
	assert.InDelta(t, 0.9, f.Confidence, 1e-9)
	require.Len(t, f.Sources, 1)
	assert.Equal(t, profile.SourceText, f.Sources[0].Type)
}

func TestCommit_AppendsContextAndOverwrites(t *testing.T) {
	s, p := setup(t)
	synth := &fakeSynth{}
	e := New(s, taxonomy.Default(), synth, discardLogger())

	res, err := e.Commit(context.Background(), p, Batch{Chunks: []extractor.Chunk{
		chunk("organization", "fundamentals", "stage", "We just closed a seed round.", "Seed", 0.6),
		chunk("organization", "fundamentals", "stage", "Raising a Series A next quarter.", "Seed, raising A", 0.8),
		chunk("organization", "fundamentals", "industry", "Fintech infrastructure.", "Fintech", 0.7),
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Saved)
	assert.Len(t, res.TouchedFields, 2)

	stored, err := s.LoadProfile(context.Background(), p.ID)
	require.NoError(t, err)
	stage := stored.Field("organization", "fundamentals", "stage")
	assert.Equal(t, "We just closed a seed round."+ContextDelimiter+"Raising a Series A next quarter.", stage.FullContext)
	assert.Equal(t, "Seed, raising A", stage.Summary)
	assert.InDelta(t, 0.8, stage.Confidence, 1e-9)
	assert.Len(t, stage.Sources, 2)

	// only stage has more than one source
	assert.Equal(t, []uuid.UUID{stage.ID}, synth.calls)
	assert.Equal(t, 1, res.Synthesized)
}

func TestCommit_EmptySummaryKeepsExisting(t *testing.T) {
	s, p := setup(t)
	e := New(s, taxonomy.Default(), nil, discardLogger())
	ctx := context.Background()

	_, err := e.Commit(ctx, p, Batch{Chunks: []extractor.Chunk{
		chunk("organization", "fundamentals", "stage", "Seed.", "Seed", 0.6),
		chunk("organization", "fundamentals", "stage", "More detail.", "", 0.4),
	}})
	require.NoError(t, err)

	stored, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	stage := stored.Field("organization", "fundamentals", "stage")
	assert.Equal(t, "Seed", stage.Summary)
	assert.InDelta(t, 0.4, stage.Confidence, 1e-9)
}

func TestCommit_ScopeAndMissingField(t *testing.T) {
	s, p := setup(t)
	e := New(s, taxonomy.Default(), nil, discardLogger())

	// simulate a profile materialized before the field existed
	sub := p.Section("market").Subsection("landscape")
	kept := sub.Fields[:0]
	for _, f := range sub.Fields {
		if f.Key != "trends" {
			kept = append(kept, f)
		}
	}
	sub.Fields = kept

	res, err := e.Commit(context.Background(), p, Batch{
		Scope: extractor.Scope{Section: "market"},
		Chunks: []extractor.Chunk{
			chunk("organization", "fundamentals", "stage", "Seed.", "Seed", 0.6),
			chunk("market", "landscape", "trends", "AI everywhere.", "AI", 0.6),
			chunk("market", "landscape", "competitors", "Acme and Globex.", "Acme, Globex", 0.7),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	require.Len(t, res.Drops, 2)
	assert.Equal(t, resolver.ReasonOutOfScope, res.Drops[0].Reason)
	assert.Equal(t, resolver.ReasonNotInProfile, res.Drops[1].Reason)
}

func TestCommit_StoreErrorAborts(t *testing.T) {
	mem, p := setup(t)
	s := &failingStore{Store: mem, failAt: 2}
	e := New(s, taxonomy.Default(), nil, discardLogger())

	_, err := e.Commit(context.Background(), p, Batch{
		Chunks: []extractor.Chunk{
			chunk("organization", "fundamentals", "stage", "Seed.", "Seed", 0.6),
			chunk("organization", "fundamentals", "industry", "Fintech.", "Fintech", 0.7),
		},
		Session: &Session{Title: "call", InputType: profile.SourceVoice, Transcript: "t"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organization/fundamentals/industry")

	// the first write landed and no session was archived
	stored, err := mem.LoadProfile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Seed", stored.Field("organization", "fundamentals", "stage").Summary)
	sessions, err := mem.ListCaptureSessions(context.Background(), p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCommit_SynthesisFailureIsSwallowed(t *testing.T) {
	s, p := setup(t)
	synth := &fakeSynth{err: errors.New("timeout")}
	e := New(s, taxonomy.Default(), synth, discardLogger())

	res, err := e.Commit(context.Background(), p, Batch{Chunks: []extractor.Chunk{
		chunk("strategy", "priorities", "challenges", "Hiring is slow.", "Hiring", 0.6),
		chunk("strategy", "priorities", "challenges", "Churn is up.", "Hiring, churn", 0.7),
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
	assert.Len(t, synth.calls, 1)
	assert.Equal(t, 0, res.Synthesized)
}

func TestCommit_SynthesizesOnlyMultiSourceFields(t *testing.T) {
	s, p := setup(t)
	synth := &fakeSynth{}
	e := New(s, taxonomy.Default(), synth, discardLogger())

	res, err := e.Commit(context.Background(), p, Batch{Chunks: []extractor.Chunk{
		chunk("strategy", "priorities", "challenges", "Hiring is slow.", "Hiring", 0.6),
		chunk("individual", "background", "location", "Based in Lisbon.", "Lisbon", 0.8),
		chunk("strategy", "priorities", "challenges", "Churn is up.", "Hiring, churn", 0.7),
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Saved)
	require.Len(t, res.TouchedFields, 2)

	challenges := p.Field("strategy", "priorities", "challenges")
	require.Len(t, synth.calls, 1)
	assert.Equal(t, challenges.ID, synth.calls[0])
	assert.Equal(t, 1, res.Synthesized)
}

func TestCommit_CaptureSession(t *testing.T) {
	s, p := setup(t)
	e := New(s, taxonomy.Default(), nil, discardLogger())
	ctx := context.Background()

	res, err := e.Commit(ctx, p, Batch{
		Chunks: []extractor.Chunk{
			chunk("individual", "background", "role", "I'm the CTO.", "CTO", 0.9),
			chunk("individual", "background", "role", "Also run infra.", "CTO, infra", 0.9),
			chunk("individual", "background", "location", "Based in Lisbon.", "Lisbon", 0.8),
		},
		Session: &Session{Title: "Intro call", InputType: profile.SourceVoice, Transcript: "full transcript"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.SessionID)

	sessions, err := s.ListCaptureSessions(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Intro call", sessions[0].Title)
	assert.Equal(t, 2, sessions[0].FieldsPopulated)
	assert.Equal(t, profile.SourceVoice, sessions[0].InputType)

	stored, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	for _, src := range stored.Field("individual", "background", "role").Sources {
		require.NotNil(t, src.CaptureSessionID)
		assert.Equal(t, *res.SessionID, *src.CaptureSessionID)
		assert.Equal(t, profile.SourceVoice, src.Type)
	}
}

func TestCommit_NoSessionWhenNothingSaved(t *testing.T) {
	s, p := setup(t)
	e := New(s, taxonomy.Default(), nil, discardLogger())
	ctx := context.Background()

	res, err := e.Commit(ctx, p, Batch{
		Chunks:  []extractor.Chunk{chunk("nope", "nope", "nope", "x", "", 0.5)},
		Session: &Session{Title: "empty"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Saved)
	assert.Nil(t, res.SessionID)

	sessions, err := s.ListCaptureSessions(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
