package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

func initialized(t *testing.T, s *Store, user string) *profile.Profile {
	t.Helper()
	ctx := context.Background()
	p, err := s.GetOrCreateProfile(ctx, user)
	require.NoError(t, err)
	require.NoError(t, s.InitializeProfile(ctx, p.ID, taxonomy.Default()))
	p, err = s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	return p
}

func TestGetOrCreateProfile_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.GetOrCreateProfile(ctx, "user-1")
	require.NoError(t, err)
	b, err := s.GetOrCreateProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.False(t, a.Initialized())

	_, err = s.GetProfileByUser(ctx, "user-2")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestInitializeProfile_MaterializesTaxonomy(t *testing.T) {
	s := New()
	p := initialized(t, s, "user-1")

	assert.True(t, p.Initialized())
	assert.Equal(t, taxonomy.Version, p.TaxonomyVersion)
	assert.Equal(t, taxonomy.Default().SectionKeys(), p.SectionKeys())

	n := 0
	for _, sec := range p.Sections {
		for _, sub := range sec.Subsections {
			n += len(sub.Fields)
		}
	}
	assert.Equal(t, taxonomy.Default().FieldCount(), n)
}

func TestInitializeProfile_SecondCallIsNoop(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")
	fieldID := p.Field("organization", "fundamentals", "stage").ID

	require.NoError(t, s.InitializeProfile(ctx, p.ID, taxonomy.Default()))
	again, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, fieldID, again.Field("organization", "fundamentals", "stage").ID)
	assert.Equal(t, p.InitializedAt, again.InitializedAt)
}

func TestInitializeProfile_NewVersionIsAdditive(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")
	stage := p.Field("organization", "fundamentals", "stage")

	_, err := s.ApplyFieldUpdate(ctx, profile.FieldUpdate{FieldID: stage.ID, Summary: "Seed", FullContext: "Seed stage", Confidence: 0.9})
	require.NoError(t, err)

	next := &taxonomy.Taxonomy{Version: "2026.1", Sections: append([]taxonomy.Section{}, taxonomy.Default().Sections...)}
	next.Sections = append(next.Sections, taxonomy.Section{
		Key: "community", Name: "Community", Order: 4,
		Subsections: []taxonomy.Subsection{{Key: "events", Name: "Events", Fields: []taxonomy.Field{{Key: "meetups", Name: "Meetups"}}}},
	})
	require.NoError(t, s.InitializeProfile(ctx, p.ID, next))

	got, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026.1", got.TaxonomyVersion)
	assert.NotNil(t, got.Field("community", "events", "meetups"))
	kept := got.Field("organization", "fundamentals", "stage")
	assert.Equal(t, stage.ID, kept.ID)
	assert.Equal(t, "Seed", kept.Summary)
	assert.Len(t, got.Sections, 5)
}

func TestApplyFieldUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")
	f := p.Field("organization", "fundamentals", "team_size")

	src, err := s.ApplyFieldUpdate(ctx, profile.FieldUpdate{
		FieldID: f.ID, Summary: "12 people", FullContext: "We are 12.", Confidence: 0.8,
		Source: profile.Source{Content: "We are 12.", Type: profile.SourceVoice, Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, src.ID)
	assert.Equal(t, f.ID, src.FieldID)
	assert.False(t, src.CreatedAt.IsZero())

	got, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	gf := got.Field("organization", "fundamentals", "team_size")
	assert.Equal(t, "12 people", gf.Summary)
	assert.Equal(t, 0.8, gf.Confidence)
	require.Len(t, gf.Sources, 1)
	assert.Equal(t, profile.SourceVoice, gf.Sources[0].Type)

	_, err = s.ApplyFieldUpdate(ctx, profile.FieldUpdate{FieldID: uuid.New()})
	assert.ErrorIs(t, err, profile.ErrFieldNotFound)
}

func TestLoadProfile_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")

	p.Field("organization", "fundamentals", "stage").Summary = "mutated"

	fresh, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Field("organization", "fundamentals", "stage").Summary)
}

func TestCaptureSessionLinksSources(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")
	f := p.Field("market", "landscape", "competitors")

	src, err := s.ApplyFieldUpdate(ctx, profile.FieldUpdate{FieldID: f.ID, Summary: "x", FullContext: "x", Source: profile.Source{Content: "x"}})
	require.NoError(t, err)

	cs, err := s.CreateCaptureSession(ctx, profile.CaptureSession{ProfileID: p.ID, Title: "Intro call", FieldsPopulated: 1}, []uuid.UUID{src.ID})
	require.NoError(t, err)

	got, err := s.LoadProfile(ctx, p.ID)
	require.NoError(t, err)
	linked := got.Field("market", "landscape", "competitors").Sources[0]
	require.NotNil(t, linked.CaptureSessionID)
	assert.Equal(t, cs.ID, *linked.CaptureSessionID)

	list, err := s.ListCaptureSessions(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Intro call", list[0].Title)
}

func TestCaptureSessionRejectsForeignSources(t *testing.T) {
	s := New()
	ctx := context.Background()
	mine := initialized(t, s, "user-1")
	theirs := initialized(t, s, "user-2")

	f := theirs.Field("market", "landscape", "trends")
	src, err := s.ApplyFieldUpdate(ctx, profile.FieldUpdate{FieldID: f.ID, Summary: "x", FullContext: "x"})
	require.NoError(t, err)

	_, err = s.CreateCaptureSession(ctx, profile.CaptureSession{ProfileID: mine.ID}, []uuid.UUID{src.ID})
	assert.Error(t, err)

	list, err := s.ListCaptureSessions(ctx, mine.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListCaptureSessions_NewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")

	for _, title := range []string{"one", "two", "three"} {
		_, err := s.CreateCaptureSession(ctx, profile.CaptureSession{ProfileID: p.ID, Title: title}, nil)
		require.NoError(t, err)
	}

	list, err := s.ListCaptureSessions(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "three", list[0].Title)
	assert.Equal(t, "two", list[1].Title)
}

func TestDeleteProfile_Cascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := initialized(t, s, "user-1")
	f := p.Field("strategy", "needs", "hiring_needs")
	_, err := s.ApplyFieldUpdate(ctx, profile.FieldUpdate{FieldID: f.ID, Summary: "x", FullContext: "x"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProfile(ctx, p.ID))

	_, err = s.LoadProfile(ctx, p.ID)
	assert.ErrorIs(t, err, profile.ErrNotFound)
	_, err = s.GetProfileByUser(ctx, "user-1")
	assert.ErrorIs(t, err, profile.ErrNotFound)
	assert.Empty(t, s.fields)
	assert.Empty(t, s.sources)

	assert.ErrorIs(t, s.DeleteProfile(ctx, p.ID), profile.ErrNotFound)
}
