//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newInitializedProfile(t *testing.T, s *Store) *profile.Profile {
	t.Helper()
	ctx := context.Background()
	userID := "integration-" + uuid.New().String()[:8]

	p, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile failed: %v", err)
	}
	t.Cleanup(func() { s.DeleteProfile(context.Background(), p.ID) })

	if err := s.InitializeProfile(ctx, p.ID, taxonomy.Default()); err != nil {
		t.Fatalf("InitializeProfile failed: %v", err)
	}
	p, err = s.LoadProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	return p
}

func TestIntegration_InitializeIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := newInitializedProfile(t, s)

	if !p.Initialized() || p.TaxonomyVersion != taxonomy.Version {
		t.Fatalf("expected initialized profile at %s, got %+v", taxonomy.Version, p)
	}
	stageID := p.Field("organization", "fundamentals", "stage").ID

	if err := s.InitializeProfile(ctx, p.ID, taxonomy.Default()); err != nil {
		t.Fatalf("second InitializeProfile failed: %v", err)
	}
	again, err := s.LoadProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}

	count := 0
	for _, sec := range again.Sections {
		for _, sub := range sec.Subsections {
			count += len(sub.Fields)
		}
	}
	if count != taxonomy.Default().FieldCount() {
		t.Errorf("expected %d fields, got %d", taxonomy.Default().FieldCount(), count)
	}
	if again.Field("organization", "fundamentals", "stage").ID != stageID {
		t.Error("field ids must survive re-initialization")
	}
}

func TestIntegration_FieldUpdateAndSession(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := newInitializedProfile(t, s)
	f := p.Field("organization", "fundamentals", "team_size")

	src, err := s.ApplyFieldUpdate(ctx, profile.FieldUpdate{
		FieldID: f.ID, Summary: "12 people", FullContext: "We are a 12-person team.", Confidence: 0.9,
		Source: profile.Source{Content: "We are a 12-person team.", Type: profile.SourceVoice, Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("ApplyFieldUpdate failed: %v", err)
	}

	cs, err := s.CreateCaptureSession(ctx, profile.CaptureSession{
		ProfileID: p.ID, Title: "Intro", InputType: profile.SourceVoice, FieldsPopulated: 1,
	}, []uuid.UUID{src.ID})
	if err != nil {
		t.Fatalf("CreateCaptureSession failed: %v", err)
	}

	got, err := s.LoadProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	gf := got.Field("organization", "fundamentals", "team_size")
	if gf.Summary != "12 people" || gf.Confidence != 0.9 {
		t.Errorf("unexpected field state: %+v", gf)
	}
	if len(gf.Sources) != 1 || gf.Sources[0].CaptureSessionID == nil || *gf.Sources[0].CaptureSessionID != cs.ID {
		t.Errorf("expected source linked to session %s, got %+v", cs.ID, gf.Sources)
	}

	sessions, err := s.ListCaptureSessions(ctx, p.ID, 5)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d (%v)", len(sessions), err)
	}
}

func TestIntegration_UnknownField(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.ApplyFieldUpdate(context.Background(), profile.FieldUpdate{FieldID: uuid.New(), Summary: "x"})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}
