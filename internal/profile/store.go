package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrFieldNotFound = errors.New("field not found")
)

// Store persists the profile hierarchy. Implementations must apply a field
// update and its source insert atomically, and create a capture session
// together with its source links atomically.
type Store interface {
	// GetOrCreateProfile returns the user's profile, creating an empty,
	// uninitialized one on first access.
	GetOrCreateProfile(ctx context.Context, userID string) (*Profile, error)

	// GetProfileByUser returns ErrNotFound when the user has no profile.
	GetProfileByUser(ctx context.Context, userID string) (*Profile, error)

	// InitializeProfile materializes every taxonomy node under the profile.
	// Repeat calls with the same version do nothing. A newer version adds the
	// missing nodes and never duplicates or removes existing ones.
	InitializeProfile(ctx context.Context, profileID uuid.UUID, tx *taxonomy.Taxonomy) error

	// LoadProfile returns the full hierarchy with sources, ordered for display.
	LoadProfile(ctx context.Context, profileID uuid.UUID) (*Profile, error)

	ApplyFieldUpdate(ctx context.Context, u FieldUpdate) (*Source, error)

	CreateCaptureSession(ctx context.Context, s CaptureSession, sourceIDs []uuid.UUID) (*CaptureSession, error)

	// ListCaptureSessions returns sessions newest first.
	ListCaptureSessions(ctx context.Context, profileID uuid.UUID, limit int) ([]CaptureSession, error)

	DeleteProfile(ctx context.Context, profileID uuid.UUID) error
}
