package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

const profileColumns = `id, user_id, taxonomy_version, initialized_at, created_at`

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	p := &profile.Profile{Sections: []*profile.Section{}}
	if err := row.Scan(&p.ID, &p.UserID, &p.TaxonomyVersion, &p.InitializedAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) GetOrCreateProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetProfileByUser(ctx, userID)
}

func (s *Store) GetProfileByUser(ctx context.Context, userID string) (*profile.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("get profile by user: %w", err)
	}
	return p, nil
}

// InitializeProfile upserts every taxonomy node in one transaction. Existing
// nodes keep their ids and content.
func (s *Store) InitializeProfile(ctx context.Context, profileID uuid.UUID, tx *taxonomy.Taxonomy) error {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback(ctx)

	var (
		version       string
		initializedAt *time.Time
	)
	err = dbtx.QueryRow(ctx, `
		SELECT taxonomy_version, initialized_at FROM profiles WHERE id = $1 FOR UPDATE`,
		profileID,
	).Scan(&version, &initializedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.ErrNotFound
		}
		return fmt.Errorf("lock profile: %w", err)
	}
	if initializedAt != nil && version == tx.Version {
		return nil
	}

	for _, sec := range tx.Sections {
		var sectionID uuid.UUID
		err := dbtx.QueryRow(ctx, `
			INSERT INTO profile_sections (id, profile_id, key, name, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (profile_id, key) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order
			RETURNING id`,
			uuid.New(), profileID, sec.Key, sec.Name, sec.Order,
		).Scan(&sectionID)
		if err != nil {
			return fmt.Errorf("upsert section %s: %w", sec.Key, err)
		}

		for _, sub := range sec.Subsections {
			var subsectionID uuid.UUID
			err := dbtx.QueryRow(ctx, `
				INSERT INTO profile_subsections (id, section_id, key, name, sort_order)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (section_id, key) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order
				RETURNING id`,
				uuid.New(), sectionID, sub.Key, sub.Name, sub.Order,
			).Scan(&subsectionID)
			if err != nil {
				return fmt.Errorf("upsert subsection %s/%s: %w", sec.Key, sub.Key, err)
			}

			for _, f := range sub.Fields {
				_, err := dbtx.Exec(ctx, `
					INSERT INTO profile_fields (id, subsection_id, key, name, sort_order)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (subsection_id, key) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order`,
					uuid.New(), subsectionID, f.Key, f.Name, f.Order,
				)
				if err != nil {
					return fmt.Errorf("upsert field %s/%s/%s: %w", sec.Key, sub.Key, f.Key, err)
				}
			}
		}
	}

	_, err = dbtx.Exec(ctx, `
		UPDATE profiles SET taxonomy_version = $1, initialized_at = COALESCE(initialized_at, now())
		WHERE id = $2`,
		tx.Version, profileID,
	)
	if err != nil {
		return fmt.Errorf("mark initialized: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadProfile reads the hierarchy level by level and assembles it in memory.
func (s *Store) LoadProfile(ctx context.Context, profileID uuid.UUID) (*profile.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, profileID))
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	sections := map[uuid.UUID]*profile.Section{}
	rows, err := s.pool.Query(ctx, `
		SELECT id, key, name, sort_order FROM profile_sections
		WHERE profile_id = $1 ORDER BY sort_order, key`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	for rows.Next() {
		sec := &profile.Section{Subsections: []*profile.Subsection{}}
		if err := rows.Scan(&sec.ID, &sec.Key, &sec.Name, &sec.Order); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections[sec.ID] = sec
		p.Sections = append(p.Sections, sec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}

	subsections := map[uuid.UUID]*profile.Subsection{}
	rows, err = s.pool.Query(ctx, `
		SELECT ss.id, ss.section_id, ss.key, ss.name, ss.sort_order
		FROM profile_subsections ss
		JOIN profile_sections s ON s.id = ss.section_id
		WHERE s.profile_id = $1 ORDER BY ss.sort_order, ss.key`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query subsections: %w", err)
	}
	for rows.Next() {
		var sectionID uuid.UUID
		sub := &profile.Subsection{Fields: []*profile.Field{}}
		if err := rows.Scan(&sub.ID, &sectionID, &sub.Key, &sub.Name, &sub.Order); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan subsection: %w", err)
		}
		if sec, ok := sections[sectionID]; ok {
			sec.Subsections = append(sec.Subsections, sub)
			subsections[sub.ID] = sub
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subsections: %w", err)
	}

	fields := map[uuid.UUID]*profile.Field{}
	rows, err = s.pool.Query(ctx, `
		SELECT f.id, f.subsection_id, f.key, f.name, f.sort_order, f.summary, f.full_context, f.confidence, f.updated_at
		FROM profile_fields f
		JOIN profile_subsections ss ON ss.id = f.subsection_id
		JOIN profile_sections s ON s.id = ss.section_id
		WHERE s.profile_id = $1 ORDER BY f.sort_order, f.key`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	for rows.Next() {
		var subsectionID uuid.UUID
		f := &profile.Field{Sources: []*profile.Source{}}
		if err := rows.Scan(&f.ID, &subsectionID, &f.Key, &f.Name, &f.Order, &f.Summary, &f.FullContext, &f.Confidence, &f.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if sub, ok := subsections[subsectionID]; ok {
			sub.Fields = append(sub.Fields, f)
			fields[f.ID] = f
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT fs.id, fs.field_id, fs.content, fs.source_type, fs.confidence, fs.capture_session_id, fs.created_at
		FROM field_sources fs
		JOIN profile_fields f ON f.id = fs.field_id
		JOIN profile_subsections ss ON ss.id = f.subsection_id
		JOIN profile_sections s ON s.id = ss.section_id
		WHERE s.profile_id = $1 ORDER BY fs.created_at, fs.id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		src := &profile.Source{}
		var sourceType string
		if err := rows.Scan(&src.ID, &src.FieldID, &src.Content, &sourceType, &src.Confidence, &src.CaptureSessionID, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Type = profile.SourceType(sourceType)
		if f, ok := fields[src.FieldID]; ok {
			f.Sources = append(f.Sources, src)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return p, nil
}

// ApplyFieldUpdate writes the new field state and its source in one transaction.
func (s *Store) ApplyFieldUpdate(ctx context.Context, u profile.FieldUpdate) (*profile.Source, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE profile_fields SET summary = $1, full_context = $2, confidence = $3, updated_at = now()
		WHERE id = $4`,
		u.Summary, u.FullContext, u.Confidence, u.FieldID,
	)
	if err != nil {
		return nil, fmt.Errorf("update field: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update field %s: %w", u.FieldID, profile.ErrFieldNotFound)
	}

	src := u.Source
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	src.FieldID = u.FieldID
	if src.Type == "" {
		src.Type = profile.SourceText
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO field_sources (id, field_id, content, source_type, confidence, capture_session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		src.ID, src.FieldID, src.Content, string(src.Type), src.Confidence, src.CaptureSessionID,
	).Scan(&src.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &src, nil
}

// CreateCaptureSession inserts the session and links sources to it. Every
// source must belong to the session's profile.
func (s *Store) CreateCaptureSession(ctx context.Context, cs profile.CaptureSession, sourceIDs []uuid.UUID) (*profile.CaptureSession, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	if cs.InputType == "" {
		cs.InputType = profile.SourceText
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO capture_sessions (id, profile_id, title, input_type, transcript, fields_populated)
		SELECT $1, id, $3, $4, $5, $6 FROM profiles WHERE id = $2
		RETURNING created_at`,
		cs.ID, cs.ProfileID, cs.Title, string(cs.InputType), cs.Transcript, cs.FieldsPopulated,
	).Scan(&cs.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrNotFound
		}
		return nil, fmt.Errorf("insert capture session: %w", err)
	}

	if len(sourceIDs) > 0 {
		ids := make([]string, len(sourceIDs))
		for i, id := range sourceIDs {
			ids[i] = id.String()
		}
		tag, err := tx.Exec(ctx, `
			UPDATE field_sources fs SET capture_session_id = $1
			FROM profile_fields f
			JOIN profile_subsections ss ON ss.id = f.subsection_id
			JOIN profile_sections s ON s.id = ss.section_id
			WHERE fs.field_id = f.id AND s.profile_id = $2 AND fs.id = ANY($3::uuid[])`,
			cs.ID, cs.ProfileID, ids,
		)
		if err != nil {
			return nil, fmt.Errorf("link sources: %w", err)
		}
		if int(tag.RowsAffected()) != len(sourceIDs) {
			return nil, fmt.Errorf("link sources: %d of %d belong to profile %s", tag.RowsAffected(), len(sourceIDs), cs.ProfileID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &cs, nil
}

func (s *Store) ListCaptureSessions(ctx context.Context, profileID uuid.UUID, limit int) ([]profile.CaptureSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, title, input_type, transcript, fields_populated, created_at
		FROM capture_sessions WHERE profile_id = $1
		ORDER BY created_at DESC LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query capture sessions: %w", err)
	}
	defer rows.Close()

	out := []profile.CaptureSession{}
	for rows.Next() {
		var cs profile.CaptureSession
		var inputType string
		if err := rows.Scan(&cs.ID, &cs.ProfileID, &cs.Title, &inputType, &cs.Transcript, &cs.FieldsPopulated, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan capture session: %w", err)
		}
		cs.InputType = profile.SourceType(inputType)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProfile(ctx context.Context, profileID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}
