// Package memory is an in-memory profile.Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

var _ profile.Store = (*Store)(nil)

// Store keeps profiles in maps guarded by a single lock. Values handed to
// callers are deep copies.
type Store struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*profile.Profile
	byUser   map[string]uuid.UUID
	fields   map[uuid.UUID]*profile.Field
	owner    map[uuid.UUID]uuid.UUID // field id -> profile id
	sources  map[uuid.UUID]*profile.Source
	sessions map[uuid.UUID][]profile.CaptureSession
	now      func() time.Time
}

func New() *Store {
	return &Store{
		profiles: make(map[uuid.UUID]*profile.Profile),
		byUser:   make(map[string]uuid.UUID),
		fields:   make(map[uuid.UUID]*profile.Field),
		owner:    make(map[uuid.UUID]uuid.UUID),
		sources:  make(map[uuid.UUID]*profile.Source),
		sessions: make(map[uuid.UUID][]profile.CaptureSession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetOrCreateProfile(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byUser[userID]; ok {
		return clone(s.profiles[id]), nil
	}
	p := &profile.Profile{ID: uuid.New(), UserID: userID, CreatedAt: s.now(), Sections: []*profile.Section{}}
	s.profiles[p.ID] = p
	s.byUser[userID] = p.ID
	return clone(p), nil
}

func (s *Store) GetProfileByUser(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return clone(s.profiles[id]), nil
}

func (s *Store) InitializeProfile(_ context.Context, profileID uuid.UUID, tx *taxonomy.Taxonomy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return profile.ErrNotFound
	}
	if p.Initialized() && p.TaxonomyVersion == tx.Version {
		return nil
	}

	for _, ts := range tx.Sections {
		sec := p.Section(ts.Key)
		if sec == nil {
			sec = &profile.Section{ID: uuid.New(), Key: ts.Key}
			p.Sections = append(p.Sections, sec)
		}
		sec.Name, sec.Order = ts.Name, ts.Order
		for _, tss := range ts.Subsections {
			sub := sec.Subsection(tss.Key)
			if sub == nil {
				sub = &profile.Subsection{ID: uuid.New(), Key: tss.Key}
				sec.Subsections = append(sec.Subsections, sub)
			}
			sub.Name, sub.Order = tss.Name, tss.Order
			for _, tf := range tss.Fields {
				f := sub.Field(tf.Key)
				if f == nil {
					f = &profile.Field{ID: uuid.New(), Key: tf.Key, Sources: []*profile.Source{}}
					sub.Fields = append(sub.Fields, f)
					s.fields[f.ID] = f
					s.owner[f.ID] = p.ID
				}
				f.Name, f.Order = tf.Name, tf.Order
			}
		}
	}
	sortProfile(p)

	if p.InitializedAt == nil {
		now := s.now()
		p.InitializedAt = &now
	}
	p.TaxonomyVersion = tx.Version
	return nil
}

func (s *Store) LoadProfile(_ context.Context, profileID uuid.UUID) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return clone(p), nil
}

func (s *Store) ApplyFieldUpdate(_ context.Context, u profile.FieldUpdate) (*profile.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[u.FieldID]
	if !ok {
		return nil, fmt.Errorf("apply update to %s: %w", u.FieldID, profile.ErrFieldNotFound)
	}

	now := s.now()
	src := u.Source
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	src.FieldID = f.ID
	src.CreatedAt = now
	if src.Type == "" {
		src.Type = profile.SourceText
	}

	f.Summary = u.Summary
	f.FullContext = u.FullContext
	f.Confidence = u.Confidence
	f.UpdatedAt = now
	stored := src
	f.Sources = append(f.Sources, &stored)
	s.sources[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *Store) CreateCaptureSession(_ context.Context, cs profile.CaptureSession, sourceIDs []uuid.UUID) (*profile.CaptureSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[cs.ProfileID]; !ok {
		return nil, profile.ErrNotFound
	}
	for _, id := range sourceIDs {
		src, ok := s.sources[id]
		if !ok || s.owner[src.FieldID] != cs.ProfileID {
			return nil, fmt.Errorf("link source %s: not in profile %s", id, cs.ProfileID)
		}
	}

	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	cs.CreatedAt = s.now()
	for _, id := range sourceIDs {
		sid := cs.ID
		s.sources[id].CaptureSessionID = &sid
	}
	s.sessions[cs.ProfileID] = append(s.sessions[cs.ProfileID], cs)
	return &cs, nil
}

func (s *Store) ListCaptureSessions(_ context.Context, profileID uuid.UUID, limit int) ([]profile.CaptureSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sessions[profileID]
	out := make([]profile.CaptureSession, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) DeleteProfile(_ context.Context, profileID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return profile.ErrNotFound
	}
	for fid, pid := range s.owner {
		if pid != profileID {
			continue
		}
		for _, src := range s.fields[fid].Sources {
			delete(s.sources, src.ID)
		}
		delete(s.fields, fid)
		delete(s.owner, fid)
	}
	delete(s.sessions, profileID)
	delete(s.byUser, p.UserID)
	delete(s.profiles, profileID)
	return nil
}

func sortProfile(p *profile.Profile) {
	sort.SliceStable(p.Sections, func(i, j int) bool { return p.Sections[i].Order < p.Sections[j].Order })
	for _, sec := range p.Sections {
		sort.SliceStable(sec.Subsections, func(i, j int) bool { return sec.Subsections[i].Order < sec.Subsections[j].Order })
		for _, sub := range sec.Subsections {
			sort.SliceStable(sub.Fields, func(i, j int) bool { return sub.Fields[i].Order < sub.Fields[j].Order })
		}
	}
}

func clone(p *profile.Profile) *profile.Profile {
	out := *p
	if p.InitializedAt != nil {
		t := *p.InitializedAt
		out.InitializedAt = &t
	}
	out.Sections = make([]*profile.Section, len(p.Sections))
	for i, sec := range p.Sections {
		sc := *sec
		sc.Subsections = make([]*profile.Subsection, len(sec.Subsections))
		for j, sub := range sec.Subsections {
			sbc := *sub
			sbc.Fields = make([]*profile.Field, len(sub.Fields))
			for k, f := range sub.Fields {
				fc := *f
				fc.Sources = make([]*profile.Source, len(f.Sources))
				for l, src := range f.Sources {
					srcc := *src
					if src.CaptureSessionID != nil {
						id := *src.CaptureSessionID
						srcc.CaptureSessionID = &id
					}
					fc.Sources[l] = &srcc
				}
				sbc.Fields[k] = &fc
			}
			sc.Subsections[j] = &sbc
		}
		out.Sections[i] = &sc
	}
	return &out
}
