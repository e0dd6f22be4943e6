package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/dossier/internal/cache"
	"github.com/MikeSquared-Agency/dossier/internal/commit"
	"github.com/MikeSquared-Agency/dossier/internal/extractor"
	"github.com/MikeSquared-Agency/dossier/internal/hermes"
	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/resolver"
	"github.com/MikeSquared-Agency/dossier/internal/score"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

var (
	// ErrInvalidInput marks caller mistakes: missing user, empty transcript,
	// malformed chunks.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream marks extraction failures caused by the language model.
	ErrUpstream = errors.New("extraction failed")
)

// Publisher is the publish half of hermes.Client.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor is the application service behind the HTTP API and the NATS
// handlers.
type Processor struct {
	store     profile.Store
	extractor *extractor.Extractor
	engine    *commit.Engine
	tax       *taxonomy.Taxonomy
	cache     *cache.Cache
	pub       Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // keyed by user id
}

// New wires the service. cache and pub may be nil.
func New(s profile.Store, ext *extractor.Extractor, eng *commit.Engine, c *cache.Cache, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		store:     s,
		extractor: ext,
		engine:    eng,
		tax:       ext.Taxonomy(),
		cache:     c,
		pub:       pub,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

type ExtractRequest struct {
	Transcript string          `json:"transcript"`
	SourceType string          `json:"source_type"`
	Scope      extractor.Scope `json:"scope"`
}

type ExtractResponse struct {
	Chunks    []extractor.Chunk  `json:"chunks"`
	Drops     []resolver.Drop    `json:"drops"`
	Themes    []string           `json:"themes"`
	FollowUps []string           `json:"follow_ups"`
	Scope     extractor.Scope    `json:"scope"`
	Metadata  extractor.Metadata `json:"metadata"`
}

type CommitRequest struct {
	Chunks  []extractor.Chunk `json:"chunks"`
	Scope   extractor.Scope   `json:"scope"`
	Session *commit.Session   `json:"session,omitempty"`
}

type CommitResponse struct {
	Saved     int                `json:"saved"`
	Dropped   int                `json:"dropped"`
	Drops     []resolver.Drop    `json:"drops"`
	SessionID *uuid.UUID         `json:"session_id,omitempty"`
	Previous  score.Snapshot     `json:"previous"`
	Current   score.Snapshot     `json:"current"`
	Delta     score.Delta        `json:"delta"`
	Weak      []score.FieldScore `json:"weak_fields"`
}

// ScoreReport is what Score returns and what the cache holds.
type ScoreReport struct {
	ProfileID uuid.UUID          `json:"profile_id"`
	Snapshot  score.Snapshot     `json:"snapshot"`
	Weak      []score.FieldScore `json:"weak_fields"`
}

// Extract previews what a transcript would contribute. Nothing is written.
// Chunks come back with canonical keys; those that do not resolve are
// reported as drops.
func (p *Processor) Extract(ctx context.Context, userID string, req ExtractRequest) (*ExtractResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", ErrInvalidInput)
	}

	res, err := p.extractor.Extract(ctx, extractor.Input{
		Transcript: req.Transcript,
		SourceType: string(profile.ParseSourceType(req.SourceType)),
		Scope:      req.Scope,
	})
	switch {
	case errors.Is(err, extractor.ErrEmptyTranscript):
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, extractor.ErrInvalidScope):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	out := &ExtractResponse{
		Chunks:    []extractor.Chunk{},
		Drops:     []resolver.Drop{},
		Themes:    res.Themes,
		FollowUps: res.FollowUps,
		Scope:     res.Scope,
		Metadata:  res.Metadata,
	}
	if out.Themes == nil {
		out.Themes = []string{}
	}
	if out.FollowUps == nil {
		out.FollowUps = []string{}
	}
	for _, c := range res.Chunks {
		path, reason, ok := resolver.ResolvePath(p.tax, c.TargetSection, c.TargetSubsection, c.TargetField)
		if ok && !res.Scope.Contains(path) {
			reason, ok = resolver.ReasonOutOfScope, false
		}
		if !ok {
			out.Drops = append(out.Drops, resolver.Drop{
				Reason:     reason,
				Section:    c.TargetSection,
				Subsection: c.TargetSubsection,
				Field:      c.TargetField,
				Summary:    c.Summary,
			})
			continue
		}
		c.TargetSection, c.TargetSubsection, c.TargetField = path.Section, path.Subsection, path.Field
		out.Chunks = append(out.Chunks, c)
	}

	p.publish(hermes.SubjectExtractionCompleted, hermes.ExtractionCompleted{
		UserID:             userID,
		Chunks:             len(out.Chunks),
		Dropped:            len(out.Drops),
		GapAnalysisApplied: res.Metadata.GapAnalysisApplied,
		Model:              res.Metadata.Model,
		DurationMS:         res.Metadata.DurationMS,
		Timestamp:          time.Now().UTC(),
	})
	return out, nil
}

// Commit merges chunks into the user's profile and reports the score
// before and after. Commits for one user are serialized.
func (p *Processor) Commit(ctx context.Context, userID string, req CommitRequest) (*CommitResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(req.Chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to commit", ErrInvalidInput)
	}
	for i, c := range req.Chunks {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrInvalidInput, i, err)
		}
	}
	scope, err := req.Scope.Canonical(p.tax)
	if err != nil {
		return nil, err
	}
	if req.Session != nil && req.Session.InputType != "" {
		req.Session.InputType = profile.ParseSourceType(string(req.Session.InputType))
	}

	unlock := p.lock(userID)
	defer unlock()

	prof, err := p.ensureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := score.Compute(prof)

	res, err := p.engine.Commit(ctx, prof, commit.Batch{Chunks: req.Chunks, Scope: scope, Session: req.Session})
	if err != nil {
		return nil, fmt.Errorf("commit chunks: %w", err)
	}

	// Reload so synthesized summaries are reflected in the score.
	prof, err = p.store.LoadProfile(ctx, prof.ID)
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}
	report := p.report(prof)
	p.cache.Invalidate(ctx, prof.ID)
	p.cache.Set(ctx, prof.ID, report)

	out := &CommitResponse{
		Saved:     res.Saved,
		Dropped:   res.Dropped,
		Drops:     res.Drops,
		SessionID: res.SessionID,
		Previous:  previous,
		Current:   report.Snapshot,
		Delta:     score.Diff(previous, report.Snapshot),
		Weak:      report.Weak,
	}

	evt := hermes.CommitCompleted{
		UserID:        userID,
		ProfileID:     prof.ID.String(),
		Saved:         out.Saved,
		Dropped:       out.Dropped,
		PreviousScore: previous.Overall,
		CurrentScore:  out.Current.Overall,
		SectionDelta:  out.Delta.Sections,
		Timestamp:     time.Now().UTC(),
	}
	if res.SessionID != nil {
		evt.SessionID = res.SessionID.String()
	}
	p.publish(hermes.SubjectCommitCompleted, evt)
	return out, nil
}

// Profile returns the user's full hierarchy.
func (p *Processor) Profile(ctx context.Context, userID string) (*profile.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	head, err := p.store.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	prof, err := p.store.LoadProfile(ctx, head.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return prof, nil
}

// Score returns the cached report when present, computing it otherwise.
func (p *Processor) Score(ctx context.Context, userID string) (*ScoreReport, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	head, err := p.store.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	var cached ScoreReport
	if p.cache.Get(ctx, head.ID, &cached) {
		return &cached, nil
	}
	prof, err := p.store.LoadProfile(ctx, head.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	report := p.report(prof)
	p.cache.Set(ctx, prof.ID, report)
	return &report, nil
}

func (p *Processor) Sessions(ctx context.Context, userID string, limit int) ([]profile.CaptureSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	head, err := p.store.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	sessions, err := p.store.ListCaptureSessions(ctx, head.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list capture sessions: %w", err)
	}
	return sessions, nil
}

func (p *Processor) DeleteProfile(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	unlock := p.lock(userID)
	defer unlock()

	head, err := p.store.GetProfileByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if err := p.store.DeleteProfile(ctx, head.ID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	p.cache.Invalidate(ctx, head.ID)
	p.logger.Info("profile deleted", "user_id", userID, "profile_id", head.ID)
	return nil
}

// Taxonomy is the static taxonomy the service extracts against.
func (p *Processor) Taxonomy() *taxonomy.Taxonomy {
	return p.tax
}

type Status struct {
	TaxonomyVersion string `json:"taxonomy_version"`
	Fields          int    `json:"fields"`
	Model           string `json:"model"`
	GapAnalysis     bool   `json:"gap_analysis"`
	CacheRedis      bool   `json:"cache_redis"`
	CacheHits       int64  `json:"cache_hits"`
	CacheMisses     int64  `json:"cache_misses"`
	NATS            bool   `json:"nats"`
}

func (p *Processor) Status() Status {
	hits, misses := p.cache.Stats()
	st := Status{
		TaxonomyVersion: p.tax.Version,
		Fields:          p.tax.FieldCount(),
		Model:           p.extractor.Model(),
		GapAnalysis:     p.extractor.GapAnalysis(),
		CacheRedis:      p.cache.Redis(),
		CacheHits:       hits,
		CacheMisses:     misses,
	}
	if c, ok := p.pub.(interface{ Connected() bool }); ok {
		st.NATS = c.Connected()
	}
	return st
}

// HandleTranscriptSubmitted is the NATS handler for profile.transcript.submitted.
// It builds a preview and publishes it on profile.extraction.ready. It never
// commits.
func (p *Processor) HandleTranscriptSubmitted(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.TranscriptSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse transcript event", "subject", subject, "error", err)
		return
	}

	p.logger.Info("previewing submitted transcript",
		"request_id", evt.RequestID,
		"user_id", evt.UserID,
		"transcript_len", len(evt.Transcript),
	)

	ready := hermes.ExtractionReady{RequestID: evt.RequestID, UserID: evt.UserID}
	preview, err := p.Extract(ctx, evt.UserID, ExtractRequest{
		Transcript: evt.Transcript,
		SourceType: evt.SourceType,
		Scope:      extractor.Scope{Section: evt.Section, Subsection: evt.Subsection},
	})
	if err != nil {
		p.logger.Error("preview failed", "request_id", evt.RequestID, "error", err)
		ready.Error = err.Error()
	} else {
		ready.Preview = preview
	}
	p.publish(hermes.SubjectExtractionReady, ready)
}

func (p *Processor) ensureProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	prof, err := p.store.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create profile: %w", err)
	}
	if !prof.Initialized() || prof.TaxonomyVersion != p.tax.Version {
		if err := p.store.InitializeProfile(ctx, prof.ID, p.tax); err != nil {
			return nil, fmt.Errorf("initialize profile: %w", err)
		}
		p.logger.Info("profile initialized", "user_id", userID, "profile_id", prof.ID, "taxonomy", p.tax.Version)
	}
	prof, err = p.store.LoadProfile(ctx, prof.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return prof, nil
}

func (p *Processor) report(prof *profile.Profile) ScoreReport {
	return ScoreReport{ProfileID: prof.ID, Snapshot: score.Compute(prof), Weak: score.WeakFields(prof)}
}

func (p *Processor) lock(userID string) func() {
	p.mu.Lock()
	l, ok := p.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[userID] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (p *Processor) publish(subject string, data any) {
	if p.pub == nil {
		return
	}
	if err := p.pub.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish", "subject", subject, "error", err)
	}
}
