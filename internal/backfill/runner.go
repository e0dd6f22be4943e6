package backfill

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/dossier/internal/commit"
	"github.com/MikeSquared-Agency/dossier/internal/processor"
	"github.com/MikeSquared-Agency/dossier/internal/profile"
)

var supportedExt = map[string]bool{".txt": true, ".md": true, ".jsonl": true}

// Service is the part of the processor the importer drives.
type Service interface {
	Extract(ctx context.Context, userID string, req processor.ExtractRequest) (*processor.ExtractResponse, error)
	Commit(ctx context.Context, userID string, req processor.CommitRequest) (*processor.CommitResponse, error)
}

type Config struct {
	Paths       []string // files or directories
	UserID      string
	StatePath   string
	DryRun      bool
	MinMessages int
}

// Report summarizes one run.
type Report struct {
	Files      int    `json:"files"`
	Skipped    int    `json:"skipped"`
	Windows    int    `json:"windows"`
	Saved      int    `json:"saved"`
	Dropped    int    `json:"dropped"`
	Errors     int    `json:"errors"`
	FinalScore int    `json:"final_score"`
	DryRun     bool   `json:"dry_run"`
	StatePath  string `json:"state_path"`
}

type Runner struct {
	cfg    Config
	svc    Service
	logger *slog.Logger
}

func NewRunner(cfg Config, svc Service, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, svc: svc, logger: logger}
}

// Run imports every unprocessed file. Extraction and commit failures are
// recorded in the state and the run moves on; only state and discovery
// errors abort it.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if strings.TrimSpace(r.cfg.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", processor.ErrInvalidInput)
	}
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	files, err := discover(r.cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("files discovered", "count", len(files), "dry_run", r.cfg.DryRun)

	rep := &Report{DryRun: r.cfg.DryRun, StatePath: state.path}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			r.logger.Info("import interrupted, saving state")
			_ = state.Save()
			return rep, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("failed to read file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("read %s: %v", path, err))
			rep.Errors++
			continue
		}
		hash := ContentHash(data)
		if state.IsProcessed(hash) {
			r.logger.Info("skipping already imported file", "path", path, "first_seen", state.Processed[hash])
			rep.Skipped++
			continue
		}

		msgs, err := Parse(path, data)
		if err != nil {
			r.logger.Warn("failed to parse file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			rep.Errors++
			continue
		}
		if len(msgs) < r.cfg.MinMessages {
			rep.Skipped++
			continue
		}

		rep.Files++
		for _, w := range SplitConversation(msgs, filepath.Base(path)) {
			if err := ctx.Err(); err != nil {
				_ = state.Save()
				return rep, err
			}
			r.importWindow(ctx, w, state, rep)
		}

		if !r.cfg.DryRun {
			state.MarkProcessed(hash, path)
		}
		if err := state.Save(); err != nil {
			return rep, fmt.Errorf("save state: %w", err)
		}
	}

	r.logger.Info("import complete",
		"files", rep.Files,
		"skipped", rep.Skipped,
		"windows", rep.Windows,
		"saved", rep.Saved,
		"dropped", rep.Dropped,
		"errors", rep.Errors,
		"dry_run", r.cfg.DryRun,
	)
	return rep, nil
}

func (r *Runner) importWindow(ctx context.Context, w Window, state *State, rep *Report) {
	transcript := FormatTranscript(w)
	if strings.TrimSpace(transcript) == "" {
		return
	}
	rep.Windows++
	state.WindowsProcessed++

	preview, err := r.svc.Extract(ctx, r.cfg.UserID, processor.ExtractRequest{
		Transcript: transcript,
		SourceType: string(profile.SourceImport),
	})
	if err != nil {
		r.logger.Error("extraction failed", "ref", w.Ref, "error", err)
		state.AddError(fmt.Sprintf("extract %s: %v", w.Ref, err))
		rep.Errors++
		return
	}
	rep.Dropped += len(preview.Drops)
	state.ChunksDropped += len(preview.Drops)

	if r.cfg.DryRun || len(preview.Chunks) == 0 {
		r.logger.Info("window previewed", "ref", w.Ref, "chunks", len(preview.Chunks), "drops", len(preview.Drops))
		return
	}

	res, err := r.svc.Commit(ctx, r.cfg.UserID, processor.CommitRequest{
		Chunks: preview.Chunks,
		Session: &commit.Session{
			Title:      "Import " + w.Ref,
			InputType:  profile.SourceImport,
			Transcript: transcript,
		},
	})
	if err != nil {
		r.logger.Error("commit failed", "ref", w.Ref, "error", err)
		state.AddError(fmt.Sprintf("commit %s: %v", w.Ref, err))
		rep.Errors++
		return
	}
	rep.Saved += res.Saved
	rep.Dropped += res.Dropped
	rep.FinalScore = res.Current.Overall
	state.ChunksSaved += res.Saved
	state.ChunksDropped += res.Dropped

	r.logger.Info("window imported",
		"ref", w.Ref,
		"saved", res.Saved,
		"dropped", res.Dropped,
		"score", res.Current.Overall,
	)
}

// discover expands directories into supported files, sorted for a stable
// import order.
func discover(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedExt[strings.ToLower(filepath.Ext(p))] {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}
