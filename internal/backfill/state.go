package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is used when no state path is configured.
const DefaultStatePath = "~/.dossier/backfill-state.json"

// State tracks progress for resumable runs. Files are keyed by content hash
// so a renamed or copied transcript is not imported twice.
type State struct {
	StartedAt        time.Time         `json:"started_at"`
	LastProcessedAt  time.Time         `json:"last_processed_at"`
	Processed        map[string]string `json:"processed"` // content hash -> path
	WindowsProcessed int               `json:"windows_processed"`
	ChunksSaved      int               `json:"chunks_saved"`
	ChunksDropped    int               `json:"chunks_dropped"`
	Errors           []string          `json:"errors"`

	path string
}

// LoadState reads the state at path, or starts a new one when the file does
// not exist.
func LoadState(path string) (*State, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{StartedAt: time.Now().UTC(), Processed: map[string]string{}, path: p}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.Processed == nil {
		s.Processed = map[string]string{}
	}
	s.path = p
	return &s, nil
}

func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *State) IsProcessed(hash string) bool {
	_, ok := s.Processed[hash]
	return ok
}

func (s *State) MarkProcessed(hash, path string) {
	if s.Processed == nil {
		s.Processed = map[string]string{}
	}
	s.Processed[hash] = path
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// ContentHash identifies a file by what it contains.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
