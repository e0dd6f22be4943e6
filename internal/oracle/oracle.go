// Package oracle turns a prompt plus a JSON schema into a validated value.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/dossier/internal/anthropic"
)

// ErrMalformed wraps any oracle output that does not decode or validate.
var ErrMalformed = errors.New("malformed oracle output")

// Validator is implemented by every structured output type.
type Validator interface {
	Validate() error
}

type Request struct {
	System    string
	User      string
	Schema    string
	MaxTokens int
}

// Oracle produces a structured object or fails. It never returns partial output.
type Oracle interface {
	Generate(ctx context.Context, req Request, out Validator) error
}

// Completer is the subset of the anthropic client the oracle needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

type LLM struct {
	llm       Completer
	maxTokens int
	logger    *slog.Logger
}

var _ Oracle = (*LLM)(nil)

func New(llm Completer, maxTokens int, logger *slog.Logger) *LLM {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &LLM{llm: llm, maxTokens: maxTokens, logger: logger}
}

func (o *LLM) Generate(ctx context.Context, req Request, out Validator) error {
	prompt := req.User
	if req.Schema != "" {
		prompt += "\n\nRespond with a single JSON object matching this schema. No prose, no markdown.\n\n" + req.Schema
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	raw, err := o.llm.Complete(ctx, req.System, []anthropic.Message{{Role: "user", Content: prompt}}, maxTokens)
	if err != nil {
		return fmt.Errorf("oracle call: %w", err)
	}

	if err := Decode(raw, out); err != nil {
		o.logger.Error("oracle output rejected", "error", err, "raw_len", len(raw))
		return err
	}
	return nil
}

// Decode strips code fences, decodes exactly one JSON object into out with
// unknown fields rejected, and validates it.
func Decode(raw string, out Validator) error {
	dec := json.NewDecoder(strings.NewReader(stripFences(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after object", ErrMalformed)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Compact renders v as single-line JSON for embedding in prompts.
func Compact(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal prompt payload: %w", err)
	}
	return string(data), nil
}
