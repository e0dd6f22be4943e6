package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dossier/internal/hermes"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster posts commit summaries to a Slack channel. It satisfies the
// processor's Publisher so it can sit next to the NATS client.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// Publish posts commit.completed events and ignores every other subject.
func (p *Poster) Publish(subject string, data any) error {
	if subject != hermes.SubjectCommitCompleted {
		return nil
	}
	var evt hermes.CommitCompleted
	switch v := data.(type) {
	case hermes.CommitCompleted:
		evt = v
	case *hermes.CommitCompleted:
		evt = *v
	default:
		return fmt.Errorf("unexpected payload %T for %s", data, subject)
	}
	if evt.Saved == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := p.PostCommitSummary(ctx, evt)
	return err
}

// PostCommitSummary posts one commit's outcome. Returns the message
// timestamp.
func (p *Poster) PostCommitSummary(ctx context.Context, evt hermes.CommitCompleted) (string, error) {
	text := formatCommitMessage(evt)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted commit summary to slack", "ts", slackResp.TS, "profile_id", evt.ProfileID)
	return slackResp.TS, nil
}

func formatCommitMessage(evt hermes.CommitCompleted) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Profile updated:* %s\n", evt.UserID)
	fmt.Fprintf(&sb, "*Saved:* %d | *Dropped:* %d\n", evt.Saved, evt.Dropped)
	fmt.Fprintf(&sb, "*Score:* %d -> %d (%+d)\n", evt.PreviousScore, evt.CurrentScore, evt.CurrentScore-evt.PreviousScore)

	if len(evt.SectionDelta) > 0 {
		keys := make([]string, 0, len(evt.SectionDelta))
		for k, d := range evt.SectionDelta {
			if d != 0 {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			sb.WriteString("\n*Sections moved:*\n")
			for _, k := range keys {
				fmt.Fprintf(&sb, "- %s: %+d\n", k, evt.SectionDelta[k])
			}
		}
	}
	if evt.SessionID != "" {
		fmt.Fprintf(&sb, "\n_Session %s_", evt.SessionID)
	}
	return strings.TrimRight(sb.String(), "\n")
}
