package backfill

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxWindowMessages = 40
	maxWindowChars    = 24000
	windowTimeGap     = 10 * time.Minute
)

// SplitConversation breaks a conversation on time gaps, message count and
// accumulated text size.
func SplitConversation(msgs []Message, ref string) []Window {
	if len(msgs) == 0 {
		return nil
	}

	var windows []Window
	var current []Message
	chars := 0

	flush := func() {
		windows = append(windows, buildWindow(current, ref, len(windows)))
		current = nil
		chars = 0
	}

	for _, msg := range msgs {
		if len(current) > 0 && !msg.Timestamp.IsZero() {
			prev := current[len(current)-1]
			if !prev.Timestamp.IsZero() && msg.Timestamp.Sub(prev.Timestamp) > windowTimeGap {
				flush()
			}
		}
		if len(current) >= maxWindowMessages || (len(current) > 0 && chars+len(msg.Text) > maxWindowChars) {
			flush()
		}
		current = append(current, msg)
		chars += len(msg.Text)
	}

	if len(current) > 0 {
		flush()
	}
	return windows
}

func buildWindow(msgs []Message, ref string, idx int) Window {
	w := Window{
		Messages: make([]Message, len(msgs)),
		Ref:      fmt.Sprintf("%s#%d", ref, idx),
	}
	copy(w.Messages, msgs)
	w.Start = msgs[0].Timestamp
	w.End = msgs[len(msgs)-1].Timestamp
	return w
}

// FormatTranscript renders a window as "Speaker: text" paragraphs.
func FormatTranscript(w Window) string {
	var sb strings.Builder
	for _, msg := range w.Messages {
		switch msg.Role {
		case "":
		case "user":
			sb.WriteString("User: ")
		case "assistant":
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString(msg.Role + ": ")
		}
		sb.WriteString(msg.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
