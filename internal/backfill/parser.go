package backfill

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// jsonlLine is one message of a JSONL conversation export. Either text or
// content carries the message body.
type jsonlLine struct {
	Role      string `json:"role"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

var speakerLine = regexp.MustCompile(`^([A-Z][\w .'-]{0,40}):\s+(.*)$`)

// Parse turns file contents into messages. .jsonl files hold one message
// per line; everything else is read as a plain transcript split on blank
// lines, with "Name: text" paragraphs attributed to Name.
func Parse(path string, data []byte) ([]Message, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return parseJSONL(data)
	}
	return parseText(data), nil
}

func parseJSONL(data []byte) ([]Message, error) {
	var msgs []Message
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line jsonlLine
		if err := json.Unmarshal(raw, &line); err != nil {
			continue // skip malformed lines
		}
		text := strings.TrimSpace(line.Text)
		if text == "" {
			text = strings.TrimSpace(line.Content)
		}
		if text == "" {
			continue
		}
		role := line.Role
		if role == "" {
			role = line.Speaker
		}
		msg := Message{Role: role, Text: text}
		if line.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, line.Timestamp); err == nil {
				msg.Timestamp = ts
			}
		}
		msgs = append(msgs, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan line %d: %w", lineNo, err)
	}
	return msgs, nil
}

func parseText(data []byte) []Message {
	var msgs []Message
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if m := speakerLine.FindStringSubmatch(para); m != nil {
			msgs = append(msgs, Message{Role: m[1], Text: strings.TrimSpace(m[2])})
			continue
		}
		msgs = append(msgs, Message{Text: para})
	}
	return msgs
}
