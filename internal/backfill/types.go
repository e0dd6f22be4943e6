// Package backfill imports historical transcripts into a profile. Files are
// parsed into messages, split into windows, previewed and committed with
// source type "import". Progress is kept in a state file so runs resume.
package backfill

import "time"

// Message is a single turn, shared across parsers. Role is the speaker label
// and may be empty for plain-text transcripts.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Window is a segment of a conversation small enough for one extraction.
type Window struct {
	Messages []Message
	Ref      string // source file + window index
	Start    time.Time
	End      time.Time
}
