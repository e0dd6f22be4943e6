package hermes

import "time"

const (
	// SubjectExtractionCompleted is published after every Extract preview.
	SubjectExtractionCompleted = "profile.extraction.completed"
	// SubjectCommitCompleted is published after every successful commit.
	SubjectCommitCompleted = "profile.commit.completed"
	// SubjectTranscriptSubmitted carries transcripts to preview asynchronously.
	SubjectTranscriptSubmitted = "profile.transcript.submitted"
	// SubjectExtractionReady carries the preview built for a submitted transcript.
	SubjectExtractionReady = "profile.extraction.ready"
)

type ExtractionCompleted struct {
	UserID             string    `json:"user_id"`
	Chunks             int       `json:"chunks"`
	Dropped            int       `json:"dropped"`
	GapAnalysisApplied bool      `json:"gap_analysis_applied"`
	Model              string    `json:"model"`
	DurationMS         int64     `json:"duration_ms"`
	Timestamp          time.Time `json:"timestamp"`
}

type CommitCompleted struct {
	UserID        string         `json:"user_id"`
	ProfileID     string         `json:"profile_id"`
	Saved         int            `json:"saved"`
	Dropped       int            `json:"dropped"`
	SessionID     string         `json:"session_id,omitempty"`
	PreviousScore int            `json:"previous_score"`
	CurrentScore  int            `json:"current_score"`
	SectionDelta  map[string]int `json:"section_delta,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// TranscriptSubmitted is the inbound payload on SubjectTranscriptSubmitted.
type TranscriptSubmitted struct {
	RequestID  string `json:"request_id"`
	UserID     string `json:"user_id"`
	Transcript string `json:"transcript"`
	SourceType string `json:"source_type"`
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`
}

// ExtractionReady wraps the preview for a submitted transcript. Preview is
// nil and Error set when extraction failed.
type ExtractionReady struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Preview   any    `json:"preview,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SynthesisRequest asks the synthesis worker to rewrite one field from all
// of its sources.
type SynthesisRequest struct {
	FieldID string `json:"field_id"`
}

type SynthesisReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
