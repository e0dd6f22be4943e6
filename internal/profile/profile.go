// Package profile holds the profile domain model and the storage port.
package profile

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceVoice  SourceType = "voice"
	SourceText   SourceType = "text"
	SourceImport SourceType = "import"
)

// ParseSourceType maps free-form input types onto a SourceType, defaulting to text.
func ParseSourceType(s string) SourceType {
	switch SourceType(s) {
	case SourceVoice, SourceImport:
		return SourceType(s)
	default:
		return SourceText
	}
}

type Profile struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"user_id"`
	TaxonomyVersion string     `json:"taxonomy_version,omitempty"`
	InitializedAt   *time.Time `json:"initialized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Sections        []*Section `json:"sections"`
}

type Section struct {
	ID          uuid.UUID     `json:"id"`
	Key         string        `json:"key"`
	Name        string        `json:"name"`
	Order       int           `json:"order"`
	Subsections []*Subsection `json:"subsections"`
}

type Subsection struct {
	ID     uuid.UUID `json:"id"`
	Key    string    `json:"key"`
	Name   string    `json:"name"`
	Order  int       `json:"order"`
	Fields []*Field  `json:"fields"`
}

type Field struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Order       int       `json:"order"`
	Summary     string    `json:"summary"`
	FullContext string    `json:"full_context"`
	Confidence  float64   `json:"confidence"`
	UpdatedAt   time.Time `json:"updated_at"`
	Sources     []*Source `json:"sources"`
}

// Source is the immutable provenance record of one committed chunk.
type Source struct {
	ID               uuid.UUID  `json:"id"`
	FieldID          uuid.UUID  `json:"field_id"`
	Content          string     `json:"content"`
	Type             SourceType `json:"type"`
	Confidence       float64    `json:"confidence"`
	CaptureSessionID *uuid.UUID `json:"capture_session_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CaptureSession archives the input that produced a batch of sources.
type CaptureSession struct {
	ID              uuid.UUID  `json:"id"`
	ProfileID       uuid.UUID  `json:"profile_id"`
	Title           string     `json:"title"`
	InputType       SourceType `json:"input_type"`
	Transcript      string     `json:"transcript"`
	FieldsPopulated int        `json:"fields_populated"`
	CreatedAt       time.Time  `json:"created_at"`
}

// FieldUpdate is applied atomically with the insert of its source.
type FieldUpdate struct {
	FieldID     uuid.UUID
	Summary     string
	FullContext string
	Confidence  float64
	Source      Source
}

func (p *Profile) Initialized() bool {
	return p.InitializedAt != nil
}

func (p *Profile) Section(key string) *Section {
	for _, s := range p.Sections {
		if s.Key == key {
			return s
		}
	}
	return nil
}

func (s *Section) Subsection(key string) *Subsection {
	for _, ss := range s.Subsections {
		if ss.Key == key {
			return ss
		}
	}
	return nil
}

func (ss *Subsection) Field(key string) *Field {
	for _, f := range ss.Fields {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// Field looks up a field instance by its path.
func (p *Profile) Field(section, subsection, field string) *Field {
	s := p.Section(section)
	if s == nil {
		return nil
	}
	ss := s.Subsection(subsection)
	if ss == nil {
		return nil
	}
	return ss.Field(field)
}

func (p *Profile) SectionKeys() []string {
	keys := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}

func (p *Profile) SubsectionKeys(section string) []string {
	s := p.Section(section)
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.Subsections))
	for _, ss := range s.Subsections {
		keys = append(keys, ss.Key)
	}
	return keys
}

func (p *Profile) FieldKeys(section, subsection string) []string {
	s := p.Section(section)
	if s == nil {
		return nil
	}
	ss := s.Subsection(subsection)
	if ss == nil {
		return nil
	}
	keys := make([]string, 0, len(ss.Fields))
	for _, f := range ss.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// Empty reports whether nothing has been captured for the field yet.
func (f *Field) Empty() bool {
	return f.Summary == "" && f.FullContext == ""
}
