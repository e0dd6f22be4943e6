// Package taxonomy holds the static, versioned profile taxonomy.
//
// The tree is built once at package init and shared read-only. Sections hold
// subsections, subsections hold fields, and every key is unique within its
// parent. Callers must not mutate values returned from this package.
package taxonomy

import (
	"errors"
	"fmt"
	"regexp"
)

// Version identifies the taxonomy definition persisted on initialized profiles.
const Version = "2025.1"

type Field struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type Subsection struct {
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	Order  int     `json:"order"`
	Fields []Field `json:"fields"`
}

type Section struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	Order       int          `json:"order"`
	Subsections []Subsection `json:"subsections"`
}

type Taxonomy struct {
	Version  string    `json:"version"`
	Sections []Section `json:"sections"`
}

var ErrInvalid = errors.New("invalid taxonomy")

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var def = build(Version, definition)

// Default returns the shared taxonomy.
func Default() *Taxonomy {
	return def
}

func (t *Taxonomy) Section(key string) (Section, bool) {
	for _, s := range t.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

func (t *Taxonomy) Subsection(section, key string) (Subsection, bool) {
	s, ok := t.Section(section)
	if !ok {
		return Subsection{}, false
	}
	for _, ss := range s.Subsections {
		if ss.Key == key {
			return ss, true
		}
	}
	return Subsection{}, false
}

func (t *Taxonomy) Field(section, subsection, key string) (Field, bool) {
	ss, ok := t.Subsection(section, subsection)
	if !ok {
		return Field{}, false
	}
	for _, f := range ss.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

func (t *Taxonomy) SectionKeys() []string {
	keys := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}

func (t *Taxonomy) SubsectionKeys(section string) []string {
	s, ok := t.Section(section)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(s.Subsections))
	for _, ss := range s.Subsections {
		keys = append(keys, ss.Key)
	}
	return keys
}

func (t *Taxonomy) FieldKeys(section, subsection string) []string {
	ss, ok := t.Subsection(section, subsection)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(ss.Fields))
	for _, f := range ss.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// FieldCount is the number of leaf fields across all sections.
func (t *Taxonomy) FieldCount() int {
	n := 0
	for _, s := range t.Sections {
		for _, ss := range s.Subsections {
			n += len(ss.Fields)
		}
	}
	return n
}

// Scoped narrows the taxonomy to one section, or one subsection of it.
// Empty keys mean "no restriction" at that level. The keys must be canonical.
func (t *Taxonomy) Scoped(section, subsection string) (*Taxonomy, error) {
	if section == "" {
		if subsection != "" {
			return nil, fmt.Errorf("subsection %q without section: %w", subsection, ErrInvalid)
		}
		return t, nil
	}
	s, ok := t.Section(section)
	if !ok {
		return nil, fmt.Errorf("unknown section %q: %w", section, ErrInvalid)
	}
	if subsection != "" {
		ss, ok := t.Subsection(section, subsection)
		if !ok {
			return nil, fmt.Errorf("unknown subsection %q in %q: %w", subsection, section, ErrInvalid)
		}
		s.Subsections = []Subsection{ss}
	}
	return &Taxonomy{Version: t.Version, Sections: []Section{s}}, nil
}

// Validate checks key shape and uniqueness within every parent.
func (t *Taxonomy) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("missing version: %w", ErrInvalid)
	}
	sections := map[string]bool{}
	for _, s := range t.Sections {
		if err := checkKey(s.Key, sections); err != nil {
			return fmt.Errorf("section: %w", err)
		}
		subs := map[string]bool{}
		for _, ss := range s.Subsections {
			if err := checkKey(ss.Key, subs); err != nil {
				return fmt.Errorf("section %s: subsection: %w", s.Key, err)
			}
			if len(ss.Fields) == 0 {
				return fmt.Errorf("%s/%s has no fields: %w", s.Key, ss.Key, ErrInvalid)
			}
			fields := map[string]bool{}
			for _, f := range ss.Fields {
				if err := checkKey(f.Key, fields); err != nil {
					return fmt.Errorf("%s/%s: field: %w", s.Key, ss.Key, err)
				}
			}
		}
	}
	return nil
}

func checkKey(key string, seen map[string]bool) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("bad key %q: %w", key, ErrInvalid)
	}
	if seen[key] {
		return fmt.Errorf("duplicate key %q: %w", key, ErrInvalid)
	}
	seen[key] = true
	return nil
}

// build assigns display order from declaration order.
func build(version string, sections []Section) *Taxonomy {
	out := &Taxonomy{Version: version, Sections: make([]Section, len(sections))}
	for i, s := range sections {
		s.Order = i
		subs := make([]Subsection, len(s.Subsections))
		for j, ss := range s.Subsections {
			ss.Order = j
			fields := make([]Field, len(ss.Fields))
			for k, f := range ss.Fields {
				f.Order = k
				fields[k] = f
			}
			ss.Fields = fields
			subs[j] = ss
		}
		s.Subsections = subs
		out.Sections[i] = s
	}
	return out
}
