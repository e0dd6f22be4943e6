package resolver

// Reason says why a chunk could not be placed in a profile.
type Reason string

const (
	ReasonUnknownSection    Reason = "unknown_section"
	ReasonUnknownSubsection Reason = "unknown_subsection"
	ReasonUnknownField      Reason = "unknown_field"
	ReasonNotInProfile      Reason = "not_in_profile"
	ReasonOutOfScope        Reason = "out_of_scope"
)

// KeyTree exposes the keys of a three-level hierarchy.
type KeyTree interface {
	SectionKeys() []string
	SubsectionKeys(section string) []string
	FieldKeys(section, subsection string) []string
}

type Path struct {
	Section    string `json:"section"`
	Subsection string `json:"subsection"`
	Field      string `json:"field"`
}

func (p Path) String() string {
	return p.Section + "/" + p.Subsection + "/" + p.Field
}

// Drop records a chunk that was not applied, keeping the labels the model used.
type Drop struct {
	Reason     Reason `json:"reason"`
	Section    string `json:"section"`
	Subsection string `json:"subsection"`
	Field      string `json:"field"`
	Summary    string `json:"summary,omitempty"`
}

// ResolvePath resolves section, subsection and field level by level. Each
// level only considers the children of the level resolved above it.
func ResolvePath(tree KeyTree, section, subsection, field string) (Path, Reason, bool) {
	s, ok := Resolve(section, tree.SectionKeys())
	if !ok {
		return Path{}, ReasonUnknownSection, false
	}
	ss, ok := Resolve(subsection, tree.SubsectionKeys(s))
	if !ok {
		return Path{Section: s}, ReasonUnknownSubsection, false
	}
	f, ok := Resolve(field, tree.FieldKeys(s, ss))
	if !ok {
		return Path{Section: s, Subsection: ss}, ReasonUnknownField, false
	}
	return Path{Section: s, Subsection: ss, Field: f}, "", true
}
