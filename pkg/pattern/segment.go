// SPDX-License-Identifier: MPL-2.0

package pattern

import (
	"fmt"
	"strings"
)

const (
	// KindLiteral matches a single path element with an exact name.
	KindLiteral Kind = iota
	// KindWildcard matches exactly one path element of any name.
	KindWildcard
	// KindRest matches all terminal entries below the current location.
	KindRest
)

// Separator joins segment names in logical paths. It is the only character
// a literal name may not contain; a backslash is an ordinary name byte, as in
// zip entry names written by Windows tools.
const Separator = "/"

type (
	// Kind identifies how a Segment matches path elements.
	Kind int

	// Segment is one matchable unit of a Pattern. The zero value is not a
	// valid segment; use Literal, Wildcard, Rest or RestWithSuffix.
	Segment struct {
		kind Kind
		// name is the literal name for KindLiteral and the optional
		// terminal-name suffix filter for KindRest.
		name string
		set  bool
	}
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindWildcard:
		return "wildcard"
	case KindRest:
		return "rest"
	default:
		return "unknown"
	}
}

// Literal returns a segment matching exactly name.
func Literal(name string) Segment {
	return Segment{kind: KindLiteral, name: name, set: true}
}

// Wildcard returns a segment matching any single path element.
func Wildcard() Segment {
	return Segment{kind: KindWildcard, set: true}
}

// Rest returns a segment matching every terminal entry below the current
// location, at any depth.
func Rest() Segment {
	return Segment{kind: KindRest, set: true}
}

// RestWithSuffix is like Rest but only captures terminal entries whose own
// name ends with suffix (e.g. ".bal" for "any source file below here").
func RestWithSuffix(suffix string) Segment {
	return Segment{kind: KindRest, name: suffix, set: true}
}

// Kind returns the segment kind.
func (s Segment) Kind() Kind { return s.kind }

// Name returns the literal name. It is empty for wildcards.
func (s Segment) Name() string {
	if s.kind != KindLiteral {
		return ""
	}
	return s.name
}

// Suffix returns the terminal-name filter of a rest segment, if any.
func (s Segment) Suffix() string {
	if s.kind != KindRest {
		return ""
	}
	return s.name
}

// Matches reports whether a single path element name is accepted by the
// segment. A rest segment accepts any directory name; use AcceptsTerminal to
// apply its suffix filter to the final element.
func (s Segment) Matches(name string) bool {
	switch s.kind {
	case KindLiteral:
		return s.name == name
	case KindWildcard, KindRest:
		return true
	default:
		return false
	}
}

// AcceptsTerminal reports whether a terminal entry named name can complete
// a rest capture.
func (s Segment) AcceptsTerminal(name string) bool {
	if s.kind != KindRest {
		return s.Matches(name)
	}
	return s.name == "" || strings.HasSuffix(name, s.name)
}

// String renders the segment in the conventional glob-like notation used for
// diagnostics: the literal name, "*" or "**" (with any suffix appended).
func (s Segment) String() string {
	switch s.kind {
	case KindLiteral:
		return s.name
	case KindWildcard:
		return "*"
	case KindRest:
		return "**" + s.name
	default:
		return fmt.Sprintf("<segment kind %d>", int(s.kind))
	}
}

// validate checks the segment in isolation. Positional rules are enforced by
// New.
func (s Segment) validate(index int) error {
	if !s.set {
		return &InvalidPatternError{Index: index, Reason: "uninitialized segment"}
	}
	switch s.kind {
	case KindLiteral:
		return validateLiteral(index, s.name)
	case KindWildcard:
		return nil
	case KindRest:
		if strings.Contains(s.name, Separator) {
			return &InvalidPatternError{Index: index, Reason: fmt.Sprintf("rest suffix %q contains a path separator", s.name)}
		}
		return nil
	default:
		return &InvalidPatternError{Index: index, Reason: fmt.Sprintf("unknown segment kind %d", int(s.kind))}
	}
}

func validateLiteral(index int, name string) error {
	switch {
	case name == "":
		return &InvalidPatternError{Index: index, Reason: "literal name is empty"}
	case name == "." || name == "..":
		return &InvalidPatternError{Index: index, Reason: fmt.Sprintf("literal name %q is a relative path element", name)}
	case strings.Contains(name, Separator):
		return &InvalidPatternError{Index: index, Reason: fmt.Sprintf("literal name %q contains a path separator", name)}
	}
	return nil
}
