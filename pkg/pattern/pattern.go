// SPDX-License-Identifier: MPL-2.0

package pattern

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidPattern is the sentinel error wrapped by InvalidPatternError.
var ErrInvalidPattern = errors.New("invalid pattern")

type (
	// Pattern is an immutable, non-empty, ordered sequence of segments.
	// The zero value is an empty pattern and is rejected by every resolver.
	Pattern struct {
		segments []Segment
	}

	// InvalidPatternError is returned when a pattern cannot be constructed.
	// Index is the offending segment position, or -1 when the error concerns
	// the pattern as a whole.
	InvalidPatternError struct {
		Index  int
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid pattern: %s", e.Reason)
	}
	return fmt.Sprintf("invalid pattern: segment %d: %s", e.Index, e.Reason)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// New builds a Pattern from segments. It fails when no segment is given,
// when a literal is malformed, or when a rest segment is not last.
func New(segments ...Segment) (Pattern, error) {
	if len(segments) == 0 {
		return Pattern{}, &InvalidPatternError{Index: -1, Reason: "pattern has no segments"}
	}
	for i, s := range segments {
		if err := s.validate(i); err != nil {
			return Pattern{}, err
		}
		if s.kind == KindRest && i != len(segments)-1 {
			return Pattern{}, &InvalidPatternError{Index: i, Reason: "rest wildcard must be the last segment"}
		}
	}
	return Pattern{segments: slices.Clone(segments)}, nil
}

// MustNew is like New but panics on error. Intended for package-level
// pattern constants.
func MustNew(segments ...Segment) Pattern {
	p, err := New(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// Path splits a slash-separated path into literal segments.
// Empty elements (leading, trailing or doubled slashes) are rejected rather
// than silently dropped.
func Path(path string) ([]Segment, error) {
	if path == "" {
		return nil, &InvalidPatternError{Index: -1, Reason: "path is empty"}
	}
	names := strings.Split(path, Separator)
	segments := make([]Segment, 0, len(names))
	for i, name := range names {
		if err := validateLiteral(i, name); err != nil {
			return nil, err
		}
		segments = append(segments, Literal(name))
	}
	return segments, nil
}

// Concat returns a new pattern made of a's segments followed by b's.
// It fails when a already ends in a rest wildcard, since nothing can follow it.
func Concat(a, b Pattern) (Pattern, error) {
	if a.EndsInRest() {
		return Pattern{}, &InvalidPatternError{
			Index:  len(a.segments) - 1,
			Reason: fmt.Sprintf("cannot append %q after rest wildcard in %q", b.String(), a.String()),
		}
	}
	return New(slices.Concat(a.segments, b.segments)...)
}

// Append is shorthand for Concat(p, New(segments...)).
func (p Pattern) Append(segments ...Segment) (Pattern, error) {
	tail, err := New(segments...)
	if err != nil {
		return Pattern{}, err
	}
	return Concat(p, tail)
}

// Segments returns a copy of the pattern's segments.
func (p Pattern) Segments() []Segment {
	return slices.Clone(p.segments)
}

// At returns the segment at index i.
func (p Pattern) At(i int) Segment {
	return p.segments[i]
}

// Len returns the number of segments, which is also the number of names in
// every logical path produced by resolving the pattern.
func (p Pattern) Len() int {
	return len(p.segments)
}

// IsZero reports whether p is the zero (empty, unusable) pattern.
func (p Pattern) IsZero() bool {
	return len(p.segments) == 0
}

// EndsInRest reports whether the final segment is a rest wildcard.
func (p Pattern) EndsInRest() bool {
	return len(p.segments) > 0 && p.segments[len(p.segments)-1].kind == KindRest
}

// Equal reports whether two patterns have identical segments.
func (p Pattern) Equal(other Pattern) bool {
	return slices.Equal(p.segments, other.segments)
}

// String renders the pattern for diagnostics, e.g. "very/*/**.bal".
func (p Pattern) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, Separator)
}
