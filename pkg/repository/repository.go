// SPDX-License-Identifier: MPL-2.0

// Package repository defines the capability contract every source backend
// implements, plus the values produced when a pattern is resolved against one.
//
// Backends live in sub-packages: fsrepo (directory trees), ziprepo (ZIP/JAR
// archives) and gitrepo (a revision of a local git repository).
package repository

import (
	"context"
	"io"
	"iter"
	"strings"
)

type (
	// Location is a backend-native address: an OS path for directory trees,
	// an entry-name prefix for archives, a tree path for git revisions.
	// Only the Converter that produced a Location can interpret it.
	Location string

	// LogicalPath is the sequence of names actually matched by a pattern,
	// one per pattern segment. A rest capture spanning several levels is
	// stored as a single slash-joined name.
	LogicalPath []string

	// Child describes an entry directly beneath a location.
	Child struct {
		// Name is the entry name exactly as stored by the backend.
		Name string
		// Navigable is true for directory-like entries.
		Navigable bool
		// Key identifies the underlying object for cycle detection. Backends
		// without aliasing (archives, git trees) may leave it empty.
		Key string
	}

	// Repository is a backing store exposing a navigable hierarchy.
	// Implementations must be safe for concurrent use.
	Repository interface {
		// ID returns the root identity (path or URI) used in diagnostics
		// and as the origin of resolved entries.
		ID() string
		// Children lists the entries directly beneath path, in a stable order.
		// The sequence yields a LookupError when path does not exist or is
		// terminal, and an IOFailureError when the backend cannot be read.
		Children(ctx context.Context, path LogicalPath) iter.Seq2[Child, error]
		// Open returns a reader over the terminal entry at path.
		Open(ctx context.Context, path LogicalPath) (io.ReadCloser, error)
		// Converter returns the traversal primitives bound to this
		// repository's native addressing.
		Converter() Converter
		// Close releases backend resources, including any scratch storage.
		Close() error
	}

	// Converter binds pattern traversal to a repository's native addressing,
	// so a resolver can walk any backend without knowing its internals.
	Converter interface {
		// Start returns the root location.
		Start() Location
		// Join returns the location of the child named name under parent.
		Join(parent Location, name string) Location
		// Stat describes the entry at loc. It returns a LookupError wrapping
		// ErrNotFound when nothing exists there.
		Stat(ctx context.Context, loc Location) (Child, error)
		// List lists the entries directly beneath loc in a stable order.
		List(ctx context.Context, loc Location) iter.Seq2[Child, error]
		// Open opens the terminal entry at loc.
		Open(ctx context.Context, loc Location) (io.ReadCloser, error)
		// Describe renders loc for diagnostics.
		Describe(loc Location) string
	}
)

// String returns the slash-joined logical path.
func (p LogicalPath) String() string {
	return strings.Join(p, "/")
}

// Key returns a collision-free identity for deduplication. Unlike String it
// distinguishes ["a/b"] (one rest capture) from ["a", "b"].
func (p LogicalPath) Key() string {
	return strings.Join(p, "\x00")
}

// Names flattens the logical path into the individual names it spans,
// splitting rest captures back into their components. Empty captures are
// dropped.
func (p LogicalPath) Names() []string {
	names := make([]string, 0, len(p))
	for _, part := range p {
		if part == "" {
			continue
		}
		names = append(names, strings.Split(part, "/")...)
	}
	return names
}

// Locate walks conv from its root along the names in path and returns the
// native location. Every intermediate name must be navigable.
func Locate(ctx context.Context, conv Converter, path LogicalPath) (Location, error) {
	loc := conv.Start()
	names := path.Names()
	for i, name := range names {
		next := conv.Join(loc, name)
		if i < len(names)-1 {
			child, err := conv.Stat(ctx, next)
			if err != nil {
				return "", err
			}
			if !child.Navigable {
				return "", NotNavigable(conv.Describe(next))
			}
		}
		loc = next
	}
	return loc, nil
}
