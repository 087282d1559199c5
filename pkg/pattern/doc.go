// SPDX-License-Identifier: MPL-2.0

// Package pattern defines the immutable path patterns used to locate module
// sources inside a repository.
//
// A Pattern is an ordered, non-empty sequence of segments. Each segment is one
// of:
//   - a literal name, matched byte-for-byte against a single path element
//   - a wildcard, matching exactly one path element of any name
//   - a rest wildcard, matching every terminal entry below the current point,
//     collapsed into a single logical name; it is always the last segment
//
// Patterns carry no per-resolution state and can be shared freely between
// goroutines. Textual glob syntax is not parsed here; callers translate their
// own notation into segments.
package pattern
