// SPDX-License-Identifier: MPL-2.0

// Package resolve turns patterns into concrete entries.
//
// A Resolver walks a repository depth-first through its Converter, guided by
// the pattern's segments: literals descend into one named child, wildcards
// into every child, and a trailing rest segment collects every terminal entry
// below. Work is bounded by the shape of the pattern, not the size of the
// store, and results are produced lazily so callers can stop at the first
// match.
//
// A Chain composes repositories by precedence. ResolveChain is lazy and
// sequential; ResolveChainParallel fans out one goroutine per repository and
// merges the results in chain order.
//
// Symbolic links and other aliases can make a hierarchy cyclic. Traversal
// skips a navigable entry whose identity key already appears among its
// ancestors, and never descends more than the configured maximum depth.
package resolve
