// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/modresolve/modresolve/pkg/pattern"
	"github.com/modresolve/modresolve/pkg/repository"
)

// DefaultMaxDepth bounds how many levels a traversal may descend below a
// repository root.
const DefaultMaxDepth = 64

// ErrNoMatch is returned by First when a pattern matches nothing.
var ErrNoMatch = errors.New("no match")

type (
	// Resolver walks repositories to find the entries a pattern matches.
	// A Resolver holds no per-resolution state and is safe for concurrent use.
	Resolver struct {
		maxDepth    int
		parallelism int
		logger      *log.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// Error reports a terminal failure while resolving a pattern in one
	// repository.
	Error struct {
		Repository string
		Pattern    string
		Err        error
	}

	// walker carries the state of a single resolution.
	walker struct {
		ctx      context.Context
		conv     repository.Converter
		repoID   string
		segments []pattern.Segment
		maxDepth int
		logger   *log.Logger
		yield    func(*repository.ResolvedEntry, error) bool

		// ancestors holds the identity keys of the navigable locations on the
		// current descent path.
		ancestors map[string]struct{}
	}
)

// WithMaxDepth limits traversal depth below the repository root. Values
// below 1 select DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) { r.maxDepth = n }
}

// WithParallelism caps the number of repositories resolved concurrently by
// ResolveChainParallel. Zero or less means no limit.
func WithParallelism(n int) Option {
	return func(r *Resolver) { r.parallelism = n }
}

// WithLogger sets the logger for traversal diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxDepth < 1 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "resolve"})
	}
	return r
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("failed to resolve %s in %s: %v", e.Pattern, e.Repository, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Resolve resolves p against repo with a default Resolver.
func Resolve(ctx context.Context, p pattern.Pattern, repo repository.Repository) iter.Seq2[*repository.ResolvedEntry, error] {
	return NewResolver().Resolve(ctx, p, repo)
}

// Resolve returns the entries of repo matched by p.
//
// The sequence is lazy and depth-first, visiting children in the order the
// repository lists them, so a given pattern and repository always produce the
// same entries in the same order. Breaking out of the loop stops the
// traversal. Locations that do not exist or cannot be descended into simply
// contribute nothing; any other failure is yielded once, wrapped in *Error,
// and ends the sequence. Each call starts a fresh traversal.
func (r *Resolver) Resolve(ctx context.Context, p pattern.Pattern, repo repository.Repository) iter.Seq2[*repository.ResolvedEntry, error] {
	return func(yield func(*repository.ResolvedEntry, error) bool) {
		fail := func(err error) {
			yield(nil, &Error{Repository: repo.ID(), Pattern: p.String(), Err: err})
		}
		if p.IsZero() {
			fail(&pattern.InvalidPatternError{Index: -1, Reason: "pattern has no segments"})
			return
		}

		w := &walker{
			ctx:       ctx,
			conv:      repo.Converter(),
			repoID:    repo.ID(),
			segments:  p.Segments(),
			maxDepth:  r.maxDepth,
			logger:    r.logger,
			ancestors: make(map[string]struct{}),
		}
		var failure error
		w.yield = func(entry *repository.ResolvedEntry, err error) bool {
			if err != nil {
				failure = err
				return false
			}
			return yield(entry, nil)
		}

		w.root()
		if failure != nil {
			fail(failure)
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*repository.ResolvedEntry, error]) ([]*repository.ResolvedEntry, error) {
	var entries []*repository.ResolvedEntry
	for entry, err := range seq {
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// First returns the first entry of seq without consuming the rest. It
// returns ErrNoMatch when seq is empty.
func First(seq iter.Seq2[*repository.ResolvedEntry, error]) (*repository.ResolvedEntry, error) {
	for entry, err := range seq {
		return entry, err
	}
	return nil, ErrNoMatch
}

// First returns the first entry of repo matched by p.
func (r *Resolver) First(ctx context.Context, p pattern.Pattern, repo repository.Repository) (*repository.ResolvedEntry, error) {
	entry, err := First(r.Resolve(ctx, p, repo))
	if errors.Is(err, ErrNoMatch) {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoMatch, p, repo.ID())
	}
	return entry, err
}

// root starts the traversal at the repository root.
func (w *walker) root() {
	if !w.check() {
		return
	}
	start := w.conv.Start()
	self, err := w.conv.Stat(w.ctx, start)
	if err != nil {
		w.lookupOrFail(err)
		return
	}
	if !self.Navigable {
		return
	}
	w.enter(self.Key)
	w.step(0, start, nil, 0)
}

// step matches segment i against the children of the navigable location
// loc. It returns false once the traversal must stop.
func (w *walker) step(i int, loc repository.Location, path repository.LogicalPath, depth int) bool {
	seg := w.segments[i]
	if seg.Kind() == pattern.KindRest {
		return w.rest(seg, loc, path, nil, depth)
	}
	if !w.check() {
		return false
	}

	if seg.Kind() == pattern.KindLiteral {
		childLoc := w.conv.Join(loc, seg.Name())
		child, err := w.conv.Stat(w.ctx, childLoc)
		if err != nil {
			return w.lookupOrFail(err)
		}
		return w.matched(i, childLoc, child, path, depth)
	}

	for child, err := range w.conv.List(w.ctx, loc) {
		if err != nil {
			return w.lookupOrFail(err)
		}
		if !w.matched(i, w.conv.Join(loc, child.Name), child, path, depth) {
			return false
		}
	}
	return true
}

// matched continues the traversal after segment i accepted child.
func (w *walker) matched(i int, loc repository.Location, child repository.Child, path repository.LogicalPath, depth int) bool {
	path = append(slices.Clip(path), child.Name)
	last := i == len(w.segments)-1

	if !child.Navigable {
		switch {
		case last:
			return w.emit(path, loc)
		case i == len(w.segments)-2 && w.segments[i+1].Kind() == pattern.KindRest:
			// A terminal entry completes a trailing rest segment with an
			// empty capture.
			if w.segments[i+1].AcceptsTerminal(child.Name) {
				return w.emit(append(path, ""), loc)
			}
		}
		return true
	}
	if last {
		return true
	}
	return w.descend(child, depth, func() bool {
		return w.step(i+1, loc, path, depth+1)
	})
}

// rest collects every terminal entry below loc accepted by seg. captured
// holds the names matched by seg so far.
func (w *walker) rest(seg pattern.Segment, loc repository.Location, path repository.LogicalPath, captured []string, depth int) bool {
	if !w.check() {
		return false
	}
	for child, err := range w.conv.List(w.ctx, loc) {
		if err != nil {
			return w.lookupOrFail(err)
		}
		childLoc := w.conv.Join(loc, child.Name)
		names := append(slices.Clip(captured), child.Name)

		if !child.Navigable {
			if !seg.AcceptsTerminal(child.Name) {
				continue
			}
			logical := append(slices.Clip(path), strings.Join(names, "/"))
			if !w.emit(logical, childLoc) {
				return false
			}
			continue
		}

		ok := w.descend(child, depth, func() bool {
			return w.rest(seg, childLoc, path, names, depth+1)
		})
		if !ok {
			return false
		}
	}
	return true
}

// descend runs next for a navigable child unless that would exceed the
// depth limit or revisit an ancestor.
func (w *walker) descend(child repository.Child, depth int, next func() bool) bool {
	if depth+1 > w.maxDepth {
		w.logger.Warn("maximum traversal depth reached", "repo", w.repoID, "entry", child.Name, "max_depth", w.maxDepth)
		return true
	}
	if child.Key != "" {
		if _, seen := w.ancestors[child.Key]; seen {
			w.logger.Debug("skipping cyclic entry", "repo", w.repoID, "entry", child.Name, "key", child.Key)
			return true
		}
	}
	w.enter(child.Key)
	defer w.leave(child.Key)
	return next()
}

func (w *walker) enter(key string) {
	if key != "" {
		w.ancestors[key] = struct{}{}
	}
}

func (w *walker) leave(key string) {
	if key != "" {
		delete(w.ancestors, key)
	}
}

func (w *walker) emit(path repository.LogicalPath, loc repository.Location) bool {
	return w.yield(repository.NewResolvedEntry(w.repoID, w.conv, slices.Clone(path), loc), nil)
}

// lookupOrFail prunes the branch on lookup errors and stops the traversal
// on anything else.
func (w *walker) lookupOrFail(err error) bool {
	if repository.IsLookupError(err) {
		return true
	}
	w.yield(nil, err)
	return false
}

// check stops the traversal when the context is done.
func (w *walker) check() bool {
	if err := w.ctx.Err(); err != nil {
		w.yield(nil, err)
		return false
	}
	return true
}
