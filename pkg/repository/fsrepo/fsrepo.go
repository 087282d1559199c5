// SPDX-License-Identifier: MPL-2.0

// Package fsrepo implements a repository backed by a directory tree.
package fsrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/modresolve/modresolve/pkg/repository"
)

type (
	// Repository serves sources from a directory tree rooted at a fixed path.
	Repository struct {
		root    string
		ignore  *gitignore.GitIgnore
		closed  atomic.Bool
		options options
	}

	// Option configures a Repository.
	Option func(*options)

	options struct {
		ignoreLines []string
		ignoreFiles []string
	}

	converter struct {
		repo *Repository
	}
)

// WithIgnore hides children matching any of the given gitignore-style lines.
// Matching is performed on the slash-separated path relative to the root.
func WithIgnore(lines ...string) Option {
	return func(o *options) {
		o.ignoreLines = append(o.ignoreLines, lines...)
	}
}

// WithIgnoreFile reads gitignore-style rules from path. A relative path is
// resolved against the repository root; a missing file is not an error.
func WithIgnoreFile(path string) Option {
	return func(o *options) {
		o.ignoreFiles = append(o.ignoreFiles, path)
	}
}

// New creates a repository over the directory at root.
func New(root string, opts ...Option) (*Repository, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root %q: %w", root, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repository.NotFound(absRoot)
		}
		return nil, repository.IOFailure("resolve root", absRoot, err)
	}
	info, err := os.Stat(realRoot)
	if err != nil {
		return nil, repository.IOFailure("stat root", realRoot, err)
	}
	if !info.IsDir() {
		return nil, repository.NotNavigable(realRoot)
	}

	r := &Repository{root: realRoot, options: o}
	if err := r.loadIgnoreRules(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) loadIgnoreRules() error {
	lines := append([]string(nil), r.options.ignoreLines...)
	for _, path := range r.options.ignoreFiles {
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.root, path)
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read ignore file %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		r.ignore = gitignore.CompileIgnoreLines(lines...)
	}
	return nil
}

// ID returns the absolute root directory.
func (r *Repository) ID() string { return r.root }

// Root returns the absolute root directory.
func (r *Repository) Root() string { return r.root }

// Children lists directory entries beneath path, sorted by name.
func (r *Repository) Children(ctx context.Context, path repository.LogicalPath) iter.Seq2[repository.Child, error] {
	return repository.ChildrenOf(ctx, r.Converter(), path)
}

// Open opens the regular file at path.
func (r *Repository) Open(ctx context.Context, path repository.LogicalPath) (io.ReadCloser, error) {
	return repository.OpenPath(ctx, r.Converter(), path)
}

// Converter returns traversal primitives addressing entries by OS path.
func (r *Repository) Converter() repository.Converter {
	return &converter{repo: r}
}

// Close marks the repository released. Directory trees hold no resources.
func (r *Repository) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *Repository) ignored(path string, dir bool) bool {
	if r.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	if dir && r.ignore.MatchesPath(rel+"/") {
		return true
	}
	return r.ignore.MatchesPath(rel)
}

func (c *converter) Start() repository.Location {
	return repository.Location(c.repo.root)
}

// unreachable marks a location no OS path can name. Stat rejects it with
// EINVAL, which reads as not found.
const unreachable = "\x00"

// Join keeps a name that holds the OS separator from addressing a nested
// entry: on Windows `a\b` is one name, not a walk into a.
func (c *converter) Join(parent repository.Location, name string) repository.Location {
	if strings.ContainsRune(name, filepath.Separator) {
		return repository.Location(string(parent) + string(filepath.Separator) + name + unreachable)
	}
	return repository.Location(filepath.Join(string(parent), name))
}

func (c *converter) Describe(loc repository.Location) string {
	return strings.TrimSuffix(string(loc), unreachable)
}

// Stat follows symbolic links. A dangling link is reported as not found, as
// is a name spelled differently from the directory entry it folds onto.
func (c *converter) Stat(_ context.Context, loc repository.Location) (repository.Child, error) {
	if c.repo.closed.Load() {
		return repository.Child{}, repository.ErrReleased
	}
	path := string(loc)
	info, err := os.Stat(path)
	if err != nil {
		return repository.Child{}, classify("stat", c.Describe(loc), err)
	}
	if path != c.repo.root {
		if err := exactName(path); err != nil {
			return repository.Child{}, err
		}
	}
	if c.repo.ignored(path, info.IsDir()) {
		return repository.Child{}, repository.NotFound(path)
	}
	return c.describeChild(path, filepath.Base(path), info)
}

func (c *converter) List(ctx context.Context, loc repository.Location) iter.Seq2[repository.Child, error] {
	return func(yield func(repository.Child, error) bool) {
		self, err := c.Stat(ctx, loc)
		if err != nil {
			yield(repository.Child{}, err)
			return
		}
		if !self.Navigable {
			yield(repository.Child{}, repository.NotNavigable(string(loc)))
			return
		}

		dir := string(loc)
		entries, err := os.ReadDir(dir)
		if err != nil {
			yield(repository.Child{}, classify("list", dir, err))
			return
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			info, err := os.Stat(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Dangling symlink or entry removed since ReadDir.
					continue
				}
				yield(repository.Child{}, classify("stat", path, err))
				return
			}
			if c.repo.ignored(path, info.IsDir()) {
				continue
			}
			child, err := c.describeChild(path, entry.Name(), info)
			if !yield(child, err) || err != nil {
				return
			}
		}
	}
}

func (c *converter) Open(ctx context.Context, loc repository.Location) (io.ReadCloser, error) {
	self, err := c.Stat(ctx, loc)
	if err != nil {
		return nil, err
	}
	if self.Navigable {
		return nil, repository.IsNavigable(string(loc))
	}
	f, err := os.Open(string(loc))
	if err != nil {
		return nil, classify("open", string(loc), err)
	}
	return f, nil
}

func (c *converter) describeChild(path, name string, info fs.FileInfo) (repository.Child, error) {
	child := repository.Child{Name: name, Navigable: info.IsDir()}
	if child.Navigable {
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return repository.Child{}, classify("resolve", path, err)
		}
		child.Key = realPath
	}
	return child, nil
}

// exactName reports path as not found unless its parent lists the final
// element byte for byte. Case-folding file systems resolve "Pkg" to "pkg".
func exactName(path string) error {
	dir, name := filepath.Dir(path), filepath.Base(path)
	f, err := os.Open(dir)
	if err != nil {
		return classify("list", dir, err)
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return classify("list", dir, err)
	}
	if !slices.Contains(names, name) {
		return repository.NotFound(path)
	}
	return nil
}

// classify maps OS errors onto the repository error taxonomy. A name the OS
// cannot represent, too long or holding a NUL, names nothing.
func classify(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.EINVAL):
		return repository.NotFound(path)
	case errors.Is(err, syscall.ENOTDIR):
		return repository.NotNavigable(path)
	default:
		return repository.IOFailure(op, path, err)
	}
}
