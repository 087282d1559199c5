// SPDX-License-Identifier: MPL-2.0

// Package gitrepo implements a read-only repository over one revision of a
// local git repository. Only the local object store is consulted.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/modresolve/modresolve/pkg/repository"
)

// DefaultRevision is used when New is given an empty revision.
const DefaultRevision = "HEAD"

// ErrRevisionNotFound is returned when a revision names no commit.
var ErrRevisionNotFound = errors.New("revision not found")

type (
	// Repository serves the tree of a single commit.
	Repository struct {
		path     string
		revision string
		commit   plumbing.Hash
		logger   *log.Logger

		// mu serializes object store access; go-git trees are not safe for
		// concurrent use.
		mu     sync.Mutex
		repo   *git.Repository
		root   *object.Tree
		closed bool
	}

	// Option configures a Repository.
	Option func(*Repository)

	converter struct {
		repo *Repository
	}
)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// New opens the git repository at path and pins it to revision, which may be
// a branch, a remote branch of origin, a tag, HEAD, or a full commit hash.
func New(path, revision string, opts ...Option) (*Repository, error) {
	if revision == "" {
		revision = DefaultRevision
	}
	r := &Repository{path: path, revision: revision}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "gitrepo"})
	}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, repository.NotFound(path)
		}
		return nil, repository.IOFailure("open", path, err)
	}

	hash, err := resolveRevision(repo, revision)
	if err != nil {
		return nil, err
	}
	commit, err := commitFor(repo, hash)
	if err != nil {
		return nil, repository.IOFailure("read commit", hash.String(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, repository.IOFailure("read tree", commit.Hash.String(), err)
	}

	r.repo = repo
	r.root = tree
	r.commit = commit.Hash
	r.logger.Debug("pinned revision", "repo", path, "revision", revision, "commit", commit.Hash.String())
	return r, nil
}

// resolveRevision tries the revision as a local branch, an origin branch, a
// tag, HEAD and finally a commit hash.
func resolveRevision(repo *git.Repository, rev string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(rev),
		plumbing.NewRemoteReferenceName("origin", rev),
		plumbing.NewTagReferenceName(rev),
	}
	for _, name := range candidates {
		if ref, err := repo.Reference(name, true); err == nil {
			return ref.Hash(), nil
		}
	}

	if rev == "HEAD" {
		head, err := repo.Head()
		if err == nil {
			return head.Hash(), nil
		}
	}

	hash := plumbing.NewHash(rev)
	if !hash.IsZero() && len(rev) == len(hash.String()) {
		if _, err := repo.CommitObject(hash); err == nil {
			return hash, nil
		}
	}

	return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRevisionNotFound, rev)
}

// commitFor peels annotated tags down to their commit.
func commitFor(repo *git.Repository, hash plumbing.Hash) (*object.Commit, error) {
	commit, err := repo.CommitObject(hash)
	if err == nil {
		return commit, nil
	}
	tag, tagErr := repo.TagObject(hash)
	if tagErr != nil {
		return nil, err
	}
	return tag.Commit()
}

// ID returns "<path>@<revision>".
func (r *Repository) ID() string { return r.path + "@" + r.revision }

// Commit returns the pinned commit hash.
func (r *Repository) Commit() string { return r.commit.String() }

// Children lists tree entries beneath path, sorted by name.
func (r *Repository) Children(ctx context.Context, path repository.LogicalPath) iter.Seq2[repository.Child, error] {
	return repository.ChildrenOf(ctx, r.Converter(), path)
}

// Open reads the blob at path.
func (r *Repository) Open(ctx context.Context, path repository.LogicalPath) (io.ReadCloser, error) {
	return repository.OpenPath(ctx, r.Converter(), path)
}

// Converter returns traversal primitives addressing entries by tree path.
func (r *Repository) Converter() repository.Converter {
	return &converter{repo: r}
}

// Close releases the object store. It is idempotent.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.root = nil
	if c, ok := r.repo.Storer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close object store for %s: %w", r.path, err)
		}
	}
	return nil
}

// lock acquires mu and fails if the repository is closed.
func (r *Repository) lock() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return repository.ErrReleased
	}
	return nil
}

func (c *converter) Start() repository.Location { return "" }

func (c *converter) Join(parent repository.Location, name string) repository.Location {
	if parent == "" {
		return repository.Location(name)
	}
	return parent + "/" + repository.Location(name)
}

func (c *converter) Describe(loc repository.Location) string {
	return c.repo.ID() + ":" + string(loc)
}

func (c *converter) Stat(_ context.Context, loc repository.Location) (repository.Child, error) {
	if err := c.repo.lock(); err != nil {
		return repository.Child{}, err
	}
	defer c.repo.mu.Unlock()
	return c.stat(loc)
}

// stat must be called with the lock held.
func (c *converter) stat(loc repository.Location) (repository.Child, error) {
	if loc == "" {
		return repository.Child{Navigable: true}, nil
	}
	entry, err := c.repo.root.FindEntry(string(loc))
	if err != nil {
		return repository.Child{}, c.classify("stat", loc, err)
	}
	child, ok := childOf(entry)
	if !ok {
		return repository.Child{}, repository.NotFound(c.Describe(loc))
	}
	return child, nil
}

func (c *converter) List(_ context.Context, loc repository.Location) iter.Seq2[repository.Child, error] {
	return func(yield func(repository.Child, error) bool) {
		children, err := c.list(loc)
		if err != nil {
			yield(repository.Child{}, err)
			return
		}
		for _, child := range children {
			if !yield(child, nil) {
				return
			}
		}
	}
}

func (c *converter) list(loc repository.Location) ([]repository.Child, error) {
	if err := c.repo.lock(); err != nil {
		return nil, err
	}
	defer c.repo.mu.Unlock()

	self, err := c.stat(loc)
	if err != nil {
		return nil, err
	}
	if !self.Navigable {
		return nil, repository.NotNavigable(c.Describe(loc))
	}

	tree := c.repo.root
	if loc != "" {
		tree, err = c.repo.root.Tree(string(loc))
		if err != nil {
			return nil, c.classify("list", loc, err)
		}
	}

	children := make([]repository.Child, 0, len(tree.Entries))
	for i := range tree.Entries {
		entry := &tree.Entries[i]
		child, ok := childOf(entry)
		if !ok {
			c.repo.logger.Debug("skipping unsupported tree entry", "entry", entry.Name, "mode", entry.Mode.String())
			continue
		}
		children = append(children, child)
	}
	// Git orders directories as if their names ended in '/'.
	slices.SortFunc(children, func(a, b repository.Child) int {
		return strings.Compare(a.Name, b.Name)
	})
	return children, nil
}

func (c *converter) Open(_ context.Context, loc repository.Location) (io.ReadCloser, error) {
	if err := c.repo.lock(); err != nil {
		return nil, err
	}
	defer c.repo.mu.Unlock()

	self, err := c.stat(loc)
	if err != nil {
		return nil, err
	}
	if self.Navigable {
		return nil, repository.IsNavigable(c.Describe(loc))
	}

	file, err := c.repo.root.File(string(loc))
	if err != nil {
		return nil, c.classify("open", loc, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, repository.IOFailure("open", c.Describe(loc), err)
	}
	return &blobReader{repo: c.repo, desc: c.Describe(loc), rc: reader}, nil
}

// blobReader streams a blob out of the object store. Each Read holds the
// repository lock, so reads fail with ErrReleased once the repository closes.
type blobReader struct {
	repo *Repository
	desc string
	rc   io.ReadCloser
}

func (b *blobReader) Read(p []byte) (int, error) {
	if err := b.repo.lock(); err != nil {
		return 0, err
	}
	defer b.repo.mu.Unlock()

	n, err := b.rc.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, repository.IOFailure("read", b.desc, err)
	}
	return n, err
}

func (b *blobReader) Close() error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	return b.rc.Close()
}

// childOf maps a tree entry to a Child. Submodules and symbolic links have
// no content in this repository and are not reported.
func childOf(entry *object.TreeEntry) (repository.Child, bool) {
	switch entry.Mode {
	case filemode.Dir:
		return repository.Child{Name: entry.Name, Navigable: true}, true
	case filemode.Regular, filemode.Executable, filemode.Deprecated:
		return repository.Child{Name: entry.Name}, true
	default:
		return repository.Child{}, false
	}
}

func (c *converter) classify(op string, loc repository.Location, err error) error {
	switch {
	case errors.Is(err, object.ErrEntryNotFound),
		errors.Is(err, object.ErrDirectoryNotFound),
		errors.Is(err, object.ErrFileNotFound):
		return repository.NotFound(c.Describe(loc))
	default:
		return repository.IOFailure(op, c.Describe(loc), err)
	}
}
