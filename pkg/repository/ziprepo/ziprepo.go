// SPDX-License-Identifier: MPL-2.0

// Package ziprepo implements a repository backed by a ZIP or JAR archive.
//
// The archive's central directory is read once, on first access (or at
// construction with WithEagerIndex), and a virtual directory hierarchy is
// synthesized from the entry names. Entries are extracted on demand into a
// private scratch directory, at most once per repository lifetime; Close
// removes the scratch directory.
package ziprepo

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/modresolve/modresolve/pkg/repository"
)

const scratchPattern = "modresolve-zip-*"

type (
	// Repository serves sources from a ZIP/JAR archive.
	Repository struct {
		uri     string
		path    string
		logger  *log.Logger
		options options

		// mu guards the lifecycle: readers hold it for the duration of an
		// index lookup or extraction, Close holds it exclusively.
		mu     sync.RWMutex
		closed bool
		reader *zip.ReadCloser

		loadIndex     func() (*index, error)
		createScratch func() (string, error)

		// extractMu guards extracted and scratch.
		extractMu sync.Mutex
		extracted map[string]*extraction
		scratch   string
		seq       atomic.Int64
	}

	// Option configures a Repository.
	Option func(*options)

	options struct {
		eager      bool
		inMemory   bool
		logger     *log.Logger
		scratchDir string
	}

	// extraction is the materialized content of one entry. Exactly one
	// goroutine performs the extraction; the rest wait on once.
	extraction struct {
		once sync.Once
		path string
		data []byte
		err  error
	}

	converter struct {
		repo *Repository
	}
)

// WithEagerIndex reads the central directory in New instead of on first access.
func WithEagerIndex() Option {
	return func(o *options) { o.eager = true }
}

// WithInMemory keeps extracted entries in memory instead of scratch files.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// WithLogger sets the logger used for cleanup and indexing diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithScratchDir sets the parent directory for the scratch area.
// The default is os.TempDir().
func WithScratchDir(dir string) Option {
	return func(o *options) { o.scratchDir = dir }
}

// New creates a repository over the archive identified by uri, which is
// either a "file:" URI or a plain filesystem path.
func New(uri string, opts ...Option) (*Repository, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "ziprepo"})
	}

	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path %q: %w", path, err)
	}

	r := &Repository{
		uri:       (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String(),
		path:      absPath,
		logger:    o.logger,
		options:   o,
		extracted: make(map[string]*extraction),
	}
	r.loadIndex = sync.OnceValues(r.readIndex)
	r.createScratch = sync.OnceValues(r.makeScratch)

	if o.eager {
		if _, err := r.loadIndex(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// PathFromURI returns the local file an archive URI names. It accepts
// "file:///abs/path", "file:/abs/path" or a plain path.
// Percent-escapes are decoded, so "%23" and "%20" round-trip to "#" and " ".
func PathFromURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("archive URI cannot be empty")
	}
	if !strings.HasPrefix(uri, "file:") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid archive URI %q: %w", uri, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("unsupported archive URI host %q: only local files are supported", u.Host)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("archive URI %q has no path", uri)
	}
	return filepath.FromSlash(path), nil
}

func (r *Repository) readIndex() (*index, error) {
	reader, err := zip.OpenReader(r.path)
	if errors.Is(err, zip.ErrInsecurePath) && reader != nil {
		// Non-local names are dropped by buildIndex.
		err = nil
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.IOFailure("index", r.path, fmt.Errorf("archive not found: %w", err))
		}
		return nil, repository.IOFailure("index", r.path, err)
	}
	r.reader = reader
	ix := buildIndex(reader.File, r.logger)
	r.logger.Debug("indexed archive", "archive", r.path, "files", len(ix.files), "dirs", len(ix.dirs))
	return ix, nil
}

func (r *Repository) makeScratch() (string, error) {
	dir, err := os.MkdirTemp(r.options.scratchDir, scratchPattern)
	if err != nil {
		return "", repository.IOFailure("create scratch", r.options.scratchDir, err)
	}
	r.extractMu.Lock()
	r.scratch = dir
	r.extractMu.Unlock()
	return dir, nil
}

// acquire returns the index with the lifecycle read lock held. The caller
// must call the returned release function.
func (r *Repository) acquire() (*index, func(), error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, nil, repository.ErrReleased
	}
	ix, err := r.loadIndex()
	if err != nil {
		r.mu.RUnlock()
		return nil, nil, err
	}
	return ix, r.mu.RUnlock, nil
}

// ID returns the archive as a file URI.
func (r *Repository) ID() string { return r.uri }

// Path returns the absolute archive path.
func (r *Repository) Path() string { return r.path }

// Children lists the virtual entries beneath path, sorted by name.
func (r *Repository) Children(ctx context.Context, path repository.LogicalPath) iter.Seq2[repository.Child, error] {
	return repository.ChildrenOf(ctx, r.Converter(), path)
}

// Open extracts (once) and opens the entry at path.
func (r *Repository) Open(ctx context.Context, path repository.LogicalPath) (io.ReadCloser, error) {
	return repository.OpenPath(ctx, r.Converter(), path)
}

// Converter returns traversal primitives addressing entries by entry name.
func (r *Repository) Converter() repository.Converter {
	return &converter{repo: r}
}

// ScratchDir returns the scratch directory, or "" if nothing has been
// extracted to disk yet.
func (r *Repository) ScratchDir() string {
	r.extractMu.Lock()
	defer r.extractMu.Unlock()
	return r.scratch
}

// Close releases the archive and removes every extracted artifact. It waits
// for in-flight extractions. Failures to delete scratch storage are logged
// and returned; content the caller already read is unaffected. Entries
// resolved earlier fail with ErrReleased once Close has run.
// Close is idempotent.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.reader != nil {
		if err := r.reader.Close(); err != nil {
			r.logger.Warn("failed to close archive", "archive", r.path, "error", err)
			errs = append(errs, fmt.Errorf("failed to close archive %s: %w", r.path, err))
		}
		r.reader = nil
	}
	r.extractMu.Lock()
	scratch := r.scratch
	clear(r.extracted)
	r.extractMu.Unlock()

	if scratch != "" {
		if err := os.RemoveAll(scratch); err != nil {
			r.logger.Warn("failed to remove scratch directory", "dir", scratch, "error", err)
			errs = append(errs, fmt.Errorf("failed to remove scratch directory %s: %w", scratch, err))
		}
	}

	return errors.Join(errs...)
}

// extract materializes the entry once. It must be called with the
// lifecycle read lock held.
func (r *Repository) extract(name string, f *zip.File) (*extraction, error) {
	r.extractMu.Lock()
	ex, ok := r.extracted[name]
	if !ok {
		ex = &extraction{}
		r.extracted[name] = ex
	}
	r.extractMu.Unlock()

	ex.once.Do(func() {
		if r.options.inMemory {
			ex.data, ex.err = readEntry(f)
			return
		}
		ex.path, ex.err = r.extractToScratch(f)
	})
	if ex.err != nil {
		return nil, ex.err
	}
	return ex, nil
}

func readEntry(f *zip.File) (data []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, repository.IOFailure("extract", f.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = repository.IOFailure("extract", f.Name, closeErr)
		}
	}()

	var buf bytes.Buffer
	//nolint:gosec // G110: archives are local, caller-supplied inputs
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, repository.IOFailure("extract", f.Name, err)
	}
	return buf.Bytes(), nil
}

func (r *Repository) extractToScratch(f *zip.File) (destPath string, err error) {
	dir, err := r.createScratch()
	if err != nil {
		return "", err
	}
	destPath = filepath.Join(dir, fmt.Sprintf("entry-%d", r.seq.Add(1)))

	rc, err := f.Open()
	if err != nil {
		return "", repository.IOFailure("extract", f.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = repository.IOFailure("extract", f.Name, closeErr)
		}
	}()

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", repository.IOFailure("extract", f.Name, err)
	}
	defer func() {
		if closeErr := destFile.Close(); closeErr != nil && err == nil {
			err = repository.IOFailure("extract", f.Name, closeErr)
		}
		if err != nil {
			// Never leave partial content behind for a later Open to serve.
			_ = os.Remove(destPath)
			destPath = ""
		}
	}()

	//nolint:gosec // G110: archives are local, caller-supplied inputs
	if _, err := io.Copy(destFile, rc); err != nil {
		return "", repository.IOFailure("extract", f.Name, err)
	}
	r.logger.Debug("extracted archive entry", "entry", f.Name, "path", destPath)
	return destPath, nil
}

func (c *converter) Start() repository.Location { return "" }

func (c *converter) Join(parent repository.Location, name string) repository.Location {
	if parent == "" {
		return repository.Location(name)
	}
	return parent + "/" + repository.Location(name)
}

// Describe renders loc in the conventional "archive!/entry" form.
func (c *converter) Describe(loc repository.Location) string {
	return c.repo.uri + "!/" + string(loc)
}

func (c *converter) Stat(_ context.Context, loc repository.Location) (repository.Child, error) {
	ix, release, err := c.repo.acquire()
	if err != nil {
		return repository.Child{}, err
	}
	defer release()

	child, ok := ix.stat(string(loc))
	if !ok {
		return repository.Child{}, repository.NotFound(c.Describe(loc))
	}
	return child, nil
}

func (c *converter) List(_ context.Context, loc repository.Location) iter.Seq2[repository.Child, error] {
	return func(yield func(repository.Child, error) bool) {
		ix, release, err := c.repo.acquire()
		if err != nil {
			yield(repository.Child{}, err)
			return
		}
		children, isDir := ix.dirs[string(loc)]
		_, isFile := ix.files[string(loc)]
		release()

		switch {
		case isDir:
		case isFile:
			yield(repository.Child{}, repository.NotNavigable(c.Describe(loc)))
			return
		default:
			yield(repository.Child{}, repository.NotFound(c.Describe(loc)))
			return
		}

		// The index is immutable; iterate without holding the lock so a
		// consumer may call Close mid-iteration.
		for _, child := range slices.Clone(children) {
			if !yield(child, nil) {
				return
			}
		}
	}
}

func (c *converter) Open(_ context.Context, loc repository.Location) (io.ReadCloser, error) {
	ix, release, err := c.repo.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	name := string(loc)
	f, ok := ix.files[name]
	if !ok {
		if _, isDir := ix.dirs[name]; isDir {
			return nil, repository.IsNavigable(c.Describe(loc))
		}
		return nil, repository.NotFound(c.Describe(loc))
	}

	ex, err := c.repo.extract(name, f)
	if err != nil {
		return nil, err
	}
	if ex.path == "" {
		return io.NopCloser(bytes.NewReader(ex.data)), nil
	}
	file, err := os.Open(ex.path)
	if err != nil {
		return nil, repository.IOFailure("open", c.Describe(loc), err)
	}
	return file, nil
}
