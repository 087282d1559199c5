// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to repository storage with debouncing.
//
// A Watcher monitors directories (recursively or not) and individual files,
// coalesces the events that arrive within a debounce window, and invokes a
// callback once with the full set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultDebounce is the delay before firing the OnChange callback after the
// last filesystem event.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are gitignore-style rules applied below every recursive
// target in addition to Config.Ignore.
var defaultIgnores = []string{
	".git/",
	"node_modules/",
	"__pycache__/",
	"*.swp",
	"*.swo",
	"*~",
	".DS_Store",
}

// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid watch config")

type (
	// Target is a path to monitor.
	Target struct {
		// Path is a directory or a regular file. A file is watched through its
		// parent directory so that replacing it by rename is still noticed.
		Path string
		// Recursive also monitors every non-ignored directory below a
		// directory Path, including ones created later.
		Recursive bool
	}

	// Config holds the parameters for a Watcher.
	Config struct {
		Targets []Target

		// Ignore holds additional gitignore-style rules, matched relative to
		// the recursive target a path lies under.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// ClearScreen writes the ANSI clear sequence to Stdout before each
		// callback. No terminal detection is performed.
		ClearScreen bool

		// OnChange is called after the debounce window closes with the
		// deduplicated, sorted absolute paths that changed. A nil callback is a
		// no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Stdout receives the clear sequence. nil defaults to os.Stdout.
		Stdout io.Writer
		// Logger receives diagnostics. nil defaults to a stderr logger.
		Logger *log.Logger
	}

	// InvalidConfigError reports every problem found by Config.Validate.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors targets and fires a debounced callback when they
	// change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignore   *gitignore.GitIgnore
		stdout   io.Writer
		logger   *log.Logger
		debounce time.Duration
		started  atomic.Bool

		// dirs and files are only touched by New and the Run event loop.
		dirs  map[string]watchedDir
		files map[string]struct{}
	}

	// watchedDir describes why a directory is registered with fsnotify.
	watchedDir struct {
		// root is the recursive target the directory lies under, if any.
		root string
		// all reports whether every entry counts, rather than only the
		// file targets inside it.
		all bool
	}
)

// Validate reports targets with an empty path.
func (c Config) Validate() error {
	var errs []error
	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("no targets to watch"))
	}
	for i, t := range c.Targets {
		if strings.TrimSpace(t.Path) == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: path must not be empty", i))
		}
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "watch: " + ErrInvalidConfig.Error() + ": " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// New creates a Watcher and registers every target with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignore:   gitignore.CompileIgnoreLines(slices.Concat(defaultIgnores, cfg.Ignore)...),
		stdout:   stdout,
		logger:   logger,
		debounce: debounce,
		dirs:     make(map[string]watchedDir),
		files:    make(map[string]struct{}),
	}

	for _, t := range cfg.Targets {
		if err := w.addTarget(t); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("close after init failure", "error", closeErr)
			}
			return nil, err
		}
	}

	return w, nil
}

// Run blocks until ctx is cancelled, processing filesystem events and
// dispatching debounced callbacks. It returns nil on cancellation and
// propagates fatal watcher errors.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire drains the pending set and invokes OnChange. A fire that finds a
	// callback still running reschedules itself instead of overlapping.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous callback still running, retrying later")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.ClearScreen {
			fmt.Fprint(w.stdout, "\033[2J\033[H")
		}

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change callback failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "error", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			if !w.relevant(evt.Name) {
				continue
			}

			// Directories created after startup extend recursive watches.
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// Paths returns the directories registered with fsnotify, sorted.
func (w *Watcher) Paths() []string {
	return slices.Sorted(maps.Keys(w.dirs))
}

func (w *Watcher) addTarget(t Target) error {
	abs, err := filepath.Abs(t.Path)
	if err != nil {
		return fmt.Errorf("watch: resolve %q: %w", t.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch: stat %q: %w", abs, err)
	}

	if !info.IsDir() {
		w.files[abs] = struct{}{}
		return w.addDir(filepath.Dir(abs), watchedDir{})
	}
	if !t.Recursive {
		return w.addDir(abs, watchedDir{all: true})
	}

	walkErr := filepath.WalkDir(abs, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			// Unreadable directories are skipped rather than failing the watch.
			w.logger.Warn("skipping inaccessible path", "path", path, "error", walkDirErr)
			return nil //nolint:nilerr // intentional skip of inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && w.ignored(abs, path, true) {
			return filepath.SkipDir
		}
		return w.addDir(path, watchedDir{root: abs, all: true})
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk %q: %w", abs, walkErr)
	}
	return nil
}

// addDir registers dir, widening an existing registration when needed.
func (w *Watcher) addDir(dir string, wd watchedDir) error {
	if prev, ok := w.dirs[dir]; ok {
		if prev.all || !wd.all {
			return nil
		}
		w.dirs[dir] = wd
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch: add directory %q: %w", dir, err)
	}
	w.dirs[dir] = wd
	return nil
}

// maybeAddDir registers a directory created below a recursive target.
func (w *Watcher) maybeAddDir(path string) {
	parent, ok := w.dirs[filepath.Dir(path)]
	if !ok || parent.root == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if w.ignored(parent.root, path, true) {
		return
	}
	if err := w.addDir(path, watchedDir{root: parent.root, all: true}); err != nil {
		w.logger.Warn("add new directory", "path", path, "error", err)
	}
}

// relevant reports whether an event for path should schedule the callback.
func (w *Watcher) relevant(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	parent, ok := w.dirs[filepath.Dir(path)]
	if !ok || !parent.all {
		return false
	}
	return parent.root == "" || !w.ignored(parent.root, path, false)
}

// ignored matches path relative to root against the ignore rules.
func (w *Watcher) ignored(root, path string, dir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if dir && w.ignore.MatchesPath(rel+"/") {
		return true
	}
	return w.ignore.MatchesPath(rel)
}

// DefaultIgnores returns a copy of the built-in ignore rules.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
