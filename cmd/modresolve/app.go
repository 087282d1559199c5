// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/modresolve/modresolve/internal/config"
	"github.com/modresolve/modresolve/internal/issue"
	"github.com/modresolve/modresolve/pkg/pattern"
	"github.com/modresolve/modresolve/pkg/repository"
	"github.com/modresolve/modresolve/pkg/repository/gitrepo"
	"github.com/modresolve/modresolve/pkg/resolve"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: all Cobra command handlers receive an App reference and reach
	// configuration and repositories through its service interfaces.
	App struct {
		Config       ConfigProvider
		Repositories RepositoryOpener
		stdout       io.Writer
		stderr       io.Writer

		// Global flag values, bound by newRootCommand.
		verbose    bool
		configPath string
		repoSpecs  []string
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config       ConfigProvider
		Repositories RepositoryOpener
		Stdout       io.Writer
		Stderr       io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
		Locate(ctx context.Context, opts config.LoadOptions) (string, error)
	}

	// RepositoryOpener opens the repositories named by entries, in order, as a chain.
	// On failure every repository already opened is closed again.
	RepositoryOpener interface {
		Open(ctx context.Context, entries []config.RepositoryEntry, logger *log.Logger) (*resolve.Chain, error)
	}

	// session is the per-invocation state shared by resolve and cat.
	session struct {
		cfg    *config.Config
		logger *log.Logger
		chain  *resolve.Chain
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Repositories == nil {
		deps.Repositories = chainOpener{}
	}

	return &App{
		Config:       deps.Config,
		Repositories: deps.Repositories,
		stdout:       deps.Stdout,
		stderr:       deps.Stderr,
	}, nil
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.configPath}
}

// loadConfig loads the configuration and builds the logger it configures.
func (a *App) loadConfig(ctx context.Context) (*config.Config, *log.Logger, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(a.stderr, cfg.LogLevel, a.verbose), nil
}

// openSession loads configuration and opens the repository chain.
func (a *App) openSession(ctx context.Context) (*session, error) {
	cfg, logger, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := a.repositoryEntries(cfg, logger)
	if err != nil {
		return nil, err
	}

	chain, err := a.Repositories.Open(ctx, entries, logger)
	if err != nil {
		return nil, err
	}
	for _, repo := range chain.Repositories() {
		logger.Debug("repository", "id", repo.ID())
	}
	return &session{cfg: cfg, logger: logger, chain: chain}, nil
}

// repositoryEntries returns the chain to open. Repositories given with --repo
// replace the configured ones; with neither, the current directory is used.
func (a *App) repositoryEntries(cfg *config.Config, logger *log.Logger) ([]config.RepositoryEntry, error) {
	entries := cfg.Repositories
	if len(a.repoSpecs) > 0 {
		entries = make([]config.RepositoryEntry, 0, len(a.repoSpecs))
		for _, spec := range a.repoSpecs {
			entry, err := parseRepoSpec(spec)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		logger.Debug("no repositories configured, using the current directory")
		entries = []config.RepositoryEntry{{Kind: config.RepositoryKindDir, Path: "."}}
	}
	return entries, nil
}

// fail prints err with its suggestions to stderr, and the catalog guidance in
// verbose mode, then returns an ExitError carrying code.
func (a *App) fail(code int, err error) error {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		ae = classify(err)
	}

	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(ae, a.verbose))
	if a.verbose {
		if guidance, gErr := ae.Guidance("dark"); gErr == nil && guidance != "" {
			fmt.Fprint(a.stderr, guidance)
		}
	}
	return &ExitError{Code: code, Err: err}
}

// classify maps an error without user-facing context to an actionable error
// linked to the closest catalog issue.
func classify(err error) *issue.ActionableError {
	ctx := issue.NewErrorContext().Wrap(err)

	var resolveErr *resolve.Error
	hasResolveErr := errors.As(err, &resolveErr)

	switch {
	case errors.Is(err, pattern.ErrInvalidPattern):
		ctx.WithOperation("parse pattern").
			WithIssue(issue.InvalidPatternId).
			WithSuggestion("Use '*' for one level, '**' or '**.ext' for any depth, and only as the last segment")
	case errors.Is(err, resolve.ErrNoMatch):
		ctx.WithOperation("find a match").
			WithIssue(issue.NoMatchId).
			WithSuggestion("Run 'modresolve resolve' with a wider pattern to see what exists")
	case errors.Is(err, gitrepo.ErrRevisionNotFound):
		ctx.WithOperation("open repository").
			WithIssue(issue.RevisionNotFoundId)
	case errors.Is(err, fs.ErrPermission):
		ctx.WithOperation("read repository").
			WithIssue(issue.PermissionDeniedId)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ctx.WithOperation("resolve pattern")
	case hasResolveErr:
		ctx.WithOperation("resolve pattern").
			WithResource(resolveErr.Repository).
			WithIssue(issue.ResolveFailedId)
	case errors.Is(err, repository.ErrIOFailure), errors.Is(err, repository.ErrReleased):
		ctx.WithOperation("read repository").
			WithIssue(issue.ResolveFailedId)
	default:
		ctx.WithOperation("run command")
	}
	return ctx.Build()
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// close releases the chain and reports a failure on stderr.
func (s *session) close() {
	if err := s.chain.Close(); err != nil {
		s.logger.Warn("failed to release repositories", "error", err)
	}
}
