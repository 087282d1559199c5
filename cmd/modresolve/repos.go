// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/modresolve/modresolve/internal/config"
	"github.com/modresolve/modresolve/internal/issue"
	"github.com/modresolve/modresolve/pkg/repository"
	"github.com/modresolve/modresolve/pkg/repository/fsrepo"
	"github.com/modresolve/modresolve/pkg/repository/gitrepo"
	"github.com/modresolve/modresolve/pkg/repository/ziprepo"
	"github.com/modresolve/modresolve/pkg/resolve"
)

// chainOpener opens configured repositories with the production backends.
type chainOpener struct{}

// parseRepoSpec parses a --repo value: "dir:PATH", "zip:URI" or "git:PATH[@REV]".
// A value without a recognized kind prefix is a directory path, so Windows
// drive letters need no escaping.
func parseRepoSpec(spec string) (config.RepositoryEntry, error) {
	entry := config.RepositoryEntry{Kind: config.RepositoryKindDir, Path: spec}

	if kind, loc, ok := strings.Cut(spec, ":"); ok {
		switch config.RepositoryKind(kind) {
		case config.RepositoryKindDir:
			entry = config.RepositoryEntry{Kind: config.RepositoryKindDir, Path: loc}
		case config.RepositoryKindZip:
			entry = config.RepositoryEntry{Kind: config.RepositoryKindZip, URI: loc}
		case config.RepositoryKindGit:
			entry = config.RepositoryEntry{Kind: config.RepositoryKindGit, Path: loc}
			if at := strings.LastIndex(loc, "@"); at > 0 {
				entry.Path, entry.Revision = loc[:at], loc[at+1:]
			}
		}
	}

	if ok, errs := entry.IsValid(); !ok {
		return config.RepositoryEntry{}, issue.NewErrorContext().
			WithOperation("parse --repo").
			WithResource(spec).
			WithSuggestion("Use dir:PATH, zip:URI or git:PATH@REVISION").
			Wrap(errors.Join(errs...)).
			BuildError()
	}
	return entry, nil
}

// Open opens entries in order. Archives are indexed up front so that a broken
// archive is reported here rather than halfway through a resolution.
func (chainOpener) Open(ctx context.Context, entries []config.RepositoryEntry, logger *log.Logger) (*resolve.Chain, error) {
	repos := make([]repository.Repository, 0, len(entries))
	release := func() {
		for _, repo := range repos {
			if err := repo.Close(); err != nil {
				logger.Warn("failed to release repository", "id", repo.ID(), "error", err)
			}
		}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			release()
			return nil, err
		}
		repo, err := openRepository(entry, logger)
		if err != nil {
			release()
			return nil, openFailure(entry, err)
		}
		repos = append(repos, repo)
	}
	return resolve.NewChain(repos...), nil
}

func openRepository(entry config.RepositoryEntry, logger *log.Logger) (repository.Repository, error) {
	switch entry.Kind {
	case config.RepositoryKindDir:
		var opts []fsrepo.Option
		if entry.IgnoreFile != "" {
			opts = append(opts, fsrepo.WithIgnoreFile(entry.IgnoreFile))
		}
		repo, err := fsrepo.New(entry.Path, opts...)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.RepositoryKindZip:
		repo, err := ziprepo.New(entry.URI,
			ziprepo.WithEagerIndex(),
			ziprepo.WithLogger(logger.WithPrefix("ziprepo")),
		)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.RepositoryKindGit:
		repo, err := gitrepo.New(entry.Path, entry.Revision, gitrepo.WithLogger(logger.WithPrefix("gitrepo")))
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, &config.InvalidRepositoryKindError{Value: entry.Kind}
	}
}

func openFailure(entry config.RepositoryEntry, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation(fmt.Sprintf("open %s repository", entry.Kind)).
		WithResource(entry.Location()).
		Wrap(err)

	switch {
	case errors.Is(err, gitrepo.ErrRevisionNotFound):
		ctx.WithIssue(issue.RevisionNotFoundId).
			WithSuggestion(fmt.Sprintf("Check that %q is a local branch, tag or commit", entry.Revision))
	case errors.Is(err, fs.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId)
	case errors.Is(err, repository.ErrNotFound):
		ctx.WithIssue(issue.RepositoryOpenFailedId).
			WithSuggestion("Check that the path exists")
	case entry.Kind == config.RepositoryKindZip && (errors.Is(err, repository.ErrIOFailure) || errors.Is(err, io.ErrUnexpectedEOF)):
		ctx.WithIssue(issue.ArchiveUnreadableId).
			WithSuggestion("Check that the file is a complete ZIP or JAR archive")
	default:
		ctx.WithIssue(issue.RepositoryOpenFailedId)
	}
	return ctx.BuildError()
}
