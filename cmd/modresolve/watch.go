// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/modresolve/modresolve/internal/config"
	"github.com/modresolve/modresolve/internal/watch"
	"github.com/modresolve/modresolve/pkg/pattern"
	"github.com/modresolve/modresolve/pkg/repository/ziprepo"
)

// watchResolve resolves p once, then again after every change to the
// storage behind the repository chain, until ctx is cancelled. The chain is
// reopened for each run so archive indexes and git revisions are re-read.
func watchResolve(ctx context.Context, app *App, p pattern.Pattern, opts resolveOptions) error {
	cfg, logger, err := app.loadConfig(ctx)
	if err != nil {
		return app.fail(exitFailure, err)
	}
	entries, err := app.repositoryEntries(cfg, logger)
	if err != nil {
		return app.fail(exitFailure, err)
	}
	targets := watchTargets(entries, logger)

	// Failures are reported on stderr by resolveAndPrint; watching continues.
	if err := resolveAndPrint(ctx, app, p, opts); err != nil {
		logger.Debug("initial resolution failed", "error", err)
	}

	w, err := watch.New(watch.Config{
		Targets:  targets,
		Debounce: opts.debounce,
		Stdout:   app.stdout,
		Logger:   logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Info("change detected", "paths", len(changed), "first", changed[0])
			fmt.Fprintln(app.stdout)
			if err := resolveAndPrint(ctx, app, p, opts); err != nil {
				logger.Debug("resolution failed", "error", err)
			}
			return nil
		},
	})
	if err != nil {
		return app.fail(exitFailure, err)
	}

	fmt.Fprintln(app.stderr, VerboseStyle.Render(fmt.Sprintf("Watching %d repositories for changes (Ctrl+C to stop)", len(entries))))
	if err := w.Run(ctx); err != nil {
		return app.fail(exitFailure, err)
	}
	return nil
}

// watchTargets maps repository entries to the paths whose changes affect
// them. Entries whose storage cannot be located are skipped with a warning.
func watchTargets(entries []config.RepositoryEntry, logger *log.Logger) []watch.Target {
	targets := make([]watch.Target, 0, len(entries))
	for _, entry := range entries {
		switch entry.Kind {
		case config.RepositoryKindDir:
			targets = append(targets, watch.Target{Path: entry.Path, Recursive: true})
		case config.RepositoryKindZip:
			path, err := ziprepo.PathFromURI(entry.URI)
			if err != nil {
				logger.Warn("not watching archive", "uri", entry.URI, "error", err)
				continue
			}
			targets = append(targets, watch.Target{Path: path})
		case config.RepositoryKindGit:
			// HEAD and packed-refs live in the git dir, loose refs below refs/.
			gitDir := filepath.Join(entry.Path, ".git")
			if _, err := os.Stat(gitDir); err != nil {
				gitDir = entry.Path
			}
			targets = append(targets, watch.Target{Path: gitDir})
			if refs := filepath.Join(gitDir, "refs"); isDir(refs) {
				targets = append(targets, watch.Target{Path: refs, Recursive: true})
			}
		}
	}
	return targets
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
