// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/modresolve/modresolve/pkg/resolve"
)

func newCatCommand(app *App) *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "cat <segment>...",
		Short: "Print the content of the first entry a pattern resolves to",
		Long: `Print the content of the first entry a pattern resolves to.

Repositories are searched in chain order and the search stops at the first
match, so an entry in an earlier repository shadows the same path further on.`,
		Example: `  modresolve cat pkg mod.src
  modresolve cat --repo zip:deps.jar 'META-INF/**.MF'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCat(cmd.Context(), app, args, maxDepth)
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum traversal depth (default from config)")

	return cmd
}

func runCat(ctx context.Context, app *App, args []string, maxDepth int) (err error) {
	p, err := parsePatternArgs(args)
	if err != nil {
		return app.fail(exitFailure, err)
	}

	sess, err := app.openSession(ctx)
	if err != nil {
		return app.fail(exitFailure, err)
	}
	defer sess.close()

	entry, err := resolve.First(sess.resolver(maxDepth, 0).ResolveChain(ctx, p, sess.chain))
	if errors.Is(err, resolve.ErrNoMatch) {
		return app.fail(exitNoMatch, noMatch(p, sess.chain))
	}
	if err != nil {
		return app.fail(exitFailure, err)
	}
	sess.logger.Debug("printing entry", "entry", entry.String())

	rc, err := entry.OpenContext(ctx)
	if err != nil {
		return app.fail(exitFailure, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = app.fail(exitFailure, closeErr)
		}
	}()

	if _, err := io.Copy(app.stdout, rc); err != nil {
		return app.fail(exitFailure, err)
	}
	return nil
}
