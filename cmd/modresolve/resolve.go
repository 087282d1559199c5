// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"
	"github.com/spf13/cobra"

	"github.com/modresolve/modresolve/pkg/pattern"
	"github.com/modresolve/modresolve/pkg/repository"
	"github.com/modresolve/modresolve/pkg/resolve"
)

// languageSniffBytes bounds how much of an entry is read for --lang.
const languageSniffBytes = 16 << 10

type resolveOptions struct {
	parallel bool
	maxDepth int
	jobs     int
	lang     bool
	watch    bool
	debounce time.Duration
}

func newResolveCommand(app *App) *cobra.Command {
	var opts resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve <segment>...",
		Short: "List the entries a pattern resolves to",
		Long: `List the entries a pattern resolves to, earliest repository first.

Each argument is one or more slash-separated segments: a literal name,
'*' for any single child, '**' for any depth below, or '**.ext' for any
depth below where the final name ends in '.ext'. A '**' segment must be last.`,
		Example: `  modresolve resolve pkg mod.src
  modresolve resolve 'pkg/*/mod.src'
  modresolve resolve --repo dir:. --repo zip:deps.jar very '**.bal' --lang
  modresolve resolve --watch pkg '*' mod.src`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), app, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "resolve repositories concurrently (default from config)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum traversal depth (default from config)")
	cmd.Flags().IntVar(&opts.jobs, "jobs", 0, "with --parallel, the most repositories resolved at once (0 for no limit)")
	cmd.Flags().BoolVar(&opts.lang, "lang", false, "show the detected language of each entry")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "resolve again whenever a repository changes")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "with --watch, quiet period before resolving again (default 500ms)")

	return cmd
}

func runResolve(ctx context.Context, app *App, args []string, opts resolveOptions) error {
	p, err := parsePatternArgs(args)
	if err != nil {
		return app.fail(exitFailure, err)
	}
	if opts.watch {
		return watchResolve(ctx, app, p, opts)
	}
	return resolveAndPrint(ctx, app, p, opts)
}

// resolveAndPrint opens the repository chain and prints every entry p
// resolves to. Failures are reported on stderr and returned as *ExitError.
func resolveAndPrint(ctx context.Context, app *App, p pattern.Pattern, opts resolveOptions) error {
	sess, err := app.openSession(ctx)
	if err != nil {
		return app.fail(exitFailure, err)
	}
	defer sess.close()

	r := sess.resolver(opts.maxDepth, opts.jobs)
	parallel := opts.parallel || sess.cfg.Resolve.Parallel

	count := 0
	emit := func(entry *repository.ResolvedEntry) {
		count++
		fields := []string{PathStyle.Render(entry.Path.String()), RepoStyle.Render(entry.Repository)}
		if opts.lang {
			fields = append(fields, VerboseStyle.Render(detectLanguage(entry)))
		}
		fmt.Fprintln(app.stdout, strings.Join(fields, "  "))
	}

	if parallel {
		entries, err := r.ResolveChainParallel(ctx, p, sess.chain)
		if err != nil {
			return app.fail(exitFailure, err)
		}
		for _, entry := range entries {
			emit(entry)
		}
	} else {
		for entry, err := range r.ResolveChain(ctx, p, sess.chain) {
			if err != nil {
				return app.fail(exitFailure, err)
			}
			emit(entry)
		}
	}

	if count == 0 {
		return app.fail(exitNoMatch, noMatch(p, sess.chain))
	}
	sess.logger.Debug("resolved", "pattern", p.String(), "entries", count, "parallel", parallel)
	return nil
}

// resolver builds a Resolver from the configuration, with a positive
// maxDepth taking precedence.
func (s *session) resolver(maxDepth, jobs int) *resolve.Resolver {
	if maxDepth <= 0 {
		maxDepth = s.cfg.Resolve.MaxDepth
	}
	return resolve.NewResolver(
		resolve.WithMaxDepth(maxDepth),
		resolve.WithParallelism(jobs),
		resolve.WithLogger(s.logger.WithPrefix("resolve")),
	)
}

func noMatch(p pattern.Pattern, chain *resolve.Chain) error {
	return fmt.Errorf("%w for %s in %d repositories", resolve.ErrNoMatch, p, chain.Len())
}

// detectLanguage classifies an entry by its file name and leading content.
func detectLanguage(entry *repository.ResolvedEntry) string {
	name := path.Base(entry.Path.String())

	content, err := readPrefix(entry, languageSniffBytes)
	if err != nil {
		content = nil
	}
	if lang := enry.GetLanguage(name, content); lang != "" {
		return lang
	}
	return "-"
}

func readPrefix(entry *repository.ResolvedEntry, n int64) (data []byte, err error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return io.ReadAll(io.LimitReader(rc, n))
}
