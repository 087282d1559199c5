// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree bound to app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modresolve",
		Short: "Resolve package source paths across repositories",
		Long: TitleStyle.Render("modresolve") + SubtitleStyle.Render(" - Resolve package source paths across repositories") + `

modresolve matches path patterns against an ordered chain of repositories:
directories on disk, zip or jar archives, and git revisions. The first
repository holding a path wins.

` + SubtitleStyle.Render("Examples:") + `
  modresolve resolve pkg '*' mod.src      List matching entries
  modresolve cat pkg mod.src              Print the first match
  modresolve --repo zip:deps.jar resolve '**.bal'
  modresolve repos                        Show the repository chain
  modresolve config show                  Show current configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/modresolve/config.cue)")
	rootCmd.PersistentFlags().StringArrayVar(&app.repoSpecs, "repo", nil, "repository to search, in order: dir:PATH, zip:URI or git:PATH@REV (replaces configured repositories)")

	rootCmd.AddCommand(
		newResolveCommand(app),
		newCatCommand(app),
		newReposCommand(app),
		newConfigCommand(app),
		newCompletionCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		os.Exit(exitFailure)
	}

	// fang overrides rootCmd.Version, so the version goes through fang.WithVersion.
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitFailure)
	}
}
