// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modresolve/modresolve/internal/config"
	"github.com/modresolve/modresolve/internal/issue"
)

// settableKeys lists the keys accepted by `modresolve config set`.
var settableKeys = []string{"log_level", "resolve.max_depth", "resolve.parallel"}

// newConfigCommand creates the `modresolve config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modresolve configuration",
		Long: `Manage modresolve configuration.

Configuration is stored in:
  - Linux: ~/.config/modresolve/config.cue
  - macOS: ~/Library/Application Support/modresolve/config.cue
  - Windows: %APPDATA%\modresolve\config.cue

Scalar settings can be overridden with MODRESOLVE_* environment variables,
e.g. MODRESOLVE_LOG_LEVEL=debug or MODRESOLVE_RESOLVE_MAX_DEPTH=16.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Set a configuration value",
		Long:      "Set a configuration value. Valid keys: " + strings.Join(settableKeys, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: settableKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), app.loadOptions())
			if err != nil {
				return app.fail(exitFailure, err)
			}

			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.Config.Load(ctx, app.loadOptions())
	if err != nil {
		if !app.verbose {
			rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
			fmt.Fprint(app.stderr, rendered)
		}
		return app.fail(exitFailure, err)
	}
	cfgPath, err := app.Config.Locate(ctx, app.loadOptions())
	if err != nil {
		return app.fail(exitFailure, err)
	}

	out := app.stdout
	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)

	if cfgPath != "" {
		fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("Config file"), PathStyle.Render(cfgPath))
	} else {
		fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s:\n", KeyStyle.Render("repositories"))
	if len(cfg.Repositories) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none configured, the current directory is used)"))
	}
	for i, entry := range cfg.Repositories {
		line := fmt.Sprintf("  %d. %s %s", i+1, RepoStyle.Render(entry.Kind.String()), PathStyle.Render(entry.Location()))
		if entry.Revision != "" {
			line += " @ " + SuccessStyle.Render(entry.Revision)
		}
		if entry.IgnoreFile != "" {
			line += " (ignore: " + entry.IgnoreFile + ")"
		}
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", KeyStyle.Render("resolve"))
	fmt.Fprintf(out, "  max_depth: %s\n", SuccessStyle.Render(strconv.Itoa(cfg.Resolve.MaxDepth)))
	fmt.Fprintf(out, "  parallel: %s\n", SuccessStyle.Render(strconv.FormatBool(cfg.Resolve.Parallel)))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s: %s\n", KeyStyle.Render("log_level"), SuccessStyle.Render(cfg.LogLevel.String()))

	return nil
}

func initConfig(app *App) error {
	cfgPath, err := config.CreateDefaultConfig()
	if err != nil {
		return app.fail(exitFailure, fmt.Errorf("failed to create config: %w", err))
	}

	fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), PathStyle.Render(cfgPath))
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return app.fail(exitFailure, err)
	}
	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		return app.fail(exitFailure, err)
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", cfgPath)
	if app.configPath != "" {
		fmt.Fprintf(app.stdout, "Active config file (--config): %s\n", app.configPath)
	}
	return nil
}

// setConfigValue updates one key and writes the result back to the file it
// was loaded from, or to the default location.
func setConfigValue(ctx context.Context, app *App, key, value string) error {
	cfg, err := app.Config.Load(ctx, app.loadOptions())
	if err != nil {
		return app.fail(exitFailure, err)
	}

	if err := applySetting(cfg, key, value); err != nil {
		return app.fail(exitFailure, issue.NewErrorContext().
			WithOperation("set configuration value").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(key).
			WithSuggestion("Valid keys: "+strings.Join(settableKeys, ", ")).
			Wrap(err).
			BuildError())
	}
	if valid, errs := cfg.IsValid(); !valid {
		return app.fail(exitFailure, errs[0])
	}

	cfgPath, err := app.Config.Locate(ctx, app.loadOptions())
	if err != nil {
		return app.fail(exitFailure, err)
	}
	if cfgPath == "" {
		if cfgPath, err = config.ConfigFilePath(); err != nil {
			return app.fail(exitFailure, err)
		}
	}
	if err := config.SaveFile(cfg, cfgPath); err != nil {
		return app.fail(exitFailure, fmt.Errorf("failed to save config: %w", err))
	}

	fmt.Fprintf(app.stdout, "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

func applySetting(cfg *config.Config, key, value string) error {
	switch key {
	case "log_level":
		level := config.LogLevel(value)
		if valid, errs := level.IsValid(); !valid {
			return errs[0]
		}
		cfg.LogLevel = level

	case "resolve.max_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid resolve.max_depth %q: must be an integer", value)
		}
		cfg.Resolve.MaxDepth = n

	case "resolve.parallel":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid resolve.parallel %q: must be true or false", value)
		}
		cfg.Resolve.Parallel = b

	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
