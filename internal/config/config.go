// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/modresolve/modresolve/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "modresolve"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. MODRESOLVE_LOG_LEVEL.
	EnvPrefix = "MODRESOLVE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the per-user configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (or ~/.config) elsewhere, each with AppName appended.
//
//nolint:revive // config.ConfigDir reads better at call sites than config.Dir
func ConfigDir() (string, error) {
	if dir, ok := overriddenConfigDir(); ok {
		return dir, nil
	}
	base, err := userConfigBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

func userConfigBase() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData, nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming"), nil
	}
	if runtime.GOOS != "darwin" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support"), nil
	}
	return filepath.Join(home, ".config"), nil
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. It returns the path of the file that was loaded,
// or "" when only defaults apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("repositories", defaults.Repositories)
	v.SetDefault("resolve.max_depth", defaults.Resolve.MaxDepth)
	v.SetDefault("resolve.parallel", defaults.Resolve.Parallel)
	v.SetDefault("log_level", defaults.LogLevel.String())

	// Scalar settings can be overridden from the environment.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'modresolve config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", loadFailure(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", loadFailure(cuePath, err)
			}
			resolvedPath = cuePath
		}
		// If no config file found, use defaults (no error)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Repositories == nil {
		cfg.Repositories = []RepositoryEntry{}
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(resolvedPath).
			WithSuggestion("zip repositories take a uri; dir and git repositories take a path").
			WithSuggestion("revision applies to git entries and ignore_file to dir entries only").
			Wrap(errs[0]).
			BuildError()
	}

	// Constraints that CUE cannot express.
	if err := validateRepositories(cfg.Repositories); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(resolvedPath).
			WithSuggestion("Remove the duplicate entry; the first occurrence already takes precedence").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func loadFailure(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'modresolve config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper merges the file at path into v once it has been checked
// against #Config. The file is merged as a map, not a Config, so defaults and
// environment overrides survive for keys the file leaves out.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := checkFileSize(data, path); err != nil {
		return err
	}

	settings, err := decodeAgainstSchema(data, path)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

// decodeAgainstSchema unifies a CUE document with #Config. Incomplete values
// are allowed; Viper supplies the rest.
func decodeAgainstSchema(data []byte, path string) (map[string]any, error) {
	cctx := cuecontext.New()
	def := cctx.CompileString(configSchema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("embedded config schema is broken: %w", err)
	}

	doc := cctx.CompileBytes(data, cue.Filename(path))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err, path)
	}
	merged := def.Unify(doc)
	if err := merged.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, path)
	}

	var settings map[string]any
	if err := merged.Decode(&settings); err != nil {
		return nil, formatCUEError(err, path)
	}
	return settings, nil
}

// validateRepositories rejects entries that name the same repository twice.
// Paths are compared after filepath.Clean; git entries also compare revision.
func validateRepositories(entries []RepositoryEntry) error {
	seen := make(map[string]int, len(entries))
	for i, entry := range entries {
		var key string
		switch entry.Kind {
		case RepositoryKindZip:
			key = "zip:" + entry.URI
		case RepositoryKindGit:
			rev := entry.Revision
			if rev == "" {
				rev = "HEAD"
			}
			key = "git:" + filepath.Clean(entry.Path) + "@" + rev
		default:
			key = entry.Kind.String() + ":" + filepath.Clean(entry.Path)
		}
		if first, exists := seen[key]; exists {
			return fmt.Errorf("repositories[%d]: duplicate %s repository %q (same as repositories[%d])",
				i, entry.Kind, entry.Location(), first)
		}
		seen[key] = i
	}
	return nil
}

// fileExists reports whether path names something other than a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig creates a default config file if it doesn't exist and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// Save writes the configuration to the default config file.
func Save(cfg *Config) error {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return err
	}
	return SaveFile(cfg, cfgPath)
}

// SaveFile writes the configuration to path, creating its directory.
func SaveFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modresolve configuration file\n")
	sb.WriteString("// Repositories are searched in order; the first one holding a path wins.\n\n")

	if len(cfg.Repositories) > 0 {
		sb.WriteString("repositories: [\n")
		for _, entry := range cfg.Repositories {
			fields := []string{fmt.Sprintf("kind: %q", entry.Kind)}
			if entry.Path != "" {
				fields = append(fields, fmt.Sprintf("path: %q", entry.Path))
			}
			if entry.URI != "" {
				fields = append(fields, fmt.Sprintf("uri: %q", entry.URI))
			}
			if entry.Revision != "" {
				fields = append(fields, fmt.Sprintf("revision: %q", entry.Revision))
			}
			if entry.IgnoreFile != "" {
				fields = append(fields, fmt.Sprintf("ignore_file: %q", entry.IgnoreFile))
			}
			sb.WriteString("\t{" + strings.Join(fields, ", ") + "},\n")
		}
		sb.WriteString("]\n\n")
	} else {
		sb.WriteString("repositories: []\n\n")
	}

	sb.WriteString("resolve: {\n")
	fmt.Fprintf(&sb, "\tmax_depth: %d\n", cfg.Resolve.MaxDepth)
	fmt.Fprintf(&sb, "\tparallel:  %v\n", cfg.Resolve.Parallel)
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	return sb.String()
}
