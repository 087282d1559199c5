// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RepositoryKindDir serves a directory tree.
	RepositoryKindDir RepositoryKind = "dir"
	// RepositoryKindZip serves a ZIP or JAR archive.
	RepositoryKindZip RepositoryKind = "zip"
	// RepositoryKindGit serves one revision of a local git repository.
	RepositoryKindGit RepositoryKind = "git"

	// LogLevelDebug shows traversal diagnostics.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn shows warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError shows errors only.
	LogLevelError LogLevel = "error"

	// DefaultMaxDepth matches the resolver's built-in depth limit.
	DefaultMaxDepth = 64
	// maxMaxDepth is the largest accepted resolve.max_depth.
	maxMaxDepth = 4096
)

var (
	// ErrInvalidRepositoryKind is returned when a RepositoryKind value is not recognized.
	ErrInvalidRepositoryKind = errors.New("invalid repository kind")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidRepositoryEntry is the sentinel error wrapped by InvalidRepositoryEntryError.
	ErrInvalidRepositoryEntry = errors.New("invalid repository entry")
	// ErrInvalidResolveConfig is the sentinel error wrapped by InvalidResolveConfigError.
	ErrInvalidResolveConfig = errors.New("invalid resolve config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RepositoryKind selects the backend of a configured repository.
	RepositoryKind string

	// InvalidRepositoryKindError is returned when a RepositoryKind value is not recognized.
	// It wraps ErrInvalidRepositoryKind for errors.Is() compatibility.
	InvalidRepositoryKindError struct {
		Value RepositoryKind
	}

	// LogLevel is the minimum level of diagnostic output.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidRepositoryEntryError is returned when a RepositoryEntry has invalid
	// or missing fields for its kind.
	InvalidRepositoryEntryError struct {
		Index       int
		FieldErrors []error
	}

	// InvalidResolveConfigError is returned when a ResolveConfig has invalid fields.
	InvalidResolveConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// RepositoryEntry configures one member of the default repository chain.
	RepositoryEntry struct {
		// Kind selects the backend.
		Kind RepositoryKind `json:"kind" mapstructure:"kind"`
		// Path is the directory root (dir) or git repository (git).
		Path string `json:"path,omitempty" mapstructure:"path"`
		// URI is the archive location (zip).
		URI string `json:"uri,omitempty" mapstructure:"uri"`
		// Revision is the git branch, tag or commit (git).
		Revision string `json:"revision,omitempty" mapstructure:"revision"`
		// IgnoreFile is a gitignore-style rules file (dir).
		IgnoreFile string `json:"ignore_file,omitempty" mapstructure:"ignore_file"`
	}

	// ResolveConfig tunes pattern resolution.
	ResolveConfig struct {
		// MaxDepth bounds traversal depth below a repository root.
		MaxDepth int `json:"max_depth" mapstructure:"max_depth"`
		// Parallel resolves chain members concurrently.
		Parallel bool `json:"parallel" mapstructure:"parallel"`
	}

	// Config holds the application configuration.
	Config struct {
		// Repositories is the default chain, highest precedence first.
		Repositories []RepositoryEntry `json:"repositories" mapstructure:"repositories"`
		// Resolve tunes pattern resolution.
		Resolve ResolveConfig `json:"resolve" mapstructure:"resolve"`
		// LogLevel is the minimum level of diagnostic output.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Repositories: []RepositoryEntry{},
		Resolve: ResolveConfig{
			MaxDepth: DefaultMaxDepth,
			Parallel: false,
		},
		LogLevel: LogLevelInfo,
	}
}

// String returns the string representation of the RepositoryKind.
func (k RepositoryKind) String() string { return string(k) }

// IsValid returns whether the RepositoryKind is one of the defined kinds,
// and a list of validation errors if it is not.
func (k RepositoryKind) IsValid() (bool, []error) {
	switch k {
	case RepositoryKindDir, RepositoryKindZip, RepositoryKindGit:
		return true, nil
	default:
		return false, []error{&InvalidRepositoryKindError{Value: k}}
	}
}

// Error implements the error interface for InvalidRepositoryKindError.
func (e *InvalidRepositoryKindError) Error() string {
	return fmt.Sprintf("invalid repository kind %q (valid: dir, zip, git)", e.Value)
}

// Unwrap returns ErrInvalidRepositoryKind for errors.Is() compatibility.
func (e *InvalidRepositoryKindError) Unwrap() error { return ErrInvalidRepositoryKind }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Location returns the field that identifies the repository for its kind.
func (e RepositoryEntry) Location() string {
	if e.Kind == RepositoryKindZip {
		return e.URI
	}
	return e.Path
}

// IsValid returns whether the entry carries the fields its kind requires
// and none that belong to another kind.
func (e RepositoryEntry) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := e.Kind.IsValid(); !valid {
		return false, []error{&InvalidRepositoryEntryError{Index: -1, FieldErrors: fieldErrs}}
	}

	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	switch e.Kind {
	case RepositoryKindZip:
		if blank(e.URI) {
			errs = append(errs, errors.New("zip repository requires uri"))
		}
		if e.Path != "" {
			errs = append(errs, errors.New("zip repository does not accept path; use uri"))
		}
	default:
		if blank(e.Path) {
			errs = append(errs, fmt.Errorf("%s repository requires path", e.Kind))
		}
		if e.URI != "" {
			errs = append(errs, fmt.Errorf("%s repository does not accept uri", e.Kind))
		}
	}
	if e.Revision != "" && e.Kind != RepositoryKindGit {
		errs = append(errs, fmt.Errorf("revision applies to git repositories only, not %s", e.Kind))
	}
	if e.IgnoreFile != "" && e.Kind != RepositoryKindDir {
		errs = append(errs, fmt.Errorf("ignore_file applies to dir repositories only, not %s", e.Kind))
	}

	if len(errs) > 0 {
		return false, []error{&InvalidRepositoryEntryError{Index: -1, FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRepositoryEntryError.
func (e *InvalidRepositoryEntryError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	if e.Index >= 0 {
		return fmt.Sprintf("repositories[%d]: %s", e.Index, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("invalid repository entry: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidRepositoryEntry for errors.Is() compatibility.
func (e *InvalidRepositoryEntryError) Unwrap() error { return ErrInvalidRepositoryEntry }

// IsValid returns whether the ResolveConfig has valid fields.
func (c ResolveConfig) IsValid() (bool, []error) {
	if c.MaxDepth < 1 || c.MaxDepth > maxMaxDepth {
		return false, []error{&InvalidResolveConfigError{FieldErrors: []error{
			fmt.Errorf("max_depth %d out of range [1, %d]", c.MaxDepth, maxMaxDepth),
		}}}
	}
	return true, nil
}

// Error implements the error interface for InvalidResolveConfigError.
func (e *InvalidResolveConfigError) Error() string {
	return fmt.Sprintf("invalid resolve config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidResolveConfig for errors.Is() compatibility.
func (e *InvalidResolveConfigError) Unwrap() error { return ErrInvalidResolveConfig }

// IsValid returns whether the Config has valid fields. Repository entry
// errors carry their index.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for i, entry := range c.Repositories {
		if valid, fieldErrs := entry.IsValid(); !valid {
			for _, fe := range fieldErrs {
				var entryErr *InvalidRepositoryEntryError
				if errors.As(fe, &entryErr) {
					entryErr.Index = i
				}
				errs = append(errs, fe)
			}
		}
	}
	if valid, fieldErrs := c.Resolve.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
