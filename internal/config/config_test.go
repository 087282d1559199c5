// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/modresolve/modresolve/internal/issue"
	"github.com/modresolve/modresolve/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	testutil.MustMkdirAll(t, dir, 0o755)
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Repositories) != 0 {
		t.Errorf("expected no default repositories, got %v", cfg.Repositories)
	}
	if cfg.Resolve.MaxDepth != DefaultMaxDepth {
		t.Errorf("expected default max depth %d, got %d", DefaultMaxDepth, cfg.Resolve.MaxDepth)
	}
	if cfg.Resolve.Parallel {
		t.Error("expected parallel resolution to be off by default")
	}
	if cfg.LogLevel != LogLevelInfo {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup applies to Linux only")
	}

	testXDGPath := "/tmp/test-xdg-config"
	restoreXDG := testutil.MustSetenv(t, "XDG_CONFIG_HOME", testXDGPath)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if expected := filepath.Join(testXDGPath, AppName); dir != expected {
		t.Errorf("ConfigDir() = %s, want %s", dir, expected)
	}

	restoreXDG()
	home := t.TempDir()
	defer testutil.SetHomeDir(t, home)()
	restoreXDG = testutil.MustSetenv(t, "XDG_CONFIG_HOME", "")
	defer restoreXDG()

	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if expected := filepath.Join(home, ".config", AppName); dir != expected {
		t.Errorf("ConfigDir() = %s, want %s", dir, expected)
	}
}

func TestConfigDir_Override(t *testing.T) {
	SetConfigDirOverride("/override/dir")
	defer Reset()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if dir != "/override/dir" {
		t.Errorf("ConfigDir() = %s, want /override/dir", dir)
	}

	path, err := ConfigFilePath()
	if err != nil {
		t.Fatalf("ConfigFilePath() returned error: %v", err)
	}
	if expected := filepath.Join("/override/dir", "config.cue"); path != expected {
		t.Errorf("ConfigFilePath() = %s, want %s", path, expected)
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("loadWithOptions() returned error: %v", err)
	}
	if path != "" {
		t.Errorf("expected no resolved path, got %q", path)
	}
	if cfg.Resolve.MaxDepth != DefaultMaxDepth || cfg.LogLevel != LogLevelInfo {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Repositories == nil {
		t.Error("expected an empty, non-nil repository list")
	}
}

func TestLoad_ConfigDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
repositories: [
	{kind: "dir", path: "/src/project", ignore_file: ".modignore"},
	{kind: "zip", uri: "file:///deps/lib.jar"},
	{kind: "git", path: "/src/vendor", revision: "v1.2.0"},
]
resolve: max_depth: 12
`)

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() returned error: %v", err)
	}
	if path != cfgPath {
		t.Errorf("resolved path = %q, want %q", path, cfgPath)
	}

	want := []RepositoryEntry{
		{Kind: RepositoryKindDir, Path: "/src/project", IgnoreFile: ".modignore"},
		{Kind: RepositoryKindZip, URI: "file:///deps/lib.jar"},
		{Kind: RepositoryKindGit, Path: "/src/vendor", Revision: "v1.2.0"},
	}
	if len(cfg.Repositories) != len(want) {
		t.Fatalf("expected %d repositories, got %d: %+v", len(want), len(cfg.Repositories), cfg.Repositories)
	}
	for i := range want {
		if cfg.Repositories[i] != want[i] {
			t.Errorf("repositories[%d] = %+v, want %+v", i, cfg.Repositories[i], want[i])
		}
	}
	if cfg.Resolve.MaxDepth != 12 {
		t.Errorf("max_depth = %d, want 12", cfg.Resolve.MaxDepth)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Resolve.Parallel {
		t.Error("parallel should keep its default")
	}
	if cfg.LogLevel != LogLevelInfo {
		t.Errorf("log_level = %s, want default info", cfg.LogLevel)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `log_level: "warn"`)
	defer testutil.MustSetenv(t, "MODRESOLVE_LOG_LEVEL", "debug")()
	defer testutil.MustSetenv(t, "MODRESOLVE_RESOLVE_PARALLEL", "true")()

	cfg, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() returned error: %v", err)
	}
	if cfg.LogLevel != LogLevelDebug {
		t.Errorf("log_level = %s, want debug from environment", cfg.LogLevel)
	}
	if !cfg.Resolve.Parallel {
		t.Error("resolve.parallel should be enabled from environment")
	}
}

func TestLoad_CustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "custom-config.cue")
	if err := os.WriteFile(customPath, []byte(`resolve: {parallel: true}`), 0o644); err != nil {
		t.Fatalf("failed to write custom config: %v", err)
	}

	// A config in the config dir must be ignored when a file path is given.
	dir := t.TempDir()
	writeConfig(t, dir, `log_level: "error"`)

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigFilePath: customPath, ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() returned error: %v", err)
	}
	if path != customPath {
		t.Errorf("resolved path = %q, want %q", path, customPath)
	}
	if !cfg.Resolve.Parallel {
		t.Error("expected parallel from custom config")
	}
	if cfg.LogLevel != LogLevelInfo {
		t.Errorf("log_level = %s, want default info", cfg.LogLevel)
	}
}

func TestLoad_CustomPath_NotFound_ReturnsError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.cue")

	_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigFilePath: missing})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *issue.ActionableError, got %T", err)
	}
	if ae.Resource != missing {
		t.Errorf("resource = %q, want %q", ae.Resource, missing)
	}
	if !ae.HasSuggestions() {
		t.Error("expected suggestions")
	}
}

func TestLoad_ActionableErrorFormat(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `log_level: 123`)

	_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "load configuration") {
		t.Errorf("error should contain operation, got: %s", errStr)
	}
	if !strings.Contains(errStr, cfgPath) {
		t.Errorf("error should contain resource path, got: %s", errStr)
	}
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should name the offending field, got: %s", errStr)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "zip without uri",
			content: `repositories: [{kind: "zip", path: "/deps.jar"}]`,
			wantErr: "zip repository requires uri",
		},
		{
			name:    "duplicate directory",
			content: `repositories: [{kind: "dir", path: "/src"}, {kind: "dir", path: "/src/./"}]`,
			wantErr: "duplicate dir repository",
		},
		{
			name:    "invalid syntax",
			content: `repositories: [`,
			wantErr: "load configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := loadWithOptions(ctx, LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "// "+strings.Repeat("x", maxConfigFileSize))

	_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	cfg := &Config{
		Repositories: []RepositoryEntry{
			{Kind: RepositoryKindDir, Path: `C:\src "quoted"`, IgnoreFile: ".modignore"},
			{Kind: RepositoryKindZip, URI: "file:///deps/a%20b.jar"},
			{Kind: RepositoryKindGit, Path: "/repo", Revision: "main"},
		},
		Resolve:  ResolveConfig{MaxDepth: 7, Parallel: true},
		LogLevel: LogLevelWarn,
	}

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(cfg))

	loaded, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated CUE did not load: %v", err)
	}
	if len(loaded.Repositories) != len(cfg.Repositories) {
		t.Fatalf("expected %d repositories, got %d", len(cfg.Repositories), len(loaded.Repositories))
	}
	for i := range cfg.Repositories {
		if loaded.Repositories[i] != cfg.Repositories[i] {
			t.Errorf("repositories[%d] = %+v, want %+v", i, loaded.Repositories[i], cfg.Repositories[i])
		}
	}
	if loaded.Resolve != cfg.Resolve {
		t.Errorf("resolve = %+v, want %+v", loaded.Resolve, cfg.Resolve)
	}
	if loaded.LogLevel != cfg.LogLevel {
		t.Errorf("log_level = %s, want %s", loaded.LogLevel, cfg.LogLevel)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), AppName)
	SetConfigDirOverride(dir)
	defer Reset()

	path, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.Contains(string(data), "max_depth: 64") {
		t.Errorf("unexpected default config:\n%s", data)
	}

	// An existing file is left alone.
	if err := os.WriteFile(path, []byte(`log_level: "error"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateDefaultConfig(); err != nil {
		t.Fatalf("second CreateDefaultConfig() returned error: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != `log_level: "error"` {
		t.Errorf("existing config was overwritten:\n%s", data)
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), AppName)
	SetConfigDirOverride(dir)
	defer Reset()

	cfg := DefaultConfig()
	cfg.Repositories = append(cfg.Repositories, RepositoryEntry{Kind: RepositoryKindDir, Path: "/src"})
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(loaded.Repositories) != 1 || loaded.Repositories[0].Path != "/src" {
		t.Errorf("unexpected repositories after save: %+v", loaded.Repositories)
	}
}

func TestSaveFile_CustomPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "custom.cue")
	cfg := DefaultConfig()
	cfg.LogLevel = LogLevelWarn
	if err := SaveFile(cfg, path); err != nil {
		t.Fatalf("SaveFile() returned error: %v", err)
	}

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.LogLevel != LogLevelWarn {
		t.Errorf("LogLevel = %q, want %q", loaded.LogLevel, LogLevelWarn)
	}
}

func TestFormatCUEPath(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":                         nil,
		"log_level":                {"log_level"},
		"repositories[0].kind":     {"repositories", "0", "kind"},
		"resolve.max_depth":        {"resolve", "max_depth"},
		"repositories[12][3].path": {"repositories", "12", "3", "path"},
	}
	for want, path := range tests {
		if got := formatCUEPath(path); got != want {
			t.Errorf("formatCUEPath(%v) = %q, want %q", path, got, want)
		}
	}
}
