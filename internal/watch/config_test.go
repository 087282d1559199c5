// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        Config
		wantErrs   int
		wantSubstr string
	}{
		{
			name: "single directory",
			cfg:  Config{Targets: []Target{{Path: "/src", Recursive: true}}},
		},
		{
			name: "mixed targets",
			cfg:  Config{Targets: []Target{{Path: "/src"}, {Path: "/deps/lib.jar"}}},
		},
		{
			name:       "no targets",
			cfg:        Config{},
			wantErrs:   1,
			wantSubstr: "no targets",
		},
		{
			name:       "blank path",
			cfg:        Config{Targets: []Target{{Path: "/src"}, {Path: "  "}}},
			wantErrs:   1,
			wantSubstr: "targets[1]",
		},
		{
			name:     "every blank path reported",
			cfg:      Config{Targets: []Target{{Path: ""}, {Path: ""}}},
			wantErrs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErrs == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var cfgErr *InvalidConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *InvalidConfigError", err)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Error("error does not wrap ErrInvalidConfig")
			}
			if len(cfgErr.FieldErrors) != tt.wantErrs {
				t.Errorf("got %d field errors, want %d: %v", len(cfgErr.FieldErrors), tt.wantErrs, cfgErr.FieldErrors)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error %q does not contain %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(Config{}) error = %v, want ErrInvalidConfig", err)
	}
}

func TestNew_MissingTarget(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Targets: []Target{{Path: t.TempDir() + "/missing"}}})
	if err == nil || !strings.Contains(err.Error(), "stat") {
		t.Errorf("New() error = %v, want stat failure", err)
	}
}
