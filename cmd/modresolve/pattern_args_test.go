// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"testing"

	"github.com/modresolve/modresolve/pkg/pattern"
)

func TestParsePatternArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want pattern.Pattern
	}{
		{
			name: "separate arguments",
			args: []string{"pkg", "*", "mod.src"},
			want: pattern.MustNew(pattern.Literal("pkg"), pattern.Wildcard(), pattern.Literal("mod.src")),
		},
		{
			name: "slash separated",
			args: []string{"pkg/*/mod.src"},
			want: pattern.MustNew(pattern.Literal("pkg"), pattern.Wildcard(), pattern.Literal("mod.src")),
		},
		{
			name: "mixed",
			args: []string{"very", "lib/**"},
			want: pattern.MustNew(pattern.Literal("very"), pattern.Literal("lib"), pattern.Rest()),
		},
		{
			name: "rest with suffix",
			args: []string{"very", "**.bal"},
			want: pattern.MustNew(pattern.Literal("very"), pattern.RestWithSuffix(".bal")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parsePatternArgs(tt.args)
			if err != nil {
				t.Fatalf("parsePatternArgs(%q) returned error: %v", tt.args, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parsePatternArgs(%q) = %s, want %s", tt.args, got, tt.want)
			}
		})
	}
}

func TestParsePatternArgs_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"rest not last":    {"**", "x"},
		"empty segment":    {"a//b"},
		"trailing slash":   {"a/"},
		"no arguments":     nil,
		"parent traversal": {"a/../b"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := parsePatternArgs(args); !errors.Is(err, pattern.ErrInvalidPattern) {
				t.Errorf("parsePatternArgs(%q) error = %v, want ErrInvalidPattern", args, err)
			}
		})
	}
}
