// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"

	"github.com/modresolve/modresolve/pkg/pattern"
)

// parsePatternArgs builds a pattern from command-line arguments. Each argument
// is one or more slash-separated segments:
//
//	name    literal child
//	*       any single child
//	**      rest wildcard
//	**.ext  rest wildcard whose last name ends in ".ext"
func parsePatternArgs(args []string) (pattern.Pattern, error) {
	var segments []pattern.Segment
	for _, arg := range args {
		for part := range strings.SplitSeq(arg, "/") {
			segments = append(segments, parseSegment(part))
		}
	}
	return pattern.New(segments...)
}

func parseSegment(s string) pattern.Segment {
	switch {
	case s == "*":
		return pattern.Wildcard()
	case s == "**":
		return pattern.Rest()
	case strings.HasPrefix(s, "**"):
		return pattern.RestWithSuffix(strings.TrimPrefix(s, "**"))
	default:
		// Empty and relative names are rejected by pattern.New.
		return pattern.Literal(s)
	}
}
