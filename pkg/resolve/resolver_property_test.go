// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/modresolve/modresolve/pkg/pattern"
	"github.com/modresolve/modresolve/pkg/repository"
)

// genTree produces sets of three-level file paths over a small alphabet, so
// that generated trees share prefixes often.
func genTree() gopter.Gen {
	name := gen.OneConstOf("a", "b", "c", "d")
	return gen.SliceOf(gen.SliceOfN(3, name)).Map(func(paths [][]string) map[string]string {
		files := make(map[string]string, len(paths))
		for _, p := range paths {
			key := strings.Join(p, "/")
			files[key] = "content of " + key
		}
		return files
	})
}

func resolvePaths(p pattern.Pattern, files map[string]string) ([]repository.LogicalPath, error) {
	entries, err := Collect(testResolver().Resolve(context.Background(), p, newMemRepo("prop", files)))
	if err != nil {
		return nil, err
	}
	out := make([]repository.LogicalPath, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out, nil
}

func TestResolve_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rest := pattern.MustNew(pattern.Rest())
	wildcards := pattern.MustNew(pattern.Wildcard(), pattern.Wildcard(), pattern.Wildcard())
	mixed := pattern.MustNew(pattern.Wildcard(), pattern.Rest())

	properties.Property("logical paths have one name per segment", prop.ForAll(
		func(files map[string]string) bool {
			for _, p := range []pattern.Pattern{rest, wildcards, mixed} {
				got, err := resolvePaths(p, files)
				if err != nil || len(got) != len(files) {
					return false
				}
				for _, lp := range got {
					if len(lp) != p.Len() {
						return false
					}
				}
			}
			return true
		},
		genTree(),
	))

	properties.Property("resolution is deterministic", prop.ForAll(
		func(files map[string]string) bool {
			first, err1 := resolvePaths(mixed, files)
			second, err2 := resolvePaths(mixed, files)
			return err1 == nil && err2 == nil && slices.EqualFunc(first, second, func(a, b repository.LogicalPath) bool {
				return a.Key() == b.Key()
			})
		},
		genTree(),
	))

	properties.Property("a literal path matches exactly its own file", prop.ForAll(
		func(files map[string]string) bool {
			for path, content := range files {
				segments, err := pattern.Path(path)
				if err != nil {
					return false
				}
				entries, err := Collect(testResolver().Resolve(context.Background(), pattern.MustNew(segments...), newMemRepo("prop", files)))
				if err != nil || len(entries) != 1 {
					return false
				}
				data, err := entries[0].ReadAll()
				if err != nil || string(data) != content {
					return false
				}
			}
			return true
		},
		genTree(),
	))

	properties.Property("a literal path outside the tree matches nothing", prop.ForAll(
		func(files map[string]string) bool {
			got, err := resolvePaths(pattern.MustNew(pattern.Literal("a"), pattern.Literal("b"), pattern.Literal("zz")), files)
			return err == nil && len(got) == 0
		},
		genTree(),
	))

	properties.TestingRun(t)
}
