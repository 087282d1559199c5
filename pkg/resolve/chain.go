// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/modresolve/modresolve/pkg/pattern"
	"github.com/modresolve/modresolve/pkg/repository"
)

// Chain is an ordered list of repositories. Earlier repositories take
// precedence: a logical path found in one hides the same logical path in
// every repository after it.
type Chain struct {
	repos []repository.Repository
}

// NewChain creates a chain with repos in precedence order.
func NewChain(repos ...repository.Repository) *Chain {
	return &Chain{repos: slices.Clone(repos)}
}

// Repositories returns the members in precedence order.
func (c *Chain) Repositories() []repository.Repository {
	return slices.Clone(c.repos)
}

// Len returns the number of repositories in the chain.
func (c *Chain) Len() int { return len(c.repos) }

// Close closes every repository in the chain and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, repo := range c.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", repo.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// ResolveChain resolves p against each repository of chain in order and
// yields every logical path once, from the first repository that has it.
// The sequence ends at the first terminal error.
func (r *Resolver) ResolveChain(ctx context.Context, p pattern.Pattern, chain *Chain) iter.Seq2[*repository.ResolvedEntry, error] {
	return func(yield func(*repository.ResolvedEntry, error) bool) {
		seen := make(map[string]struct{})
		for _, repo := range chain.repos {
			for entry, err := range r.Resolve(ctx, p, repo) {
				if err != nil {
					yield(nil, err)
					return
				}
				key := entry.Path.Key()
				if _, dup := seen[key]; dup {
					r.logger.Debug("shadowed entry", "path", entry.Path.String(), "repo", repo.ID())
					continue
				}
				seen[key] = struct{}{}
				if !yield(entry, nil) {
					return
				}
			}
		}
	}
}

// ResolveChainParallel resolves p against every repository of chain
// concurrently, then merges the per-repository results in chain order so
// that precedence does not depend on which repository finishes first.
// When several repositories fail, the error of the earliest one is returned.
func (r *Resolver) ResolveChainParallel(ctx context.Context, p pattern.Pattern, chain *Chain) ([]*repository.ResolvedEntry, error) {
	results := make([][]*repository.ResolvedEntry, len(chain.repos))
	errs := make([]error, len(chain.repos))

	g, gctx := errgroup.WithContext(ctx)
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	for i, repo := range chain.repos {
		g.Go(func() error {
			entries, err := Collect(r.Resolve(gctx, p, repo))
			results[i], errs[i] = entries, err
			return err
		})
	}
	waitErr := g.Wait()

	if waitErr != nil {
		for _, err := range errs {
			// Repositories cancelled because a sibling failed are not the
			// cause of the failure.
			if err == nil || (errors.Is(err, context.Canceled) && ctx.Err() == nil) {
				continue
			}
			return nil, err
		}
		return nil, waitErr
	}

	return mergeOrdered(results), nil
}

// mergeOrdered flattens per-repository results in chain order, keeping the
// first entry for every logical path.
func mergeOrdered(results [][]*repository.ResolvedEntry) []*repository.ResolvedEntry {
	var merged []*repository.ResolvedEntry
	seen := make(map[string]struct{})
	for _, entries := range results {
		for _, entry := range entries {
			key := entry.Path.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, entry)
		}
	}
	return merged
}
