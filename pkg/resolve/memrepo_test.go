// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"io"
	"iter"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/modresolve/modresolve/pkg/repository"
)

// memRepo is an in-memory repository for resolver tests. Directories are
// implied by file paths; dirs lists extra (possibly empty) directories.
type memRepo struct {
	id    string
	files map[string]string
	dirs  []string
	// links maps a directory path to the path it aliases, producing cycles.
	links map[string]string
	// failAt makes List fail with an I/O error at this location.
	failAt string
	lists  atomic.Int64
	closed atomic.Bool
}

func newMemRepo(id string, files map[string]string) *memRepo {
	return &memRepo{id: id, files: files}
}

func (m *memRepo) ID() string { return m.id }

func (m *memRepo) Children(ctx context.Context, path repository.LogicalPath) iter.Seq2[repository.Child, error] {
	return repository.ChildrenOf(ctx, m.Converter(), path)
}

func (m *memRepo) Open(ctx context.Context, path repository.LogicalPath) (io.ReadCloser, error) {
	return repository.OpenPath(ctx, m.Converter(), path)
}

func (m *memRepo) Converter() repository.Converter { return (*memConverter)(m) }

func (m *memRepo) Close() error {
	m.closed.Store(true)
	return nil
}

type memConverter memRepo

func (c *memConverter) Start() repository.Location { return "" }

func (c *memConverter) Join(parent repository.Location, name string) repository.Location {
	if parent == "" {
		return repository.Location(name)
	}
	return parent + "/" + repository.Location(name)
}

func (c *memConverter) Describe(loc repository.Location) string { return c.id + ":" + string(loc) }

// canonical resolves directory links in loc, one prefix at a time.
func (c *memConverter) canonical(loc string) string {
	if loc == "" {
		return ""
	}
	parts := strings.Split(loc, "/")
	cur := ""
	for _, p := range parts {
		if cur == "" {
			cur = p
		} else {
			cur += "/" + p
		}
		if target, ok := c.links[cur]; ok {
			cur = target
		}
	}
	return cur
}

func (c *memConverter) isDir(path string) bool {
	if path == "" || slices.Contains(c.dirs, path) {
		return true
	}
	for p := range c.files {
		if strings.HasPrefix(p, path+"/") {
			return true
		}
	}
	for _, d := range c.dirs {
		if strings.HasPrefix(d, path+"/") {
			return true
		}
	}
	return false
}

func (c *memConverter) Stat(_ context.Context, loc repository.Location) (repository.Child, error) {
	if c.closed.Load() {
		return repository.Child{}, repository.ErrReleased
	}
	name := string(loc)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	path := c.canonical(string(loc))
	if _, ok := c.files[path]; ok {
		return repository.Child{Name: name}, nil
	}
	if c.isDir(path) {
		return repository.Child{Name: name, Navigable: true, Key: "dir:" + path}, nil
	}
	return repository.Child{}, repository.NotFound(c.Describe(loc))
}

func (c *memConverter) List(ctx context.Context, loc repository.Location) iter.Seq2[repository.Child, error] {
	return func(yield func(repository.Child, error) bool) {
		c.lists.Add(1)
		self, err := c.Stat(ctx, loc)
		if err != nil {
			yield(repository.Child{}, err)
			return
		}
		if !self.Navigable {
			yield(repository.Child{}, repository.NotNavigable(c.Describe(loc)))
			return
		}
		if c.failAt != "" && string(loc) == c.failAt {
			yield(repository.Child{}, repository.IOFailure("list", c.Describe(loc), io.ErrUnexpectedEOF))
			return
		}

		path := c.canonical(string(loc))
		prefix := ""
		if path != "" {
			prefix = path + "/"
		}
		names := map[string]bool{}
		collect := func(p string) {
			if !strings.HasPrefix(p, prefix) {
				return
			}
			name, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), "/")
			if name != "" {
				names[name] = true
			}
		}
		for p := range c.files {
			collect(p)
		}
		for _, d := range c.dirs {
			collect(d)
		}
		for l := range c.links {
			collect(l)
		}
		sorted := make([]string, 0, len(names))
		for n := range names {
			sorted = append(sorted, n)
		}
		slices.Sort(sorted)

		for _, n := range sorted {
			child, err := c.Stat(ctx, c.Join(loc, n))
			if !yield(child, err) || err != nil {
				return
			}
		}
	}
}

func (c *memConverter) Open(ctx context.Context, loc repository.Location) (io.ReadCloser, error) {
	self, err := c.Stat(ctx, loc)
	if err != nil {
		return nil, err
	}
	if self.Navigable {
		return nil, repository.IsNavigable(c.Describe(loc))
	}
	return io.NopCloser(strings.NewReader(c.files[c.canonical(string(loc))])), nil
}
