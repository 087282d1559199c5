// SPDX-License-Identifier: MPL-2.0

package ziprepo

import (
	"archive/zip"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/modresolve/modresolve/pkg/repository"
)

// index is the virtual hierarchy synthesized from an archive's central
// directory. It is immutable once built.
type index struct {
	// files maps a full entry name to its archive record.
	files map[string]*zip.File
	// dirs maps a directory name ("" for the root) to its sorted children.
	// Directories exist either as explicit "name/" entries or implicitly as
	// prefixes of file names.
	dirs map[string][]repository.Child
}

func buildIndex(entries []*zip.File, logger *log.Logger) *index {
	files := make(map[string]*zip.File, len(entries))
	children := map[string]map[string]bool{"": {}}

	addDir := func(dir string) {
		if _, ok := children[dir]; !ok {
			children[dir] = map[string]bool{}
		}
	}
	link := func(parent, name string, navigable bool) {
		addDir(parent)
		if navigable || !children[parent][name] {
			children[parent][name] = navigable
		}
	}

	for _, f := range entries {
		name := f.Name
		isDir := strings.HasSuffix(name, "/")
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			continue
		}
		parts := strings.Split(name, "/")
		if !addressable(parts) {
			logger.Debug("skipping unaddressable archive entry", "entry", f.Name)
			continue
		}

		for i := range parts[:len(parts)-1] {
			dir := strings.Join(parts[:i+1], "/")
			addDir(dir)
			link(strings.Join(parts[:i], "/"), parts[i], true)
		}

		parent := strings.Join(parts[:len(parts)-1], "/")
		last := parts[len(parts)-1]
		if isDir {
			addDir(name)
			link(parent, last, true)
			continue
		}
		if _, dup := files[name]; dup {
			logger.Warn("duplicate archive entry, keeping the first", "entry", name)
			continue
		}
		files[name] = f
		link(parent, last, false)
	}

	// A name used both as a file and as a directory prefix is navigable.
	for name := range files {
		if _, ok := children[name]; ok {
			logger.Warn("archive entry is shadowed by a directory of the same name", "entry", name)
			delete(files, name)
		}
	}

	dirs := make(map[string][]repository.Child, len(children))
	for dir, names := range children {
		list := make([]repository.Child, 0, len(names))
		for name, navigable := range names {
			list = append(list, repository.Child{Name: name, Navigable: navigable})
		}
		slices.SortFunc(list, func(a, b repository.Child) int {
			return strings.Compare(a.Name, b.Name)
		})
		dirs[dir] = list
	}
	return &index{files: files, dirs: dirs}
}

// addressable rejects names that a pattern could never reach or that would
// be ambiguous in the virtual hierarchy.
func addressable(parts []string) bool {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return false
		}
	}
	return true
}

func (ix *index) stat(name string) (repository.Child, bool) {
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	if _, ok := ix.dirs[name]; ok {
		return repository.Child{Name: base, Navigable: true}, true
	}
	if _, ok := ix.files[name]; ok {
		return repository.Child{Name: base}, true
	}
	return repository.Child{}, false
}
