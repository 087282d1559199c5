// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"fmt"
	"io"
	"iter"
)

// ResolvedEntry is one concrete match of a pattern in a repository.
type ResolvedEntry struct {
	// Path is the logical path; it has one name per pattern segment.
	Path LogicalPath
	// Location is the backend-native address of the entry.
	Location Location
	// Repository is the ID of the repository that produced the entry.
	Repository string

	conv Converter
}

// NewResolvedEntry binds a match to the converter that can open it.
func NewResolvedEntry(repoID string, conv Converter, path LogicalPath, loc Location) *ResolvedEntry {
	return &ResolvedEntry{Path: path, Location: loc, Repository: repoID, conv: conv}
}

// Open returns a reader over the entry content. After the originating
// repository is closed this fails with ErrReleased.
func (e *ResolvedEntry) Open() (io.ReadCloser, error) {
	return e.OpenContext(context.Background())
}

// OpenContext is Open with an explicit context.
func (e *ResolvedEntry) OpenContext(ctx context.Context) (io.ReadCloser, error) {
	if e.conv == nil {
		return nil, fmt.Errorf("entry %s has no backing repository", e.Path)
	}
	return e.conv.Open(ctx, e.Location)
}

// ReadAll reads the whole entry content.
func (e *ResolvedEntry) ReadAll() (content []byte, err error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return io.ReadAll(rc)
}

// String renders the entry as "<repository>!<logical path>".
func (e *ResolvedEntry) String() string {
	return e.Repository + "!" + e.Path.String()
}

// ChildrenOf implements Repository.Children on top of a Converter.
func ChildrenOf(ctx context.Context, conv Converter, path LogicalPath) iter.Seq2[Child, error] {
	return func(yield func(Child, error) bool) {
		loc, err := Locate(ctx, conv, path)
		if err != nil {
			yield(Child{}, err)
			return
		}
		for child, err := range conv.List(ctx, loc) {
			if !yield(child, err) || err != nil {
				return
			}
		}
	}
}

// OpenPath implements Repository.Open on top of a Converter.
func OpenPath(ctx context.Context, conv Converter, path LogicalPath) (io.ReadCloser, error) {
	loc, err := Locate(ctx, conv, path)
	if err != nil {
		return nil, err
	}
	return conv.Open(ctx, loc)
}
