// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modresolve/modresolve/internal/testutil"
	"github.com/modresolve/modresolve/pkg/repository"
)

var testSignature = &object.Signature{
	Name:  "Test",
	Email: "test@example.com",
	When:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

// commitTree writes files into the worktree of repo and commits them.
func commitTree(t *testing.T, repo *git.Repository, dir string, files map[string]string) plumbing.Hash {
	t.Helper()
	testutil.WriteTree(t, dir, files)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	hash, err := wt.Commit("update", &git.CommitOptions{Author: testSignature})
	require.NoError(t, err)
	return hash
}

func newGitFixture(t *testing.T) (dir string, repo *git.Repository, first plumbing.Hash) {
	t.Helper()
	dir = t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first = commitTree(t, repo, dir, map[string]string{
		"pkg/mod.src":     "v1 module",
		"pkg/b/inner.src": "inner",
		"top.src":         "top",
	})
	_, err = repo.CreateTag("v1", first, nil)
	require.NoError(t, err)
	_, err = repo.CreateTag("v1-annotated", first, &git.CreateTagOptions{Tagger: testSignature, Message: "release"})
	require.NoError(t, err)

	commitTree(t, repo, dir, map[string]string{"pkg/mod.src": "v2 module"})
	return dir, repo, first
}

func openGit(t *testing.T, dir, rev string) *Repository {
	t.Helper()
	r, err := New(dir, rev, WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	t.Cleanup(testutil.DeferClose(t, r))
	return r
}

func readGit(t *testing.T, r *Repository, path repository.LogicalPath) string {
	t.Helper()
	rc, err := r.Open(context.Background(), path)
	require.NoError(t, err)
	defer testutil.DeferClose(t, rc)()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestNew_Revisions(t *testing.T) {
	t.Parallel()

	dir, _, first := newGitFixture(t)

	tests := []struct {
		name     string
		revision string
		want     string
	}{
		{name: "default is HEAD", revision: "", want: "v2 module"},
		{name: "HEAD", revision: "HEAD", want: "v2 module"},
		{name: "branch", revision: "master", want: "v2 module"},
		{name: "lightweight tag", revision: "v1", want: "v1 module"},
		{name: "annotated tag", revision: "v1-annotated", want: "v1 module"},
		{name: "commit hash", revision: first.String(), want: "v1 module"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := openGit(t, dir, tt.revision)
			assert.Equal(t, tt.want, readGit(t, r, repository.LogicalPath{"pkg", "mod.src"}))
		})
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	dir, _, _ := newGitFixture(t)

	_, err := New(dir, "no-such-ref", WithLogger(log.New(io.Discard)))
	require.ErrorIs(t, err, ErrRevisionNotFound)

	_, err = New(t.TempDir(), "", WithLogger(log.New(io.Discard)))
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestChildren(t *testing.T) {
	t.Parallel()

	dir, _, _ := newGitFixture(t)
	r := openGit(t, dir, "v1")
	ctx := context.Background()

	var got []repository.Child
	for child, err := range r.Children(ctx, repository.LogicalPath{"pkg"}) {
		require.NoError(t, err)
		got = append(got, child)
	}
	assert.Equal(t, []repository.Child{
		{Name: "b", Navigable: true},
		{Name: "mod.src"},
	}, got)

	for _, err := range r.Children(ctx, repository.LogicalPath{"top.src"}) {
		assert.ErrorIs(t, err, repository.ErrNotNavigable)
	}
	for _, err := range r.Children(ctx, repository.LogicalPath{"missing"}) {
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}

	_, err := r.Open(ctx, repository.LogicalPath{"pkg"})
	assert.ErrorIs(t, err, repository.ErrIsNavigable)
}

func TestRevisionIsPinned(t *testing.T) {
	t.Parallel()

	dir, repo, first := newGitFixture(t)
	r := openGit(t, dir, "v1")
	assert.Equal(t, first.String(), r.Commit())

	// Uncommitted and later committed changes never leak into a pinned revision.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.src"), []byte("dirty"), 0o644))
	commitTree(t, repo, dir, map[string]string{"new.src": "new"})

	assert.Equal(t, "top", readGit(t, r, repository.LogicalPath{"top.src"}))
	_, err := r.Open(context.Background(), repository.LogicalPath{"new.src"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClose(t *testing.T) {
	t.Parallel()

	dir, _, _ := newGitFixture(t)
	r, err := New(dir, "", WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Open(context.Background(), repository.LogicalPath{"top.src"})
	assert.ErrorIs(t, err, repository.ErrReleased)
}

func TestOpen_StreamsBlob(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("0123456789abcdef", 4096)
	dir := t.TempDir()
	testutil.InitGitRepo(t, dir, map[string]string{"big.src": content})
	r, err := New(dir, "", WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	ctx := context.Background()

	rc, err := r.Open(ctx, repository.LogicalPath{"big.src"})
	require.NoError(t, err)
	head := make([]byte, 16)
	_, err = io.ReadFull(rc, head)
	require.NoError(t, err)
	assert.Equal(t, content[:16], string(head))
	rest, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content[16:], string(rest))
	require.NoError(t, rc.Close())

	pending, err := r.Open(ctx, repository.LogicalPath{"big.src"})
	require.NoError(t, err)
	_, err = io.ReadFull(pending, head)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	_, err = pending.Read(head)
	assert.ErrorIs(t, err, repository.ErrReleased)
	_ = pending.Close()
}
