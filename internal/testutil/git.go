// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// gitSignature is a fixed author so fixture commit hashes are stable.
var gitSignature = &object.Signature{
	Name:  "Fixture",
	Email: "fixture@example.com",
	When:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

// InitGitRepo creates a git repository in dir whose single commit holds files
// and returns the commit hash.
func InitGitRepo(t testing.TB, dir string, files map[string]string) string {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init git repository %s: %v", dir, err)
	}
	WriteTree(t, dir, files)

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to open worktree: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("failed to stage fixture files: %v", err)
	}
	hash, err := wt.Commit("fixture", &git.CommitOptions{Author: gitSignature})
	if err != nil {
		t.Fatalf("failed to commit fixture: %v", err)
	}
	return hash.String()
}
