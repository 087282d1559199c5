// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"modresolve": Execute,
	})
}

// TestScripts runs the end-to-end scenarios under testdata/script against the
// real binary entry point.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: filepath.Join("testdata", "script"),
		Setup: func(env *testscript.Env) error {
			// Keep user configuration out of the scripts.
			env.Setenv("HOME", env.WorkDir)
			env.Setenv("XDG_CONFIG_HOME", filepath.Join(env.WorkDir, ".config"))
			env.Setenv("NO_COLOR", "1")
			return nil
		},
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"zipdir":  cmdZipDir,
			"gitinit": cmdGitInit,
		},
		ContinueOnError: true,
	})
}

// cmdZipDir implements "zipdir ARCHIVE DIR": it stores every regular file
// under DIR in ARCHIVE with slash-separated names relative to DIR.
func cmdZipDir(ts *testscript.TestScript, neg bool, args []string) {
	if neg || len(args) != 2 {
		ts.Fatalf("usage: zipdir archive dir")
	}
	out, err := os.Create(ts.MkAbs(args[0]))
	ts.Check(err)
	zw := zip.NewWriter(out)

	root := ts.MkAbs(args[1])
	ts.Check(filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}))

	ts.Check(zw.Close())
	ts.Check(out.Close())
}

// cmdGitInit implements "gitinit DIR": it turns DIR into a repository with a
// single commit of its current contents.
func cmdGitInit(ts *testscript.TestScript, neg bool, args []string) {
	if neg || len(args) != 1 {
		ts.Fatalf("usage: gitinit dir")
	}
	repo, err := git.PlainInit(ts.MkAbs(args[0]), false)
	ts.Check(err)
	wt, err := repo.Worktree()
	ts.Check(err)
	ts.Check(wt.AddWithOptions(&git.AddOptions{All: true}))
	_, err = wt.Commit("scripted fixture", &git.CommitOptions{Author: &object.Signature{
		Name:  "Script",
		Email: "script@example.com",
		When:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}})
	ts.Check(err)
}
