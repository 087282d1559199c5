// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// ZipEntry is one record written by WriteZip. A Name ending in "/" creates
// an explicit directory entry and Content is ignored.
type ZipEntry struct {
	Name    string
	Content []byte
}

// WriteTree creates files under root. Keys are slash-separated relative
// paths; parent directories are created as needed.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		MustMkdirAll(t, filepath.Dir(path), 0o755)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// WriteZip writes an archive at path containing entries in the given order.
// Entry names are stored verbatim, including characters such as '#' and
// spaces.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("failed to create archive entry %s: %v", e.Name, err)
		}
		if len(e.Content) == 0 {
			continue
		}
		if _, err := w.Write(e.Content); err != nil {
			t.Fatalf("failed to write archive entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish archive %s: %v", path, err)
	}
	MustClose(t, f)
}
