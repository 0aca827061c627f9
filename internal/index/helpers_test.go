package index

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"qms/internal/slogutil"
)

// newProject returns an empty project root with its tool directory.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".qms"), 0755); err != nil {
		t.Fatal(err)
	}
	return root
}

// writeDoc writes a document with the common header followed by body.
func writeDoc(t *testing.T, root, dir, id, body string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(dir), id+".qms.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	doc := fmt.Sprintf("id: %s\ntitle: %s\nstatus: draft\nauthor: Dana Ruiz\ncreated: 2024-03-01T10:00:00Z\n%s",
		id, "Title of "+id, body)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openCache(t *testing.T, root string, opts Options) *Cache {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	c, err := Open(root, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
