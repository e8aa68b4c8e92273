package sorter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// TestDirQueueNeverLosesItems pushes 5 000 items, pops all, and verifies the
// exact set is returned (compaction must not drop entries).
func TestDirQueueNeverLosesItems(t *testing.T) {
	const n = 5000
	q := newDirQueue()

	for i := 0; i < n; i++ {
		q.pending.Add(1)
		q.Push(fmt.Sprintf("dir%04d", i))
	}

	var got []string
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, item)
		q.Done()
	}

	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	sort.Strings(got)
	for i, v := range got {
		if want := fmt.Sprintf("dir%04d", i); v != want {
			t.Errorf("item %d: got %q, want %q", i, v, want)
		}
	}
}

// TestWalkFindsNestedFiles builds a three-level tree and verifies Walk
// returns every file with its bucket name filled in.
func TestWalkFindsNestedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":           "1",
		"x/b.JPG":         "2",
		"x/y/c":           "3",
		"x/y/z/d.tar.gz":  "4",
		"x/y/z/.hidden":   "5",
		"other/deep/e.md": "6",
	})
	want := map[string]string{
		"a.txt":           "txt",
		"x/b.JPG":         "jpg",
		"x/y/c":           NoExtensionBucket,
		"x/y/z/d.tar.gz":  "gz",
		"x/y/z/.hidden":   NoExtensionBucket,
		"other/deep/e.md": "md",
	}

	out := make(chan SourceFile, 100)
	Walk(context.Background(), root, nil, 4, out, noErrors(t))

	got := map[string]string{}
	for f := range out {
		rel, _ := filepath.Rel(root, f.Path)
		got[filepath.ToSlash(rel)] = f.Ext
		if f.Size != 1 {
			t.Errorf("%s: size %d, want 1", rel, f.Size)
		}
	}
	if len(got) != len(want) {
		t.Errorf("found %d files, want %d: %v", len(got), len(want), got)
	}
	for p, ext := range want {
		if got[p] != ext {
			t.Errorf("%s: bucket %q, want %q", p, got[p], ext)
		}
	}
}

// TestWalkExcludes verifies glob patterns and explicit paths prune files and
// whole subtrees.
func TestWalkExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":          "a",
		"skip.log":          "b",
		"node_modules/m.js": "c",
		"dist/txt/old.txt":  "d",
		"src/keep.go":       "e",
	})
	ex, err := NewExcluder(root, []string{"**/*.log", "node_modules"})
	if err != nil {
		t.Fatal(err)
	}
	ex.ExcludePath(filepath.Join(root, "dist"))

	out := make(chan SourceFile, 10)
	Walk(context.Background(), root, ex, 2, out, noErrors(t))

	got := map[string]bool{}
	for f := range out {
		rel, _ := filepath.Rel(root, f.Path)
		got[filepath.ToSlash(rel)] = true
	}
	if !got["keep.txt"] || !got["src/keep.go"] || len(got) != 2 {
		t.Errorf("unexpected walk result: %v", got)
	}
}

func TestNewExcluderRejectsBadPattern(t *testing.T) {
	if _, err := NewExcluder(t.TempDir(), []string{"[unclosed"}); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

// TestWalkSkipsSymlinks verifies symlinks to files and directories are not
// followed or emitted.
func TestWalkSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real/file.txt": "x"})
	if err := os.Symlink(filepath.Join(root, "real", "file.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	out := make(chan SourceFile, 10)
	Walk(context.Background(), root, nil, 2, out, noErrors(t))

	var got []string
	for f := range out {
		got = append(got, f.Path)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "real", "file.txt") {
		t.Errorf("got %v, want only real/file.txt", got)
	}
}

// TestWalkReportsUnreadableDir verifies an unreadable subtree is reported and
// the rest of the tree is still walked.
func TestWalkReportsUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{"ok/a.txt": "a", "locked/b.txt": "b"})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	var reported []string
	out := make(chan SourceFile, 10)
	Walk(context.Background(), root, nil, 2, out, func(path, stage, errMsg string) {
		reported = append(reported, path)
	})

	var got []string
	for f := range out {
		got = append(got, f.Path)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "ok", "a.txt") {
		t.Errorf("got %v, want only ok/a.txt", got)
	}
	if len(reported) != 1 || reported[0] != locked {
		t.Errorf("reported %v, want [%s]", reported, locked)
	}
}

// TestWalkCancellation verifies Walk returns cleanly after ctx is cancelled.
func TestWalkCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 200; i++ {
		_ = os.WriteFile(filepath.Join(root, fmt.Sprintf("f%d.txt", i)), []byte("data"), 0644)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan SourceFile, 8)

	done := make(chan struct{})
	go func() {
		Walk(ctx, root, nil, 2, out, noErrors(t))
		close(done)
	}()

	cancel()
	for range out {
	} // drain so walkers aren't blocked on sends

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Walk did not return after context cancel")
	}
}
