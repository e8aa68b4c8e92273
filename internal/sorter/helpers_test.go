package sorter

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTree creates files under root; keys are slash-separated relative paths.
func writeTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			tb.Fatalf("mkdir %q: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			tb.Fatalf("write %q: %v", p, err)
		}
	}
}

// snapshot maps every file under root (slash-separated relative path) to the
// hex sha256 of its content.
func snapshot(tb testing.TB, root string) map[string]string {
	tb.Helper()
	got := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		sum := sha256.Sum256(data)
		got[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		tb.Fatalf("snapshot %q: %v", root, err)
	}
	return got
}

// hexOf returns the hex sha256 of s.
func hexOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// digestOf returns the Digest of s.
func digestOf(s string) Digest {
	return Digest(sha256.Sum256([]byte(s)))
}

// hasTempFiles reports whether any publish temp file is left under root.
func hasTempFiles(tb testing.TB, root string) bool {
	tb.Helper()
	for rel := range snapshot(tb, root) {
		name := filepath.Base(rel)
		if strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, ".tmp") {
			return true
		}
	}
	return false
}

// noErrors is an ErrorReporter that fails the test if invoked.
func noErrors(tb testing.TB) ErrorReporter {
	return func(path, stage, errMsg string) {
		tb.Errorf("unexpected walk error: path=%q stage=%q err=%q", path, stage, errMsg)
	}
}
