package sorter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const tempPrefix = ".sorter-"

var errSourceChanged = errors.New("source changed while copying")

// knownEntry memoizes the digest of a bucket entry; it is trusted only while
// the entry's size and mtime are unchanged.
type knownEntry struct {
	size   int64
	mtime  time.Time
	digest Digest
}

// bucket is one extension directory under the target root. mu serialises
// inspect, decide and write for every task placing into the bucket.
type bucket struct {
	name      string
	dir       string
	chunkSize int

	once sync.Once
	err  error

	mu    sync.Mutex
	known map[string]knownEntry
}

// bucketSet lazily creates buckets, at most once per name.
type bucketSet struct {
	root      string
	chunkSize int

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newBucketSet(root string, chunkSize int) *bucketSet {
	return &bucketSet{root: root, chunkSize: chunkSize, buckets: make(map[string]*bucket)}
}

// get returns the bucket called name, creating its directory on first use.
// A creation failure is sticky: every task for that bucket sees it.
func (s *bucketSet) get(name string) (*bucket, error) {
	s.mu.Lock()
	b, ok := s.buckets[name]
	if !ok {
		b = &bucket{
			name:      name,
			dir:       filepath.Join(s.root, name),
			chunkSize: s.chunkSize,
			known:     make(map[string]knownEntry),
		}
		s.buckets[name] = b
	}
	s.mu.Unlock()

	b.once.Do(func() {
		if err := os.MkdirAll(b.dir, 0o755); err != nil {
			b.err = &WriteError{Path: b.dir, Err: err}
		}
	})
	return b, b.err
}

// place resolves where the file belongs and publishes it. The bucket lock is
// held from inspection until the destination is renamed into place, so no
// other task can observe the name as free in between.
func (b *bucket) place(src SourceFile, size int64, digest Digest) (Decision, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dec, err := b.resolve(src.Name, size, digest)
	if err != nil || dec.Kind == SkipDuplicate {
		return dec, 0, err
	}
	n, err := b.publish(src.Path, dec.Name, digest)
	return dec, n, err
}

// publish copies src into a temp file inside the bucket, checks the bytes
// still hash to want, and renames the temp file to name.
func (b *bucket) publish(src, name string, want Digest) (int64, error) {
	tmp := filepath.Join(b.dir, tempPrefix+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, &WriteError{Path: tmp, Err: err}
	}

	got, n, err := copyHashed(src, f, b.chunkSize)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &WriteError{Path: tmp, Err: cerr}
	}
	if err == nil && got != want {
		err = &ReadError{Path: src, Err: errSourceChanged}
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}

	final := filepath.Join(b.dir, name)
	if err := linkOrRename(tmp, final); err != nil {
		os.Remove(tmp)
		return 0, &WriteError{Path: final, Err: err}
	}
	if info, err := os.Stat(final); err == nil {
		b.known[name] = knownEntry{size: info.Size(), mtime: info.ModTime(), digest: want}
	}
	return n, nil
}

// linkOrRename publishes tmp as final without clobbering an entry that
// appeared behind our back. Filesystems without hard links fall back to
// rename.
func linkOrRename(tmp, final string) error {
	err := os.Link(tmp, final)
	switch {
	case err == nil:
		os.Remove(tmp)
		return nil
	case errors.Is(err, fs.ErrExist):
		return err
	default:
		return os.Rename(tmp, final)
	}
}
