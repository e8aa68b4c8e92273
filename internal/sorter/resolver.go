package sorter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	fragmentLen  = 8 // hex chars of the digest appended on a name clash
	fragmentStep = 4
)

// Disposition is the action taken (or attempted) for one source file.
type Disposition int

const (
	Copy Disposition = iota
	SkipDuplicate
	RenameAndCopy
	Failed
)

func (d Disposition) String() string {
	switch d {
	case Copy:
		return "copied"
	case SkipDuplicate:
		return "skipped"
	case RenameAndCopy:
		return "renamed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Decision is the placement chosen for a file inside its bucket.
type Decision struct {
	Kind Disposition
	Name string // destination name; for SkipDuplicate, the entry already holding the content
}

// resolve decides the placement of a file called name with the given size
// and digest against the bucket's current contents. Callers hold b.mu.
//
//   - name is free: Copy(name)
//   - name holds the same content: SkipDuplicate
//   - name holds other content: RenameAndCopy(stem_<frag>.ext), where frag
//     starts at fragmentLen hex chars and grows until the name is free or
//     already holds this content.
func (b *bucket) resolve(name string, size int64, digest Digest) (Decision, error) {
	exists, same, err := b.holds(name, size, digest)
	if err != nil {
		return Decision{}, err
	}
	if !exists {
		return Decision{Kind: Copy, Name: name}, nil
	}
	if same {
		return Decision{Kind: SkipDuplicate, Name: name}, nil
	}

	full := len(digest.String())
	for n := fragmentLen; n <= full; n += fragmentStep {
		candidate := disambiguatedName(name, digest.Fragment(n))
		exists, same, err := b.holds(candidate, size, digest)
		if err != nil {
			return Decision{}, err
		}
		if !exists {
			return Decision{Kind: RenameAndCopy, Name: candidate}, nil
		}
		if same {
			return Decision{Kind: SkipDuplicate, Name: candidate}, nil
		}
	}
	return Decision{}, ErrNameCollisionExhausted
}

// holds reports whether the bucket has an entry called name and whether that
// entry is a regular file with the given content. Anything that is not a
// regular file counts as different content.
func (b *bucket) holds(name string, size int64, digest Digest) (exists, same bool, err error) {
	path := filepath.Join(b.dir, name)
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, &ReadError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() || info.Size() != size {
		return true, false, nil
	}

	if k, ok := b.known[name]; ok && k.size == info.Size() && k.mtime.Equal(info.ModTime()) {
		return true, k.digest == digest, nil
	}

	d, _, err := HashFile(path, b.chunkSize)
	if err != nil {
		return true, false, err
	}
	b.known[name] = knownEntry{size: info.Size(), mtime: info.ModTime(), digest: d}
	return true, d == digest, nil
}
