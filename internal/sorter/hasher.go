package sorter

import (
	"crypto/sha256"
	"io"
	"os"
)

// DefaultChunkSize is the read buffer used for hashing and copying.
const DefaultChunkSize = 64 * 1024 // 64 KB

// HashFile streams the file at path through sha256 in chunkSize reads and
// returns the digest and the number of bytes read.
func HashFile(path string, chunkSize int) (Digest, int64, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, 0, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	h := sha256.New()
	// Hide *os.File's WriterTo so reads use our buffer size.
	n, err := io.CopyBuffer(h, struct{ io.Reader }{f}, make([]byte, chunkOrDefault(chunkSize)))
	if err != nil {
		return d, n, &ReadError{Path: path, Err: err}
	}
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// copyHashed copies src into the already-open dst, hashing the bytes as they
// are read. dst is synced but not closed.
func copyHashed(src string, dst *os.File, chunkSize int) (Digest, int64, error) {
	var d Digest
	in, err := os.Open(src)
	if err != nil {
		return d, 0, &ReadError{Path: src, Err: err}
	}
	defer in.Close()

	h := sha256.New()
	buf := make([]byte, chunkOrDefault(chunkSize))
	var total int64
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return d, total, &WriteError{Path: dst.Name(), Err: werr}
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return d, total, &ReadError{Path: src, Err: rerr}
		}
	}
	if err := dst.Sync(); err != nil {
		return d, total, &WriteError{Path: dst.Name(), Err: err}
	}
	copy(d[:], h.Sum(nil))
	return d, total, nil
}

func chunkOrDefault(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}
	return n
}
