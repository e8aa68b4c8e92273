package sorter

import (
	"encoding/hex"
	"strings"
)

// NoExtensionBucket holds files whose names carry no extension.
const NoExtensionBucket = "no_extension"

// SourceFile is a regular file emitted by the walker.
type SourceFile struct {
	Path string
	Name string
	Ext  string // bucket name: lower-cased extension without the dot, or NoExtensionBucket
	Size int64
}

// newSourceFile builds a SourceFile for a path whose base name is name.
func newSourceFile(path, name string, size int64) SourceFile {
	return SourceFile{Path: path, Name: name, Ext: BucketName(name), Size: size}
}

// SplitName splits a file name into stem and extension (with the dot).
// A dot at the start or end of the name does not start an extension, so
// ".bashrc" and "notes." have none.
func SplitName(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}

// BucketName returns the bucket directory name for a file name.
func BucketName(name string) string {
	_, ext := SplitName(name)
	if ext == "" {
		return NoExtensionBucket
	}
	return strings.ToLower(ext[1:])
}

// Digest is the sha256 of a file's full byte stream.
type Digest [32]byte

// String returns the lower-case hex form of d.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Fragment returns the first n hex characters of d, capped at the full length.
func (d Digest) Fragment(n int) string {
	s := d.String()
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// disambiguatedName inserts "_<frag>" between stem and extension.
func disambiguatedName(name, frag string) string {
	stem, ext := SplitName(name)
	return stem + "_" + frag + ext
}
