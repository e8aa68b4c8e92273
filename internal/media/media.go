// Package media classifies files by extension for reporting.
package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// FileType is the coarse kind of a file, used to break down copied bytes.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeArchive  FileType = "archive"
	FileTypeOther    FileType = "other"
)

var kindByExt = map[string]FileType{
	".jpg": FileTypeImage, ".jpeg": FileTypeImage, ".png": FileTypeImage, ".gif": FileTypeImage,
	".bmp": FileTypeImage, ".webp": FileTypeImage, ".tiff": FileTypeImage, ".tif": FileTypeImage,
	".heic": FileTypeImage, ".heif": FileTypeImage, ".avif": FileTypeImage, ".svg": FileTypeImage,

	".mp4": FileTypeVideo, ".mov": FileTypeVideo, ".avi": FileTypeVideo, ".mkv": FileTypeVideo,
	".wmv": FileTypeVideo, ".flv": FileTypeVideo, ".webm": FileTypeVideo, ".m4v": FileTypeVideo,

	".mp3": FileTypeAudio, ".wav": FileTypeAudio, ".flac": FileTypeAudio, ".ogg": FileTypeAudio,
	".m4a": FileTypeAudio, ".aac": FileTypeAudio,

	".pdf": FileTypeDocument, ".doc": FileTypeDocument, ".docx": FileTypeDocument, ".xls": FileTypeDocument,
	".xlsx": FileTypeDocument, ".ppt": FileTypeDocument, ".pptx": FileTypeDocument, ".txt": FileTypeDocument,
	".odt": FileTypeDocument, ".ods": FileTypeDocument, ".odp": FileTypeDocument, ".md": FileTypeDocument,
	".csv": FileTypeDocument, ".rtf": FileTypeDocument,

	".zip": FileTypeArchive, ".tar": FileTypeArchive, ".gz": FileTypeArchive, ".tgz": FileTypeArchive,
	".bz2": FileTypeArchive, ".xz": FileTypeArchive, ".7z": FileTypeArchive, ".rar": FileTypeArchive,
	".zst": FileTypeArchive,
}

// Detect returns the FileType for the given file path based on extension.
// Extensions missing from the table fall back to the MIME type registry.
func Detect(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return FileTypeOther
	}
	if t, ok := kindByExt[ext]; ok {
		return t
	}
	major, _, _ := strings.Cut(mime.TypeByExtension(ext), "/")
	switch major {
	case "image":
		return FileTypeImage
	case "video":
		return FileTypeVideo
	case "audio":
		return FileTypeAudio
	case "text":
		return FileTypeDocument
	default:
		return FileTypeOther
	}
}
