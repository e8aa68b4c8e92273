package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"/a/IMG_0001.JPG", FileTypeImage},
		{"clip.mkv", FileTypeVideo},
		{"song.flac", FileTypeAudio},
		{"notes.txt", FileTypeDocument},
		{"backup.tar.gz", FileTypeArchive},
		{"Makefile", FileTypeOther},
		{"data.unknownext", FileTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.path))
		})
	}
}
