package sorter

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/sorter/internal/media"
)

func TestWriteSummary(t *testing.T) {
	log := NewRunLog("/src", "/dst")
	log.Append(Entry{Source: "/src/a.jpg", Bucket: "jpg", Name: "a.jpg", Disposition: Copy, Size: 2048, Kind: media.FileTypeImage})
	log.Append(Entry{Source: "/src/b/a.jpg", Bucket: "jpg", Name: "a_0123abcd.jpg", Disposition: RenameAndCopy, Size: 1024, Kind: media.FileTypeImage})
	log.Append(Entry{Source: "/src/c/a.jpg", Bucket: "jpg", Name: "a.jpg", Disposition: SkipDuplicate, Size: 2048, Kind: media.FileTypeImage})
	log.Append(Entry{Source: "/src/z.txt", Bucket: "txt", Disposition: Failed,
		Err: &ReadError{Path: "/src/z.txt", Err: errors.New("permission denied")}})
	log.Warn("/src/locked", "walk", "permission denied")
	log.FinishedAt = log.StartedAt.Add(1500 * time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, log))
	out := buf.String()

	assert.Contains(t, out, "Sorted /src -> /dst (completed in 1.5s)")
	assert.Regexp(t, `copied\s*:?\s*1\b`, out)
	assert.Regexp(t, `renamed\s*:?\s*1\b`, out)
	assert.Regexp(t, `skipped \(duplicate\)\s*:?\s*1\b`, out)
	assert.Regexp(t, `failed\s*:?\s*1\b`, out)
	assert.Contains(t, out, "3.0 KiB")
	assert.Contains(t, out, "Failures (1):")
	assert.Contains(t, out, "/src/z.txt")
	assert.Contains(t, out, "read error")
	assert.Contains(t, out, "Warnings (1):")
}

func TestSummaryFailuresSorted(t *testing.T) {
	log := NewRunLog("/src", "/dst")
	log.Append(Entry{Source: "/src/b", Disposition: Failed, Err: ErrNameCollisionExhausted})
	log.Append(Entry{Source: "/src/a", Disposition: Failed, Err: &WriteError{Path: "/dst/x", Err: errors.New("disk full")}})

	sum := log.Summary()
	require.Len(t, sum.Failures, 2)
	assert.Equal(t, "/src/a", sum.Failures[0].Source)
	assert.Equal(t, "write error", sum.Failures[0].Reason)
	assert.Equal(t, "name collision", sum.Failures[1].Reason)
}
