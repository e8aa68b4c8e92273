// Package sorter copies a source tree into per-extension buckets under a
// target directory, skipping content that is already there and renaming
// files whose names clash with different content.
package sorter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eargollo/sorter/internal/media"
)

// Config holds run tuning parameters.
type Config struct {
	Workers   int      // admission gate size: files hashed/copied at once
	Walkers   int      // directory reader goroutines
	ChunkSize int      // read buffer for hashing and copying
	Exclude   []string // doublestar globs relative to the source root
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   32,
		Walkers:   4,
		ChunkSize: DefaultChunkSize,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.Walkers < 1 {
		c.Walkers = d.Walkers
	}
	if c.ChunkSize < 1 {
		c.ChunkSize = d.ChunkSize
	}
}

// Sorter runs sort passes with a fixed configuration. It holds no per-run
// state and is safe for concurrent use.
type Sorter struct {
	cfg     Config
	metrics *Metrics
}

// New creates a Sorter. metrics may be nil.
func New(cfg Config, metrics *Metrics) *Sorter {
	cfg.applyDefaults()
	return &Sorter{cfg: cfg, metrics: metrics}
}

// Run validates the arguments, then sorts source into target. It is Prepare
// followed by Execute.
func (s *Sorter) Run(ctx context.Context, source, target string, progress *Progress) (*RunLog, error) {
	log, err := s.Prepare(source, target)
	if err != nil {
		return nil, err
	}
	return log, s.Execute(ctx, log, progress)
}

// Prepare checks that source is a readable directory, creates target with
// its parents, and returns an empty RunLog for the pair. Argument problems
// are *ArgumentError.
func (s *Sorter) Prepare(source, target string) (*RunLog, error) {
	if source == "" {
		return nil, &ArgumentError{Arg: "source-dir", Msg: "required"}
	}
	src, err := filepath.Abs(source)
	if err != nil {
		return nil, &ArgumentError{Arg: "source-dir", Msg: err.Error()}
	}
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ArgumentError{Arg: "source-dir", Msg: fmt.Sprintf("%q does not exist", source)}
		}
		return nil, &ArgumentError{Arg: "source-dir", Msg: err.Error()}
	}
	if !info.IsDir() {
		return nil, &ArgumentError{Arg: "source-dir", Msg: fmt.Sprintf("%q is not a directory", source)}
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, &ArgumentError{Arg: "source-dir", Msg: fmt.Sprintf("%q is not readable: %v", source, err)}
	}
	f.Close()

	if _, err := NewExcluder(src, s.cfg.Exclude); err != nil {
		return nil, &ArgumentError{Arg: "exclude", Msg: err.Error()}
	}

	if target == "" {
		target = "dist"
	}
	dst, err := filepath.Abs(target)
	if err != nil {
		return nil, &ArgumentError{Arg: "target-dir", Msg: err.Error()}
	}
	if dst == src {
		return nil, &ArgumentError{Arg: "target-dir", Msg: "must differ from source-dir"}
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, fmt.Errorf("create target %q: %w", dst, err)
	}
	return NewRunLog(src, dst), nil
}

// task is one discovered file and its place in the per-name order.
type task struct {
	file SourceFile
	prev <-chan struct{} // closed when the previous file with the same bucket and name is placed
	done chan struct{}
}

// Execute discovers every file under log.Source and places each one into its
// bucket under log.Target, recording outcomes in log. Per-file failures are
// recorded, never returned. Cancelling ctx stops discovery and admission;
// admitted files still finish, and Execute returns ctx.Err().
func (s *Sorter) Execute(ctx context.Context, log *RunLog, progress *Progress) error {
	if progress == nil {
		progress = &Progress{}
	}
	slog.Info("sort started", "id", log.ID, "source", log.Source, "target", log.Target, "workers", s.cfg.Workers)

	files, err := s.discover(ctx, log, progress)
	if err != nil {
		return err
	}
	tasks := plan(files)

	buckets := newBucketSet(log.Target, s.cfg.ChunkSize)
	gate := semaphore.NewWeighted(int64(s.cfg.Workers))
	var wg sync.WaitGroup
	for _, t := range tasks {
		if err := gate.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer gate.Release(1)
			s.process(t, buckets, log, progress)
		}()
	}
	wg.Wait()

	log.FinishedAt = time.Now()
	log.Interrupted = ctx.Err() != nil
	status := StatusCompleted
	if log.Interrupted {
		status = StatusCancelled
	}
	s.metrics.observeRun(status, log.FinishedAt.Sub(log.StartedAt))

	sum := log.Summary()
	slog.Info("processing completed", "id", log.ID, "status", status,
		"copied", sum.Copied, "renamed", sum.Renamed, "skipped", sum.Skipped,
		"failed", sum.Failed, "warnings", sum.Warnings)
	return ctx.Err()
}

// discover walks log.Source and collects every candidate file.
func (s *Sorter) discover(ctx context.Context, log *RunLog, progress *Progress) ([]SourceFile, error) {
	ex, err := NewExcluder(log.Source, s.cfg.Exclude)
	if err != nil {
		return nil, &ArgumentError{Arg: "exclude", Msg: err.Error()}
	}
	if within(log.Target, log.Source) {
		ex.ExcludePath(log.Target)
	}

	report := func(path, stage, msg string) {
		progress.Warnings.Add(1)
		log.Warn(path, stage, msg)
		slog.Warn("discovery problem", "path", path, "stage", stage, "error", msg)
	}

	out := make(chan SourceFile, 1000)
	go Walk(ctx, log.Source, ex, s.cfg.Walkers, out, report)

	var files []SourceFile
	for f := range out {
		progress.FilesDiscovered.Add(1)
		files = append(files, f)
	}
	return files, nil
}

// plan orders files by source path and chains files that share a bucket and
// name, so the lexically first path always claims the plain name no matter
// how tasks interleave.
func plan(files []SourceFile) []*task {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	last := make(map[string]chan struct{}, len(files))
	tasks := make([]*task, len(files))
	for i, f := range files {
		t := &task{file: f, done: make(chan struct{})}
		key := f.Ext + "/" + f.Name
		if prev, ok := last[key]; ok {
			t.prev = prev
		}
		last[key] = t.done
		tasks[i] = t
	}
	return tasks
}

// process hashes one file, waits for its same-name predecessor, places it and
// records the outcome. It never returns an error: failures land in log.
func (s *Sorter) process(t *task, buckets *bucketSet, log *RunLog, progress *Progress) {
	defer close(t.done)

	f := t.file
	e := Entry{Source: f.Path, Bucket: f.Ext, Kind: media.Detect(f.Name)}

	digest, size, err := HashFile(f.Path, s.cfg.ChunkSize)
	progress.BytesHashed.Add(size)
	if t.prev != nil {
		<-t.prev
	}

	var dec Decision
	var copied int64
	if err == nil {
		var b *bucket
		if b, err = buckets.get(f.Ext); err == nil {
			dec, copied, err = b.place(f, size, digest)
		}
	}

	if err != nil {
		e.Disposition = Failed
		e.Err = err
		slog.Warn("file failed", "source", f.Path, "bucket", f.Ext, "error", err)
	} else {
		e.Disposition = dec.Kind
		e.Name = dec.Name
		e.Size = size
		progress.BytesCopied.Add(copied)
		switch dec.Kind {
		case SkipDuplicate:
			slog.Debug("skipped duplicate", "source", f.Path, "existing", filepath.Join(f.Ext, dec.Name))
		case RenameAndCopy:
			slog.Info("renamed copy", "source", f.Path, "dest", filepath.Join(f.Ext, dec.Name))
		default:
			slog.Debug("copied", "source", f.Path, "dest", filepath.Join(f.Ext, dec.Name))
		}
	}

	log.Append(e)
	progress.record(e)
	s.metrics.observeEntry(e)
}

// within reports whether path lies strictly inside dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
