package sorter

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
)

// dirQueue is an unbounded, concurrency-safe queue of directory paths.
// It tracks a pending counter so that Walk() knows when all work is done.
//
// Termination protocol:
//   - Push increments pending BEFORE enqueuing (caller must own the increment).
//   - Done decrements pending AFTER all children of a directory have been
//     pushed. When pending reaches 0, Done closes the queue and broadcasts.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	head    int // index of the next item to pop
	pending atomic.Int64
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a directory. Must be called after incrementing pending.
func (q *dirQueue) Push(dir string) {
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed.
// Returns ("", false) when the queue is closed and empty.
func (q *dirQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head >= len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head >= len(q.items) {
		return "", false
	}
	item := q.items[q.head]
	q.items[q.head] = ""
	q.head++
	if q.head >= 1000 && q.head >= len(q.items)/2 {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return item, true
}

// Done must be called once per directory after all its child-directories have
// been pushed. Decrements pending; if pending reaches 0, closes the queue.
func (q *dirQueue) Done() {
	if q.pending.Add(-1) == 0 {
		q.close()
	}
}

// close wakes every blocked Pop; used on completion and on cancellation.
func (q *dirQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Excluder decides which paths under a root are left out of discovery.
// Patterns are doublestar globs matched against the slash-separated path
// relative to the root; a pattern matching a directory prunes its subtree.
type Excluder struct {
	root     string
	patterns []string
	paths    map[string]struct{}
}

// NewExcluder validates patterns and returns an Excluder for root.
func NewExcluder(root string, patterns []string) (*Excluder, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Excluder{root: root, patterns: patterns, paths: make(map[string]struct{})}, nil
}

// ExcludePath skips one absolute path, e.g. a target nested inside the source.
func (e *Excluder) ExcludePath(path string) {
	e.paths[filepath.Clean(path)] = struct{}{}
}

// Match reports whether path is excluded. A nil Excluder excludes nothing.
func (e *Excluder) Match(path string) bool {
	if e == nil {
		return false
	}
	if _, ok := e.paths[path]; ok {
		return true
	}
	if len(e.patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range e.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Walk traverses root concurrently using numWorkers goroutines and sends
// every regular file it finds to out. Walk closes out when done.
// Symlinks are never followed, including symlinks to regular files, so link
// cycles cannot occur. Special files are skipped, as is anything ex matches.
// Unreadable directories are passed to report and the walk goes on.
func Walk(ctx context.Context, root string, ex *Excluder, numWorkers int, out chan<- SourceFile, report ErrorReporter) {
	defer close(out)
	if numWorkers < 1 {
		numWorkers = 1
	}

	q := newDirQueue()
	q.pending.Add(1)
	q.Push(root)

	stop := context.AfterFunc(ctx, q.close)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			walkerWorker(ctx, q, ex, out, report)
		}()
	}
	wg.Wait()
}

// walkerWorker pops directories from q, reads their entries, enqueues
// sub-directories (incrementing pending first), sends files to out, then
// calls q.Done() to decrement pending.
func walkerWorker(ctx context.Context, q *dirQueue, ex *Excluder, out chan<- SourceFile, report ErrorReporter) {
	for {
		if ctx.Err() != nil {
			return
		}

		dir, ok := q.Pop()
		if !ok {
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			report(dir, "walk", err.Error())
			q.Done()
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if ex.Match(path) {
				continue
			}

			if entry.IsDir() {
				// Increment BEFORE pushing so pending is never zero prematurely.
				q.pending.Add(1)
				q.Push(path)
				continue
			}

			if entry.Type()&fs.ModeSymlink != 0 || !entry.Type().IsRegular() {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				report(path, "walk", err.Error())
				continue
			}

			select {
			case <-ctx.Done():
				q.Done()
				return
			case out <- newSourceFile(path, entry.Name(), info.Size()):
			}
		}

		q.Done()
	}
}
