package sorter

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eargollo/sorter/internal/media"
)

// Entry is the outcome for one source file.
type Entry struct {
	Source      string
	Bucket      string
	Name        string // final (or matching) name inside the bucket; empty on failure
	Disposition Disposition
	Size        int64
	Kind        media.FileType
	Err         error
}

// Warning is a discovery problem that did not stop the run.
type Warning struct {
	Path    string
	Stage   string
	Message string
}

// Failure is a failed file as shown in the summary.
type Failure struct {
	Source string
	Reason string
	Error  string
}

// Summary aggregates a RunLog.
type Summary struct {
	Copied      int
	Renamed     int
	Skipped     int
	Failed      int
	Warnings    int
	BytesCopied int64
	BytesByKind map[media.FileType]int64
	Failures    []Failure
}

// Total is the number of files with a recorded outcome.
func (s Summary) Total() int { return s.Copied + s.Renamed + s.Skipped + s.Failed }

// RunLog is the append-only record of a run. Append and Warn are safe for
// concurrent use; readers get copies.
type RunLog struct {
	ID          string
	Source      string
	Target      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool

	mu       sync.Mutex
	entries  []Entry
	warnings []Warning
}

// NewRunLog starts an empty log for a run from source into target.
func NewRunLog(source, target string) *RunLog {
	return &RunLog{
		ID:        uuid.NewString(),
		Source:    source,
		Target:    target,
		StartedAt: time.Now(),
	}
}

// Append records one file outcome.
func (l *RunLog) Append(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Warn records a discovery warning.
func (l *RunLog) Warn(path, stage, msg string) {
	l.mu.Lock()
	l.warnings = append(l.warnings, Warning{Path: path, Stage: stage, Message: msg})
	l.mu.Unlock()
}

// Entries returns a copy of the recorded outcomes in append order.
func (l *RunLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Warnings returns a copy of the recorded warnings.
func (l *RunLog) Warnings() []Warning {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Warning(nil), l.warnings...)
}

// Summary counts outcomes and lists failures ordered by source path.
func (l *RunLog) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		Warnings:    len(l.warnings),
		BytesByKind: make(map[media.FileType]int64),
	}
	for _, e := range l.entries {
		switch e.Disposition {
		case Copy:
			s.Copied++
		case RenameAndCopy:
			s.Renamed++
		case SkipDuplicate:
			s.Skipped++
		case Failed:
			s.Failed++
			msg := ""
			if e.Err != nil {
				msg = e.Err.Error()
			}
			s.Failures = append(s.Failures, Failure{Source: e.Source, Reason: failureReason(e.Err), Error: msg})
			continue
		}
		if e.Disposition == Copy || e.Disposition == RenameAndCopy {
			s.BytesCopied += e.Size
			s.BytesByKind[e.Kind] += e.Size
		}
	}
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].Source < s.Failures[j].Source })
	return s
}
