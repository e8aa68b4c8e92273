package sorter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when a run is started while one is in progress.
var ErrAlreadyRunning = errors.New("a sort run is already in progress")

// ErrNoActiveRun is returned when cancel is called with no run in progress.
var ErrNoActiveRun = errors.New("no sort run is currently in progress")

// Run statuses as stored in run history.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// RunStore persists run records. Implemented by history.Store.
type RunStore interface {
	InsertRun(ctx context.Context, log *RunLog, triggeredBy string) error
	FinishRun(ctx context.Context, log *RunLog, status string) error
}

// ActiveRun holds live information about the run in progress.
type ActiveRun struct {
	ID          string
	StartedAt   time.Time
	TriggeredBy string
	Progress    *Progress
}

// Manager enforces a single-active-run invariant for a fixed source/target
// pair and exposes start/cancel. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	sorter *Sorter
	source string
	target string
	store  RunStore

	active   *ActiveRun
	cancelFn context.CancelFunc
	last     *RunLog
	wg       sync.WaitGroup
}

// NewManager creates a Manager. store may be nil, in which case runs are not
// persisted.
func NewManager(s *Sorter, source, target string, store RunStore) *Manager {
	return &Manager{sorter: s, source: source, target: target, store: store}
}

// Start launches an asynchronous run. Returns an ActiveRun snapshot or
// ErrAlreadyRunning if a run is already in progress.
func (m *Manager) Start(parentCtx context.Context, triggeredBy string) (*ActiveRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}

	log, err := m.sorter.Prepare(m.source, m.target)
	if err != nil {
		return nil, err
	}
	// Record the run NOW so its ID is queryable before the goroutine starts.
	if m.store != nil {
		if err := m.store.InsertRun(context.Background(), log, triggeredBy); err != nil {
			return nil, fmt.Errorf("create run record: %w", err)
		}
	}

	progress := &Progress{}
	runCtx, cancel := context.WithCancel(parentCtx)
	active := &ActiveRun{
		ID:          log.ID,
		StartedAt:   log.StartedAt,
		TriggeredBy: triggeredBy,
		Progress:    progress,
	}
	m.active = active
	m.cancelFn = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		status := StatusCompleted
		if err := m.sorter.Execute(runCtx, log, progress); err != nil {
			status = StatusFailed
			if errors.Is(err, context.Canceled) {
				status = StatusCancelled
			} else {
				slog.Error("sort run error", "id", log.ID, "error", err)
			}
		}
		if m.store != nil {
			// Background so a cancelled run is still recorded.
			if err := m.store.FinishRun(context.Background(), log, status); err != nil {
				slog.Error("finalise run record", "id", log.ID, "error", err)
			}
		}

		m.mu.Lock()
		m.active = nil
		m.cancelFn = nil
		m.last = log
		m.mu.Unlock()
	}()

	snap := *active
	return &snap, nil
}

// Cancel asks the running run to drain. Returns ErrNoActiveRun if idle.
func (m *Manager) Cancel() (*ActiveRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveRun
	}
	snap := *m.active
	m.cancelFn()
	return &snap, nil
}

// ActiveRun returns a snapshot of the run in progress, or nil when idle.
func (m *Manager) ActiveRun() *ActiveRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := *m.active
	return &snap
}

// LastRun returns the log of the most recently finished run, or nil.
func (m *Manager) LastRun() *RunLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Wait blocks until every started run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
