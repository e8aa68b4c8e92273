// Package scheduler fires sort runs on a cron schedule.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron with a single replaceable job and tracks the
// next scheduled run.
type Scheduler struct {
	mu       sync.RWMutex
	c        *cron.Cron
	entryID  cron.EntryID
	cronExpr string
	paused   bool
}

// New creates a stopped Scheduler. Call Start to activate it.
// A job that is still running when its next tick arrives is skipped, and a
// panicking job is recovered.
func New() *Scheduler {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Scheduler{
		c: cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
	}
}

// SetJob replaces the current job with fn on the given cron expression
// (standard five fields or descriptors such as "@every 10m").
func (s *Scheduler) SetJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.c.AddFunc(expr, func() {
		if s.Paused() {
			slog.Debug("scheduler: tick skipped while paused", "cron", expr)
			return
		}
		fn()
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	slog.Info("scheduler: job set", "cron", expr)
	return nil
}

// SetPaused suspends or resumes the job without removing it.
func (s *Scheduler) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

// Paused reports whether ticks are currently ignored.
func (s *Scheduler) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil if no job is set or the
// scheduler has not been started.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}
