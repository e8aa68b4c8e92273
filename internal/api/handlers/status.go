package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eargollo/sorter/internal/history"
	"github.com/eargollo/sorter/internal/scheduler"
	"github.com/eargollo/sorter/internal/sorter"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Store   *history.Store
	Manager *sorter.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version string        `json:"version"`
	Active  *activeRun    `json:"active_run"`
	Sched   *scheduleInfo `json:"schedule"`
	LastRun *history.Run  `json:"last_run"`
}

type activeRun struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"started_at"`
	TriggeredBy string       `json:"triggered_by"`
	Progress    progressInfo `json:"progress"`
}

type progressInfo struct {
	FilesDiscovered int64 `json:"files_discovered"`
	FilesDone       int64 `json:"files_done"`
	Copied          int64 `json:"copied"`
	Renamed         int64 `json:"renamed"`
	Skipped         int64 `json:"skipped"`
	Failed          int64 `json:"failed"`
	Warnings        int64 `json:"warnings"`
	BytesHashed     int64 `json:"bytes_hashed"`
	BytesCopied     int64 `json:"bytes_copied"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	Paused    bool       `json:"paused"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Version: h.Version}

	if a := h.Manager.ActiveRun(); a != nil {
		p := a.Progress
		resp.Active = &activeRun{
			ID:          a.ID,
			StartedAt:   a.StartedAt.UTC(),
			TriggeredBy: a.TriggeredBy,
			Progress: progressInfo{
				FilesDiscovered: p.FilesDiscovered.Load(),
				FilesDone:       p.FilesDone.Load(),
				Copied:          p.Copied.Load(),
				Renamed:         p.Renamed.Load(),
				Skipped:         p.Skipped.Load(),
				Failed:          p.Failed.Load(),
				Warnings:        p.Warnings.Load(),
				BytesHashed:     p.BytesHashed.Load(),
				BytesCopied:     p.BytesCopied.Load(),
			},
		}
	}

	if h.Sched != nil {
		resp.Sched = &scheduleInfo{
			Cron:      h.Sched.CronExpr(),
			Paused:    h.Sched.Paused(),
			NextRunAt: h.Sched.NextRunAt(),
		}
	}

	last, err := h.Store.LastFinished(r.Context())
	switch {
	case err == nil:
		resp.LastRun = last
	case !errors.Is(err, history.ErrNotFound):
		slog.Error("status: query last run", "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}
