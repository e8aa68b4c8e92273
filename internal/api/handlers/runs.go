package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eargollo/sorter/internal/history"
	"github.com/eargollo/sorter/internal/sorter"
)

// RunsHandler handles run-related API endpoints.
type RunsHandler struct {
	Store   *history.Store
	Manager *sorter.Manager
}

// Create handles POST /api/runs and starts a manual run.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	active, err := h.Manager.Start(context.Background(), "manual")
	if err != nil {
		var ae *sorter.ArgumentError
		switch {
		case errors.Is(err, sorter.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, "RUN_ALREADY_ACTIVE", "A sort run is already in progress")
		case errors.As(err, &ae):
			writeError(w, http.StatusUnprocessableEntity, "INVALID_ARGUMENT", ae.Error())
		default:
			slog.Error("runs: start", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start run")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":           active.ID,
		"status":       sorter.StatusRunning,
		"started_at":   active.StartedAt.UTC().Format(time.RFC3339),
		"triggered_by": active.TriggeredBy,
	})
}

// Cancel handles DELETE /api/runs/current. In-flight files finish; nothing
// new is admitted.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Manager.Cancel()
	if err != nil {
		if errors.Is(err, sorter.ErrNoActiveRun) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_RUN", "No sort run is currently in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         snap.ID,
		"status":     "draining",
		"started_at": snap.StartedAt.UTC().Format(time.RFC3339),
	})
}

// List handles GET /api/runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	runs, total, err := h.Store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		slog.Error("runs list: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[history.Run]{
		Items:  runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}
