package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eargollo/sorter/internal/api/handlers"
	"github.com/eargollo/sorter/internal/history"
	"github.com/eargollo/sorter/internal/scheduler"
	"github.com/eargollo/sorter/internal/sorter"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run. sched and gatherer
// may be nil; /metrics is only mounted when gatherer is set.
func New(
	addr string,
	store *history.Store,
	mgr *sorter.Manager,
	sched *scheduler.Scheduler,
	gatherer prometheus.Gatherer,
	version string,
) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(store, mgr, sched, gatherer, version),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the chi router used by Server.
func NewRouter(
	store *history.Store,
	mgr *sorter.Manager,
	sched *scheduler.Scheduler,
	gatherer prometheus.Gatherer,
	version string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{Store: store, Manager: mgr, Sched: sched, Version: version}
	runsH := &handlers.RunsHandler{Store: store, Manager: mgr}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/runs", runsH.Create)
		r.Get("/runs", runsH.List)
		r.Delete("/runs/current", runsH.Cancel)
		r.Get("/runs/{id}", runsH.Get)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
