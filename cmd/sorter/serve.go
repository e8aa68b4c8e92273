package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/eargollo/sorter/internal/api"
	"github.com/eargollo/sorter/internal/config"
	"github.com/eargollo/sorter/internal/scheduler"
	"github.com/eargollo/sorter/internal/sorter"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		schedule string
		httpAddr string
		paused   bool
	)
	cmd := &cobra.Command{
		Use:   "serve SOURCE_DIR [TARGET_DIR]",
		Short: "Run sorts on a schedule and expose an HTTP API",
		Long: `serve keeps running, sorting SOURCE_DIR into TARGET_DIR on a cron schedule.
Runs can also be started and cancelled over HTTP, and run history is stored
in the sqlite database given by --history (default sorter.db).`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("schedule") {
				cfg.Schedule = schedule
			}
			if cmd.Flags().Changed("http") {
				cfg.HTTPAddr = httpAddr
			}
			return runServe(cmd, cfg, args, paused)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron expression for scheduled runs (default "@every 15m")`)
	cmd.Flags().StringVar(&httpAddr, "http", "", `HTTP listen address (default ":8080")`)
	cmd.Flags().BoolVar(&paused, "paused", false, "start with the schedule paused")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, args []string, paused bool) error {
	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	slog.Info("sorter starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", dbPath,
		"schedule", cfg.Schedule)

	// ── Database ───────────────────────────────────────────────────────────
	database, store, err := openHistory(ctx, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// Mark any runs that were 'running' when the last process exited as failed.
	if err := store.MarkStaleRunsFailed(ctx); err != nil {
		slog.Warn("mark stale runs", "error", err)
	}

	// ── Metrics ────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := sorter.NewMetrics(reg)

	// ── Run manager ────────────────────────────────────────────────────────
	s := sorter.New(sorterConfig(cfg), metrics)
	if _, err := s.Prepare(args[0], targetArg(cfg, args)); err != nil {
		return err
	}
	mgr := sorter.NewManager(s, args[0], targetArg(cfg, args), store)

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	if err := sched.SetJob(cfg.Schedule, func() {
		slog.Info("scheduled run triggered")
		if _, err := mgr.Start(ctx, "schedule"); err != nil {
			if errors.Is(err, sorter.ErrAlreadyRunning) {
				slog.Info("scheduled run skipped: previous run still active")
				return
			}
			slog.Warn("scheduled run start", "error", err)
		}
	}); err != nil {
		return &sorter.ArgumentError{Arg: "schedule", Msg: err.Error()}
	}
	sched.SetPaused(paused)
	sched.Start()
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	srv := api.New(cfg.HTTPAddr, store, mgr, sched, reg, version)
	err = srv.Run(ctx)

	// The run context derives from ctx, so an active run is already draining.
	if _, cerr := mgr.Cancel(); cerr == nil {
		slog.Info("waiting for active run to drain")
	}
	mgr.Wait()
	if err != nil {
		return err
	}
	slog.Info("sorter stopped")
	return nil
}
