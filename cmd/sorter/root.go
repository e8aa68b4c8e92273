package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/sorter/internal/config"
	"github.com/eargollo/sorter/internal/db"
	"github.com/eargollo/sorter/internal/history"
	"github.com/eargollo/sorter/internal/sorter"
)

// options are the flags shared by every command.
type options struct {
	configPath string
	workers    int
	logLevel   string
	exclude    []string
	history    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "sorter SOURCE_DIR [TARGET_DIR]",
		Short: "Copy a directory tree into per-extension folders",
		Long: `sorter copies every file under SOURCE_DIR into TARGET_DIR/<ext>/, one folder
per lower-cased file extension (files without one go to no_extension).

Files already present with identical content are skipped. A file whose name is
taken by different content is copied as name_<hash>.ext. Source files are never
modified. TARGET_DIR defaults to ./dist.

The exit status is 0 when the run completes, even if some files failed; the
failures are listed in the summary. An interrupt (Ctrl-C) lets files already
in progress finish, prints a partial summary and exits non-zero.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSort(cmd, opts, args)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "sorter.yaml", "path to config file")
	f.IntVarP(&opts.workers, "workers", "j", 0, "files processed concurrently (default from config, 32)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringArrayVar(&opts.exclude, "exclude", nil, "glob relative to SOURCE_DIR to skip (repeatable)")
	f.StringVar(&opts.history, "history", "", "sqlite database recording run history")

	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, opts.exclude...)
	}
	if flags.Changed("history") {
		cfg.DBPath = opts.history
	}
	if err := cfg.Validate(); err != nil {
		return nil, &sorter.ArgumentError{Arg: "config", Msg: err.Error()}
	}
	return cfg, nil
}

// setupLogging installs a text slog handler on w at the configured level.
func setupLogging(w io.Writer, level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})))
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sorterConfig(cfg *config.Config) sorter.Config {
	return sorter.Config{
		Workers:   cfg.Workers,
		Walkers:   cfg.Walkers,
		ChunkSize: cfg.ChunkSize,
		Exclude:   cfg.Exclude,
	}
}

// targetArg returns the target directory from args or config.
func targetArg(cfg *config.Config, args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return cfg.TargetDir
}

// openHistory opens and migrates the run-history database at path.
func openHistory(ctx context.Context, path string) (*sql.DB, *history.Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.RunMigrations(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrate history: %w", err)
	}
	return database, history.New(database), nil
}

func runSort(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := sorter.New(sorterConfig(cfg), nil)
	log, err := s.Prepare(args[0], targetArg(cfg, args))
	if err != nil {
		return err
	}

	var store *history.Store
	if cfg.DBPath != "" {
		database, st, err := openHistory(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store = st
		if err := store.InsertRun(ctx, log, "cli"); err != nil {
			return err
		}
	}

	runErr := s.Execute(ctx, log, nil)

	if store != nil {
		status := sorter.StatusCompleted
		switch {
		case errors.Is(runErr, context.Canceled):
			status = sorter.StatusCancelled
		case runErr != nil:
			status = sorter.StatusFailed
		}
		// Background so an interrupted run is still recorded.
		if err := store.FinishRun(context.Background(), log, status); err != nil {
			slog.Error("record run history", "id", log.ID, "error", err)
		}
	}

	if err := sorter.WriteSummary(cmd.OutOrStdout(), log); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("interrupted: in-flight files were finished, remaining files were not processed")
		}
		return runErr
	}
	return nil
}
