// Package history persists finished sort runs and their per-file outcomes.
// It is write-mostly: placement decisions never read from it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eargollo/sorter/internal/sorter"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// entryBatchSize is the number of run entries written per transaction.
const entryBatchSize = 500

// Run is a stored run record.
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	TriggeredBy string     `json:"triggered_by"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Copied      int64      `json:"copied"`
	Renamed     int64      `json:"renamed"`
	Skipped     int64      `json:"skipped"`
	Failed      int64      `json:"failed"`
	Warnings    int64      `json:"warnings"`
	BytesCopied int64      `json:"bytes_copied"`
}

// Failure is a stored failed entry.
type Failure struct {
	Source string `json:"source"`
	Bucket string `json:"bucket"`
	Error  string `json:"error"`
}

// RunDetail is a run with its failures.
type RunDetail struct {
	Run
	Failures []Failure `json:"failures"`
}

// Store reads and writes run history. It implements sorter.RunStore.
type Store struct {
	db *sql.DB
}

var _ sorter.RunStore = (*Store)(nil)

// New creates a Store on an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertRun creates the record for a run that is about to start.
func (s *Store) InsertRun(ctx context.Context, log *sorter.RunLog, triggeredBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, target, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.Source, log.Target, triggeredBy, sorter.StatusRunning, log.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", log.ID, err)
	}
	return nil
}

// FinishRun stores the final counts and every entry of log, then marks the
// run with status.
func (s *Store) FinishRun(ctx context.Context, log *sorter.RunLog, status string) error {
	entries := log.Entries()
	for i := 0; i < len(entries); i += entryBatchSize {
		end := min(i+entryBatchSize, len(entries))
		if err := s.writeEntryBatch(ctx, log.ID, entries[i:end]); err != nil {
			return err
		}
	}

	sum := log.Summary()
	finishedAt := log.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status       = ?,
		    finished_at  = ?,
		    copied       = ?,
		    renamed      = ?,
		    skipped      = ?,
		    failed       = ?,
		    warnings     = ?,
		    bytes_copied = ?
		WHERE id = ?`,
		status, finishedAt.Unix(),
		sum.Copied, sum.Renamed, sum.Skipped, sum.Failed, sum.Warnings, sum.BytesCopied,
		log.ID)
	if err != nil {
		return fmt.Errorf("finalise run %s: %w", log.ID, err)
	}
	return nil
}

// writeEntryBatch writes a slice of entries within a single transaction,
// reusing one prepared statement.
func (s *Store) writeEntryBatch(ctx context.Context, runID string, batch []sorter.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_entries (run_id, source, bucket, name, disposition, size, kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert_entry: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		var errText sql.NullString
		if e.Err != nil {
			errText = sql.NullString{String: e.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, e.Source, e.Bucket, e.Name, e.Disposition.String(), e.Size, string(e.Kind), errText,
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Source, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, source, target, triggered_by, status, started_at, finished_at,
	copied, renamed, skipped, failed, warnings, bytes_copied`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r          Run
		startedAt  int64
		finishedAt sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Source, &r.Target, &r.TriggeredBy, &r.Status, &startedAt, &finishedAt,
		&r.Copied, &r.Renamed, &r.Skipped, &r.Failed, &r.Warnings, &r.BytesCopied); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

// ListRuns returns runs newest first, plus the total number of runs.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

// LastFinished returns the most recent run that is no longer running.
func (s *Store) LastFinished(ctx context.Context) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status != ? ORDER BY finished_at DESC, rowid DESC LIMIT 1`,
		sorter.StatusRunning))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last finished run: %w", err)
	}
	return &r, nil
}

// GetRun returns one run with its failed entries.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, bucket, COALESCE(error, '')
		FROM run_entries
		WHERE run_id = ? AND disposition = ?
		ORDER BY source`, id, sorter.Failed.String())
	if err != nil {
		return nil, fmt.Errorf("query failures %s: %w", id, err)
	}
	defer rows.Close()

	d := &RunDetail{Run: r, Failures: []Failure{}}
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Source, &f.Bucket, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure row: %w", err)
		}
		d.Failures = append(d.Failures, f)
	}
	return d, rows.Err()
}

// MarkStaleRunsFailed marks any runs still in 'running' state as 'failed'.
// This should be called once at startup in case a previous process crashed
// mid-run.
func (s *Store) MarkStaleRunsFailed(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?
		WHERE status = ?`,
		sorter.StatusFailed, time.Now().Unix(), sorter.StatusRunning)
	if err != nil {
		return fmt.Errorf("mark stale runs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale runs as failed", "count", n)
	}
	return nil
}
