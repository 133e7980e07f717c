package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"flexone/internal/config"
)

// Store journals process runs in SQLite so status and history commands can
// report what happened across restarts.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the runs database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.RunsDBPath())
}

// OpenPath opens a runs database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Begin records a freshly launched process and returns the new run.
func (s *Store) Begin(ctx context.Context, process string, pid int) (*Run, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO process_runs (id, process, pid, status, started_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		process,
		pid,
		StatusLaunched,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetByID(ctx, id)
}

// MarkReady records that the run passed its readiness probe.
func (s *Store) MarkReady(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE process_runs SET status = ?, ready_at = ?, updated_at = ? WHERE id = ?`,
		StatusReady,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

// MarkStopped records a deliberate or clean stop.
func (s *Store) MarkStopped(ctx context.Context, id, detail string) error {
	return s.finish(ctx, id, StatusStopped, detail)
}

// MarkFailed records a run that never became ready or exited with an error.
func (s *Store) MarkFailed(ctx context.Context, id, detail string) error {
	return s.finish(ctx, id, StatusFailed, detail)
}

func (s *Store) finish(ctx context.Context, id string, status Status, detail string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE process_runs SET status = ?, detail = ?, stopped_at = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(detail),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// CloseStale marks any still-active runs for a process as stopped. Called on
// startup so crashed processes do not linger as active history.
func (s *Store) CloseStale(ctx context.Context, process, detail string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE process_runs SET status = ?, detail = ?, stopped_at = ?, updated_at = ?
         WHERE process = ? AND status IN (?, ?)`,
		StatusStopped,
		nullableString(detail),
		now,
		now,
		process,
		StatusLaunched,
		StatusReady,
	)
	if err != nil {
		return 0, fmt.Errorf("close stale runs: %w", err)
	}
	return res.RowsAffected()
}

// GetByID fetches a run by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM process_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ActiveRun returns the newest still-active run for a process, or nil.
func (s *Store) ActiveRun(ctx context.Context, process string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM process_runs
         WHERE process = ? AND status IN (?, ?)
         ORDER BY started_at DESC LIMIT 1`,
		process,
		StatusLaunched,
		StatusReady,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	return run, nil
}

// Recent returns the newest runs across all processes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+` FROM process_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM process_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const runColumns = "id, process, pid, status, detail, started_at, ready_at, stopped_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id         string
		process    string
		pid        int
		statusStr  string
		detail     sql.NullString
		startedRaw sql.NullString
		readyRaw   sql.NullString
		stoppedRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&process,
		&pid,
		&statusStr,
		&detail,
		&startedRaw,
		&readyRaw,
		&stoppedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:      id,
		Process: process,
		PID:     pid,
		Status:  Status(statusStr),
		Detail:  detail.String,
	}

	if started, err := parseTimeString(startedRaw.String); err == nil {
		run.StartedAt = started
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	if readyRaw.Valid {
		if ready, err := parseTimeString(readyRaw.String); err == nil {
			run.ReadyAt = &ready
		}
	}
	if stoppedRaw.Valid {
		if stopped, err := parseTimeString(stoppedRaw.String); err == nil {
			run.StoppedAt = &stopped
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
