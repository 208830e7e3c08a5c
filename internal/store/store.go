package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yangwenmai/formconv/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ RunReader  = (*Store)(nil)
	_ RunWriter  = (*Store)(nil)
	_ RunClaimer = (*Store)(nil)
)

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found")
	// ErrInvalidTransition is returned when a run's status does not allow the update.
	ErrInvalidTransition = errors.New("invalid run transition")
)

// defaultListLimit caps ListRuns when the filter sets no limit.
const defaultListLimit = 50

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: runs table
		s.migrateV2, // v1 → v2: failed_stage column
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		query         TEXT NOT NULL,
		status        TEXT NOT NULL,
		artifact_path TEXT NOT NULL DEFAULT '',
		result_path   TEXT NOT NULL DEFAULT '',
		error_info    TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, created_at);
	`)
	return err
}

// migrateV2 promotes the failed stage out of error_info so runs can be
// filtered by it (v1 → v2).
func (s *Store) migrateV2() error {
	if _, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN failed_stage TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE runs SET failed_stage = COALESCE(json_extract(error_info, '$.failed_stage'), '')
		WHERE error_info IS NOT NULL AND json_valid(error_info)`)
	return err
}

const runColumns = `id, query, status, artifact_path, result_path, failed_stage, error_info, created_at, updated_at`

// CreateRun inserts a new run.
func (s *Store) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.Status, run.ArtifactPath, run.ResultPath,
		run.FailedStage, run.ErrorInfo, run.CreatedAt, run.UpdatedAt,
	)
	return err
}

// GetRun returns the run with the given ID, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs matching the filter, newest first.
func (s *Store) ListRuns(ctx context.Context, f model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []interface{}

	var where []string
	for _, c := range []struct {
		column string
		values []string
	}{
		{"status", f.Status},
		{"failed_stage", f.Stage},
	} {
		if len(c.values) == 0 {
			continue
		}
		placeholders := make([]string, len(c.values))
		for i, v := range c.values {
			placeholders[i] = "?"
			args = append(args, v)
		}
		where = append(where, c.column+" IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// MarkSucceeded records the artifact and result paths of a RUNNING run.
func (s *Store) MarkSucceeded(ctx context.Context, id, artifactPath, resultPath string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, artifact_path = ?, result_path = ?, failed_stage = '', error_info = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		model.StatusSucceeded, artifactPath, resultPath, now, id, model.StatusRunning,
	)
	return s.checkTransition(ctx, id, model.StatusSucceeded, res, err)
}

// MarkFailed records why a RUNNING run failed.
func (s *Store) MarkFailed(ctx context.Context, id string, info model.ErrorInfo) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, failed_stage = ?, error_info = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		model.StatusFailed, info.FailedStage, info.ToJSON(), now, id, model.StatusRunning,
	)
	return s.checkTransition(ctx, id, model.StatusFailed, res, err)
}

// checkTransition explains a status-guarded update that changed nothing:
// either the run is missing or its status does not allow moving to next.
func (s *Store) checkTransition(ctx context.Context, id, next string, res sql.Result, err error) error {
	if err := s.expectOne(res, err); !errors.Is(err, ErrNotFound) {
		return err
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if err := run.ValidateTransition(next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return fmt.Errorf("%w: run %s changed status concurrently", ErrInvalidTransition, id)
}

// ClaimNextQueued atomically picks the oldest QUEUED run and sets it to RUNNING.
// Returns nil if no run is available.
func (s *Store) ClaimNextQueued(ctx context.Context) (*model.Run, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	row := s.db.QueryRowContext(ctx, `
		UPDATE runs SET status = ?, updated_at = ?
		WHERE id = (SELECT id FROM runs WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT 1)
		RETURNING `+runColumns,
		model.StatusRunning, now, model.StatusQueued,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ResetStaleRunning puts RUNNING runs back in the queue (for server restart).
func (s *Store) ResetStaleRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = ? WHERE status = ?`, model.StatusQueued, now, model.StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of runs in each status.
func (s *Store) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM runs`,
		model.StatusQueued, model.StatusRunning, model.StatusSucceeded, model.StatusFailed)
	if err := row.Scan(&counts.Queued, &counts.Running, &counts.Succeeded, &counts.Failed); err != nil {
		return counts, err
	}
	return counts, nil
}

func (s *Store) expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	err := row.Scan(&run.ID, &run.Query, &run.Status, &run.ArtifactPath, &run.ResultPath,
		&run.FailedStage, &run.ErrorInfo, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
