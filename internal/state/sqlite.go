package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // sqlite driver
)

// MemoryPath opens a database that lives only as long as the store.
const MemoryPath = ":memory:"

// SQLiteStore keeps run history in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the database at path and applies pending
// migrations. Parent directories are created as needed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// One writer, and an in-memory database is per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open state database %s: %w", path, err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("state database opened", "path", path)
	return s, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateRun starts a run for the selected stages.
func (s *SQLiteStore) CreateRun(ctx context.Context, selection []string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunStatusRunning,
		Selection: selection,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, selection, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), strings.Join(selection, ","), run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordStages appends completed stages to a run, after any recorded before.
func (s *SQLiteStore) RecordStages(ctx context.Context, runID string, stages []StageRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to record stages: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM stage_runs WHERE run_id = ?`, runID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to record stages: %w", err)
	}

	for _, st := range stages {
		next++
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stage_runs (run_id, seq, name, kind, output, rows, duration_ms, warning)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, next, st.Name, st.Kind, st.Output, st.Rows, st.Duration.Milliseconds(), st.Warning,
		); err != nil {
			return fmt.Errorf("failed to record stage %s: %w", st.Name, err)
		}
	}
	return tx.Commit()
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	var errValue *string
	if errMsg != "" {
		errValue = &errMsg
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC().UnixMilli(), errValue, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, status, selection, started_at, completed_at, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run, or nil when there is none.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StageRuns returns the recorded stages of a run in execution order.
func (s *SQLiteStore) StageRuns(ctx context.Context, runID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, kind, output, rows, duration_ms, warning FROM stage_runs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []StageRun
	for rows.Next() {
		var st StageRun
		var ms int64
		if err := rows.Scan(&st.Name, &st.Kind, &st.Output, &st.Rows, &ms, &st.Warning); err != nil {
			return nil, fmt.Errorf("failed to list stages: %w", err)
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		status      string
		selection   string
		startedAt   int64
		completedAt sql.NullInt64
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &status, &selection, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if selection != "" {
		run.Selection = strings.Split(selection, ",")
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}
