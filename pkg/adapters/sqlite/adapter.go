// Package sqlite provides an in-memory SQLite inspection engine backed
// by the pure Go modernc.org/sqlite driver. It needs no cgo, so it is
// the engine to use where the DuckDB driver cannot be built.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// Name is the registered engine name.
const Name = "sqlite"

// Adapter implements core.Adapter for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Name returns the registered engine name.
func (a *Adapter) Name() string { return Name }

// Connect opens SQLite. The "path" option selects a database file;
// without it the database lives in memory.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	dsn := cfg.Options["path"]
	if dsn == "" {
		dsn = ":memory:"
	}
	if err := a.Open(ctx, "sqlite", dsn, cfg); err != nil {
		return err
	}
	// An in-memory database is per connection.
	a.DB.SetMaxOpenConns(1)
	return nil
}

// LoadTable creates tableName from a pipeline file. Column types are
// inferred from the values: INTEGER when every non-empty cell is an
// integer, REAL when every one is a number, TEXT otherwise. Empty and
// "nan" cells become NULL.
func (a *Adapter) LoadTable(ctx context.Context, tableName, filePath string) error {
	if !a.IsConnected() {
		return adapter.ErrNotConnected
	}

	t, err := table.ReadFile(filePath, table.ReadOptions{})
	if err != nil {
		return err
	}

	kinds := adapter.InferKinds(t)
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		cols[j] = adapter.QuoteIdent(c) + " " + columnType(kinds[j])
		marks[j] = "?"
	}

	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	quoted := adapter.QuoteIdent(tableName)
	stmts := []string{
		"DROP TABLE IF EXISTS " + quoted,
		fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(cols, ", ")),
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoted, strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for j, cell := range row {
			args[j] = adapter.Convert(cell, kinds[j])
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}
	a.Logger.Debug("loaded table", "table", tableName, "path", filePath, "rows", t.Len())
	return nil
}

// columnType maps an inferred kind to its SQLite affinity.
func columnType(k adapter.Kind) string {
	switch k {
	case adapter.KindInteger:
		return "INTEGER"
	case adapter.KindReal:
		return "REAL"
	}
	return "TEXT"
}

var _ core.Adapter = (*Adapter)(nil)
