// Package postgres provides a PostgreSQL inspection engine over pgx.
//
// Pipeline files are copied into session-local temporary tables, so
// inspecting never leaves anything behind in the target database.
// Column names keep their case; quote them in queries ("Code3").
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// Name is the registered engine name.
const Name = "postgres"

// Adapter implements core.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Name returns the registered engine name.
func (a *Adapter) Name() string { return Name }

// Connect opens a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := ParseParams(cfg.Options)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to postgres", slog.String("host", params.Host), slog.String("database", params.Database))
	if err := a.Open(ctx, "pgx", params.ConnString(), cfg); err != nil {
		return err
	}
	// Temporary tables belong to one session.
	a.DB.SetMaxOpenConns(1)
	return nil
}

// LoadTable copies a pipeline file into a temporary table with the
// COPY protocol. Column types follow adapter.InferKinds.
func (a *Adapter) LoadTable(ctx context.Context, tableName, filePath string) error {
	if !a.IsConnected() {
		return adapter.ErrNotConnected
	}

	t, err := table.ReadFile(filePath, table.ReadOptions{})
	if err != nil {
		return err
	}

	kinds := adapter.InferKinds(t)
	ddl := createStatement(tableName, t.Columns, kinds)
	quoted := adapter.QuoteIdent(tableName)
	for _, s := range []string{"DROP TABLE IF EXISTS " + quoted, ddl} {
		if err := a.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}

	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		vals := make([]any, len(row))
		for j, cell := range row {
			vals[j] = adapter.Convert(cell, kinds[j])
		}
		rows[i] = vals
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var copied int64
	err = conn.Raw(func(dc any) error {
		c, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		n, err := c.Conn().CopyFrom(ctx, pgx.Identifier{tableName}, t.Columns, pgx.CopyFromRows(rows))
		copied = n
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to copy into %s: %w", tableName, err)
	}

	a.Logger.Debug("loaded table", "table", tableName, "path", filePath, "rows", copied)
	return nil
}

func createStatement(tableName string, columns []string, kinds []adapter.Kind) string {
	cols := make([]string, len(columns))
	for j, c := range columns {
		cols[j] = adapter.QuoteIdent(c) + " " + columnType(kinds[j])
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s)", adapter.QuoteIdent(tableName), strings.Join(cols, ", "))
}

// columnType maps an inferred kind to a PostgreSQL type.
func columnType(k adapter.Kind) string {
	switch k {
	case adapter.KindInteger:
		return "BIGINT"
	case adapter.KindReal:
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}

var _ core.Adapter = (*Adapter)(nil)
