// Package duckdb provides the DuckDB SQL inspection engine.
//
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/housetax/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Name is the registered engine name.
const Name = "duckdb"

// Adapter implements core.Adapter for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Name returns the registered engine name.
func (a *Adapter) Name() string { return Name }

// Connect opens DuckDB. Without a path option the database lives in memory.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := ParseParams(cfg.Options)
	if err != nil {
		return err
	}

	if err := a.Open(ctx, "duckdb", params.Path, cfg); err != nil {
		return err
	}

	for _, stmt := range params.settings() {
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			return err
		}
	}
	return nil
}

// LoadTable loads a pipeline file into a table, letting DuckDB infer
// column types. Files ending in .csv are comma separated, anything else
// is read as tab separated.
func (a *Adapter) LoadTable(ctx context.Context, tableName, filePath string) error {
	if !a.IsConnected() {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	delim := `\t`
	if strings.EqualFold(filepath.Ext(absPath), ".csv") {
		delim = ","
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header=true, delim='%s')",
		adapter.QuoteIdent(tableName),
		adapter.QuoteLiteral(absPath),
		delim,
	)
	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load %s: %w", filePath, err)
	}

	a.Logger.Debug("loaded table", "table", tableName, "path", filePath)
	return nil
}

var _ core.Adapter = (*Adapter)(nil)
