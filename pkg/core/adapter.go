package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that all SQL inspection engines must implement.
type Adapter interface {
	// Connect opens an in-memory database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// LoadTable loads a tab-separated pipeline file into a table.
	LoadTable(ctx context.Context, tableName, filePath string) error

	// Name returns the registered engine name.
	Name() string
}

// AdapterConfig holds configuration for an inspection engine.
type AdapterConfig struct {
	Type    string
	Options map[string]string
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
