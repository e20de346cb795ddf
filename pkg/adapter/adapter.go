// Package adapter provides the SQL inspection engine registry and the
// database/sql plumbing shared by the concrete engines.
//
// Concrete engines live in pkg/adapters/ subdirectories and register
// themselves from init. The contract they implement is core.Adapter.
package adapter

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/housetax/pkg/core"
)

// Result is a fully materialized query result. Values are rendered as
// strings so any output format can print them.
type Result struct {
	Columns []string
	Rows    [][]string
}

// Collect drains rows into a Result and closes them.
func Collect(rows *core.Rows) (*Result, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	res := &Result{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return res, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case sql.RawBytes:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// QuoteIdent quotes a table or column name for the SQL engines.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
