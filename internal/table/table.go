// Package table provides the rectangular, named-column string tables the
// pipeline stages pass between each other, plus delimited file I/O.
package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Table is a rectangular grid of string cells with named columns.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: append([]string(nil), columns...)}
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Has reports whether the table has every named column.
func (t *Table) Has(columns ...string) bool {
	for _, c := range columns {
		if t.Index(c) < 0 {
			return false
		}
	}
	return true
}

// Missing returns the named columns the table lacks, in argument order.
func (t *Table) Missing(columns ...string) []string {
	var missing []string
	for _, c := range columns {
		if t.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Get returns the cell at row i in the named column.
func (t *Table) Get(i int, column string) string {
	j := t.Index(column)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][j]
}

// Append adds a row. The row must have one cell per column.
func (t *Table) Append(row ...string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table %q has %d columns", len(row), t.Name, len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for k, c := range columns {
		idx[k] = t.Index(c)
		if idx[k] < 0 {
			return nil, fmt.Errorf("column %q not found in %q", c, t.Name)
		}
	}
	out := New(t.Name, columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// Rename renames columns in place. Names absent from the table are ignored.
func (t *Table) Rename(names map[string]string) {
	for i, c := range t.Columns {
		if to, ok := names[c]; ok {
			t.Columns[i] = to
		}
	}
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(row []string) bool) {
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	t.Rows = kept
}

// MapCells rewrites every cell in place.
func (t *Table) MapCells(fn func(s string) string) {
	for _, r := range t.Rows {
		for j := range r {
			r[j] = fn(r[j])
		}
	}
}

// SortBy stably sorts rows by the named columns. Cells that all parse as
// numbers compare numerically, otherwise lexically.
func (t *Table) SortBy(columns ...string) error {
	idx := make([]int, len(columns))
	numeric := make([]bool, len(columns))
	for k, c := range columns {
		idx[k] = t.Index(c)
		if idx[k] < 0 {
			return fmt.Errorf("sort column %q not found in %q", c, t.Name)
		}
		numeric[k] = t.numericColumn(idx[k])
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		for k, j := range idx {
			x, y := t.Rows[a][j], t.Rows[b][j]
			if x == y {
				continue
			}
			if numeric[k] {
				fx, _ := strconv.ParseFloat(x, 64)
				fy, _ := strconv.ParseFloat(y, 64)
				if fx != fy {
					return fx < fy
				}
				continue
			}
			return x < y
		}
		return false
	})
	return nil
}

func (t *Table) numericColumn(j int) bool {
	for _, r := range t.Rows {
		if _, err := strconv.ParseFloat(strings.TrimSpace(r[j]), 64); err != nil {
			return false
		}
	}
	return true
}

// FormatFloat renders a number the way pipeline files store it: the
// shortest exact decimal, and the empty string for NaN.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFloat parses a stored number. The empty string is NaN.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
