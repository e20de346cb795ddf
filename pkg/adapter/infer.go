package adapter

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/housetax/internal/table"
)

// Kind is the value type inferred for a column of a pipeline file.
type Kind int

// Column kinds, from narrowest to widest.
const (
	KindInteger Kind = iota
	KindReal
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	}
	return "text"
}

// IsNull reports whether a cell holds no value. Empty and "nan" cells
// are missing.
func IsNull(cell string) bool {
	s := strings.TrimSpace(cell)
	return s == "" || strings.EqualFold(s, "nan")
}

// InferKinds returns one kind per column: integer when every non-empty
// cell is an integer, real when every one is a number, text otherwise.
// A column without values is text.
func InferKinds(t *table.Table) []Kind {
	kinds := make([]Kind, len(t.Columns))
	for j := range t.Columns {
		kinds[j] = inferColumn(t, j)
	}
	return kinds
}

func inferColumn(t *table.Table, j int) Kind {
	kind := KindInteger
	seen := false
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[j])
		if IsNull(cell) {
			continue
		}
		seen = true
		if kind == KindInteger {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			kind = KindReal
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return KindText
		}
	}
	if !seen {
		return KindText
	}
	return kind
}

// Convert returns the driver value of a cell: nil for a missing value,
// int64 or float64 for numeric kinds, the trimmed string otherwise.
func Convert(cell string, kind Kind) any {
	if IsNull(cell) {
		return nil
	}
	cell = strings.TrimSpace(cell)
	switch kind {
	case KindInteger:
		v, _ := strconv.ParseInt(cell, 10, 64)
		return v
	case KindReal:
		v, _ := strconv.ParseFloat(cell, 64)
		return v
	}
	return cell
}
