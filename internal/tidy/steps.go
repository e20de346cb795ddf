package tidy

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/pkg/core"
)

const stageTidy = "tidy"

var (
	cellFootnote   = regexp.MustCompile(`\s?\[[a-z]+\]\s?`)
	headerFootnote = regexp.MustCompile(`\s*\[[0-9a-z]+\]`)
)

// Step is one transformation in a tidy chain.
type Step interface {
	Name() string
	Apply(t *table.Table) (*table.Table, error)
}

// Chain is an ordered list of steps.
type Chain []Step

// Apply runs every step in order and stops at the first error.
func (c Chain) Apply(t *table.Table, logger *slog.Logger) (*table.Table, error) {
	for _, s := range c {
		var err error
		before := t.Len()
		t, err = s.Apply(t)
		if err != nil {
			return nil, err
		}
		logger.Debug("tidy step applied", "step", s.Name(), "rows_in", before, "rows_out", t.Len())
	}
	return t, nil
}

// Compile builds the step chain a schema describes.
func Compile(s *Schema, logger *slog.Logger) (Chain, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var c Chain
	if len(s.Keep) > 0 {
		c = append(c, keepStep{source: s.Name, columns: s.Keep, stripHeaders: s.StripFootnotes})
	}
	if len(s.Drop) > 0 {
		c = append(c, dropStep{source: s.Name, columns: s.Drop})
	}
	if s.StripFootnotes {
		c = append(c, footnoteStep{})
	}
	if s.Pivot != nil {
		c = append(c, pivotStep{source: s.Name, pivot: *s.Pivot})
	}
	if len(s.Rename) > 0 {
		c = append(c, renameStep{names: s.Rename})
	}
	if len(s.Corrections) > 0 {
		c = append(c, correctionStep{source: s.Name, corrections: s.Corrections, logger: logger})
	}
	if len(s.DropEqual) == 2 {
		c = append(c, dropEqualStep{source: s.Name, a: s.DropEqual[0], b: s.DropEqual[1]})
	}
	for _, f := range s.Filters {
		c = append(c, filterStep{source: s.Name, filter: f})
	}
	if len(s.SortBy) > 0 {
		c = append(c, sortStep{columns: s.SortBy})
	}
	return c, nil
}

// Normalize applies a schema to a raw table. The input is not modified.
func Normalize(raw *table.Table, s *Schema, logger *slog.Logger) (*table.Table, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	chain, err := Compile(s, logger)
	if err != nil {
		return nil, err
	}
	out, err := chain.Apply(raw.Clone(), logger.With("schema", s.Name))
	if err != nil {
		return nil, err
	}
	out.Name = s.Name
	return out, nil
}

func requireColumns(source string, t *table.Table, columns ...string) error {
	if missing := t.Missing(columns...); len(missing) > 0 {
		return core.NewSourceFormatError(stageTidy, source, missing[0], "",
			"expected column is absent (missing: %s)", strings.Join(missing, ", "))
	}
	return nil
}

type keepStep struct {
	source       string
	columns      []string
	stripHeaders bool
}

func (keepStep) Name() string { return "keep" }

func (s keepStep) Apply(t *table.Table) (*table.Table, error) {
	if s.stripHeaders {
		for i, c := range t.Columns {
			t.Columns[i] = strings.TrimSpace(headerFootnote.ReplaceAllString(c, ""))
		}
	}
	if err := requireColumns(s.source, t, s.columns...); err != nil {
		return nil, err
	}
	return t.Select(s.columns...)
}

type dropStep struct {
	source  string
	columns []string
}

func (dropStep) Name() string { return "drop" }

func (s dropStep) Apply(t *table.Table) (*table.Table, error) {
	if err := requireColumns(s.source, t, s.columns...); err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		drop[c] = true
	}
	var keep []string
	for _, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	return t.Select(keep...)
}

type footnoteStep struct{}

func (footnoteStep) Name() string { return "strip-footnotes" }

func (footnoteStep) Apply(t *table.Table) (*table.Table, error) {
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(headerFootnote.ReplaceAllString(c, ""))
	}
	t.MapCells(func(s string) string { return cellFootnote.ReplaceAllString(s, "") })
	return t, nil
}

type pivotStep struct {
	source string
	pivot  Pivot
}

func (pivotStep) Name() string { return "pivot" }

func (s pivotStep) Apply(t *table.Table) (*table.Table, error) {
	p := s.pivot
	if err := requireColumns(s.source, t, append(append([]string{}, p.Index...), p.Columns, p.Values)...); err != nil {
		return nil, err
	}
	idx := make([]int, len(p.Index))
	for k, c := range p.Index {
		idx[k] = t.Index(c)
	}
	mcol, vcol := t.Index(p.Columns), t.Index(p.Values)

	measures := append([]string(nil), p.Measures...)
	declared := make(map[string]bool, len(measures))
	for _, m := range measures {
		declared[m] = true
	}
	seen := make(map[string]bool)

	type wideRow struct {
		index  []string
		values map[string]string
	}
	var order []string
	rows := make(map[string]*wideRow)

	for _, r := range t.Rows {
		m := r[mcol]
		if len(declared) > 0 && !declared[m] {
			continue
		}
		if !seen[m] {
			seen[m] = true
			if len(p.Measures) == 0 {
				measures = append(measures, m)
			}
		}
		key := make([]string, len(idx))
		for k, j := range idx {
			key[k] = r[j]
		}
		k := strings.Join(key, "|")
		w, ok := rows[k]
		if !ok {
			w = &wideRow{index: key, values: make(map[string]string)}
			rows[k] = w
			order = append(order, k)
		}
		if _, dup := w.values[m]; dup {
			return nil, core.NewSourceFormatError(stageTidy, s.source, p.Values, k+"|"+m,
				"duplicate entry for pivot key")
		}
		w.values[m] = r[vcol]
	}
	for _, m := range p.Measures {
		if !seen[m] {
			return nil, core.NewSourceFormatError(stageTidy, s.source, p.Columns, m,
				"declared measure never appears")
		}
	}

	out := table.New(t.Name, append(append([]string{}, p.Index...), measures...)...)
	for _, k := range order {
		w := rows[k]
		row := append([]string(nil), w.index...)
		for _, m := range measures {
			row = append(row, w.values[m])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := out.SortBy(p.Index...); err != nil {
		return nil, err
	}
	return out, nil
}

type renameStep struct {
	names map[string]string
}

func (renameStep) Name() string { return "rename" }

func (s renameStep) Apply(t *table.Table) (*table.Table, error) {
	t.Rename(s.names)
	return t, nil
}

type correctionStep struct {
	source      string
	corrections []Correction
	logger      *slog.Logger
}

func (correctionStep) Name() string { return "corrections" }

func (s correctionStep) Apply(t *table.Table) (*table.Table, error) {
	for _, c := range s.corrections {
		if err := requireColumns(s.source, t, c.KeyColumn, c.Column); err != nil {
			return nil, err
		}
		kj, cj := t.Index(c.KeyColumn), t.Index(c.Column)
		applied := 0
		for _, r := range t.Rows {
			if r[kj] == c.Key {
				r[cj] = c.Value
				applied++
			}
		}
		if applied == 0 {
			s.logger.Warn("correction matched no row", "correction", c.Name, "key_column", c.KeyColumn, "key", c.Key)
		}
	}
	return t, nil
}

type dropEqualStep struct {
	source string
	a, b   string
}

func (dropEqualStep) Name() string { return "drop-equal" }

func (s dropEqualStep) Apply(t *table.Table) (*table.Table, error) {
	if err := requireColumns(s.source, t, s.a, s.b); err != nil {
		return nil, err
	}
	ai, bi := t.Index(s.a), t.Index(s.b)
	t.Filter(func(r []string) bool { return r[ai] != r[bi] })
	return t, nil
}

type filterStep struct {
	source string
	filter Filter
}

func (s filterStep) Name() string { return "filter:" + s.filter.Op }

func (s filterStep) Apply(t *table.Table) (*table.Table, error) {
	f := s.filter
	if err := requireColumns(s.source, t, f.Column); err != nil {
		return nil, err
	}
	j := t.Index(f.Column)

	var pred func(string) (bool, error)
	switch f.Op {
	case OpEq:
		pred = func(v string) (bool, error) { return v == f.Value, nil }
	case OpNe:
		pred = func(v string) (bool, error) { return v != f.Value, nil }
	case OpContains:
		pred = func(v string) (bool, error) { return strings.Contains(v, f.Value), nil }
	case OpNotContains:
		pred = func(v string) (bool, error) { return !strings.Contains(v, f.Value), nil }
	case OpGte, OpLte:
		bound, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: bound %q is not a number", f.Column, f.Value)
		}
		pred = func(v string) (bool, error) {
			x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return false, core.NewSourceFormatError(stageTidy, s.source, f.Column, v, "value is not a number")
			}
			if f.Op == OpGte {
				return x >= bound, nil
			}
			return x <= bound, nil
		}
	default:
		return nil, fmt.Errorf("unknown filter op %q", f.Op)
	}

	var ferr error
	t.Filter(func(r []string) bool {
		if ferr != nil {
			return false
		}
		ok, err := pred(r[j])
		if err != nil {
			ferr = err
		}
		return ok
	})
	if ferr != nil {
		return nil, ferr
	}
	return t, nil
}

type sortStep struct {
	columns []string
}

func (sortStep) Name() string { return "sort" }

func (s sortStep) Apply(t *table.Table) (*table.Table, error) {
	return t, t.SortBy(s.columns...)
}
