package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/housetax/internal/combine"
	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// CheckTable is the table name the combined file is loaded under.
const CheckTable = "combined"

// maxSample is how many offending rows a failed check keeps.
const maxSample = 5

// Severity of a failed check.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check is one invariant of the combined dataset, expressed as a query
// that returns the offending rows.
type Check struct {
	Name        string
	Description string
	Severity    Severity
	SQL         string
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Check
	Violations int
	Columns    []string
	Sample     [][]string
}

// Passed reports whether the check found nothing.
func (r CheckResult) Passed() bool { return r.Violations == 0 }

// Checks returns the invariants for the given year window.
func Checks(opts combine.Options) []Check {
	code := adapter.QuoteIdent("Code3")
	year := "CAST(" + adapter.QuoteIdent("Year") + " AS INTEGER)"
	values := make([]string, 0, len(core.CombinedColumns))
	for _, c := range core.CombinedColumns {
		values = append(values, adapter.QuoteIdent(c)+" IS NULL")
	}
	tbl := adapter.QuoteIdent(CheckTable)

	return []Check{
		{
			Name:        "unique-key",
			Description: "each (Code3, Year) appears once",
			Severity:    SeverityError,
			SQL: fmt.Sprintf(`SELECT %[3]s, %[1]s AS year, COUNT(*) AS n FROM %[2]s
GROUP BY %[3]s, %[1]s HAVING COUNT(*) > 1 ORDER BY 1, 2`, year, tbl, code),
		},
		{
			Name:        "endpoints",
			Description: fmt.Sprintf("every country has rows for %d and %d", opts.FirstYear, opts.LastYear),
			Severity:    SeverityError,
			SQL: fmt.Sprintf(`SELECT %[5]s, MIN(%[1]s) AS first_year, MAX(%[1]s) AS last_year FROM %[2]s
GROUP BY %[5]s
HAVING SUM(CASE WHEN %[1]s = %[3]d THEN 1 ELSE 0 END) = 0
    OR SUM(CASE WHEN %[1]s = %[4]d THEN 1 ELSE 0 END) = 0
ORDER BY 1`, year, tbl, opts.FirstYear, opts.LastYear, code),
		},
		{
			Name:        "window",
			Description: fmt.Sprintf("no rows outside %d-%d", opts.FirstYear, opts.LastYear),
			Severity:    SeverityError,
			SQL: fmt.Sprintf(`SELECT %[5]s, %[1]s AS year FROM %[2]s
WHERE %[1]s < %[3]d OR %[1]s > %[4]d ORDER BY 1, 2`, year, tbl, opts.FirstYear, opts.LastYear, code),
		},
		{
			Name:        "no-missing-values",
			Description: "no empty cells",
			Severity:    SeverityError,
			SQL: fmt.Sprintf(`SELECT %[1]s, %[2]s FROM %[3]s WHERE %[4]s ORDER BY 1, 2`,
				code, adapter.QuoteIdent("Year"), tbl, strings.Join(values, " OR ")),
		},
		{
			Name:        "contiguous-years",
			Description: "no missing intermediate years",
			Severity:    SeverityWarning,
			SQL: fmt.Sprintf(`SELECT %[3]s, COUNT(DISTINCT %[1]s) AS years, MIN(%[1]s) AS first_year, MAX(%[1]s) AS last_year
FROM %[2]s GROUP BY %[3]s
HAVING COUNT(DISTINCT %[1]s) < MAX(%[1]s) - MIN(%[1]s) + 1 ORDER BY 1`, year, tbl, code),
		},
	}
}

// RunChecks loads the combined file into adp and runs every check.
// adp must already be connected.
func RunChecks(ctx context.Context, adp core.Adapter, path string, opts combine.Options) ([]CheckResult, error) {
	if err := adp.LoadTable(ctx, CheckTable, path); err != nil {
		return nil, err
	}

	checks := Checks(opts)
	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		rows, err := adp.Query(ctx, c.SQL)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", c.Name, err)
		}
		res, err := adapter.Collect(rows)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", c.Name, err)
		}
		r := CheckResult{Check: c, Violations: len(res.Rows), Columns: res.Columns}
		if len(res.Rows) > maxSample {
			r.Sample = res.Rows[:maxSample]
		} else {
			r.Sample = res.Rows
		}
		out = append(out, r)
	}
	return out, nil
}

// Failed returns the error-severity checks that found violations.
func Failed(results []CheckResult) []CheckResult {
	var out []CheckResult
	for _, r := range results {
		if !r.Passed() && r.Severity == SeverityError {
			out = append(out, r)
		}
	}
	return out
}
