// Package chart renders the comparison figures: paired horizontal bar
// charts of current values and changes, and paired scatter plots with a
// least-squares fit.
package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/leapstack-labs/housetax/pkg/core"
)

// Derived holds the chart-time views of one indicator.
//
// Series is ordered by the latest-year value descending, ties broken by
// Code3. The current view reads Last and the change view reads Change;
// both share this order.
type Derived struct {
	Column    string
	FirstYear int
	LastYear  int
	Series    []core.DerivedSeries
	// Excluded lists countries without a row in the latest year or with
	// a missing value at either end of their range.
	Excluded []string
}

// ValidateColumn reports an unknown indicator name together with the valid ones.
func ValidateColumn(column string) error {
	for _, c := range core.IndicatorColumns {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("unknown variable %q (valid: %s)", column, strings.Join(core.IndicatorColumns, ", "))
}

// Views derives the current and change views for a column.
func Views(recs []core.CombinedRecord, column string) (*Derived, error) {
	if err := ValidateColumn(column); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records to plot")
	}

	type span struct {
		first, last         core.CombinedRecord
		firstYear, lastYear int
	}
	byCode := make(map[string]*span)
	var order []string
	d := &Derived{Column: column, FirstYear: math.MaxInt, LastYear: math.MinInt}
	for _, r := range recs {
		d.FirstYear = min(d.FirstYear, r.Year)
		d.LastYear = max(d.LastYear, r.Year)
		s, ok := byCode[r.Code3]
		if !ok {
			byCode[r.Code3] = &span{first: r, last: r, firstYear: r.Year, lastYear: r.Year}
			order = append(order, r.Code3)
			continue
		}
		if r.Year < s.firstYear {
			s.first, s.firstYear = r, r.Year
		}
		if r.Year > s.lastYear {
			s.last, s.lastYear = r, r.Year
		}
	}

	for _, code := range order {
		s := byCode[code]
		if s.lastYear != d.LastYear {
			d.Excluded = append(d.Excluded, code)
			continue
		}
		first, _ := s.first.Value(column)
		last, _ := s.last.Value(column)
		if !finite(first) || !finite(last) {
			d.Excluded = append(d.Excluded, code)
			continue
		}
		d.Series = append(d.Series, core.DerivedSeries{
			Code3:        code,
			Country:      s.last.Country,
			CountryLabel: s.last.CountryLabel,
			First:        first,
			Last:         last,
			Change:       last - first,
		})
	}
	sort.SliceStable(d.Series, func(i, j int) bool {
		a, b := d.Series[i], d.Series[j]
		if a.Last != b.Last {
			return a.Last > b.Last
		}
		return a.Code3 < b.Code3
	})
	sort.Strings(d.Excluded)
	return d, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Current returns the latest-year values in series order.
func (d *Derived) Current() []float64 {
	out := make([]float64, len(d.Series))
	for i, s := range d.Series {
		out[i] = s.Last
	}
	return out
}

// Changes returns Last - First in series order.
func (d *Derived) Changes() []float64 {
	out := make([]float64, len(d.Series))
	for i, s := range d.Series {
		out[i] = s.Change
	}
	return out
}

// Labels returns the display labels in series order.
func (d *Derived) Labels() []string {
	out := make([]string, len(d.Series))
	for i, s := range d.Series {
		out[i] = s.CountryLabel
	}
	return out
}

// Codes returns the Code3 values in series order.
func (d *Derived) Codes() []string {
	out := make([]string, len(d.Series))
	for i, s := range d.Series {
		out[i] = s.Code3
	}
	return out
}
