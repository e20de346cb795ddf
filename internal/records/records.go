// Package records converts between tidy tables and typed records.
package records

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/housetax/internal/table"
	"github.com/leapstack-labs/housetax/pkg/core"
)

const stageDecode = "decode"

type decoder struct {
	t    *table.Table
	cols map[string]int
	row  int
	err  error
}

func newDecoder(t *table.Table, required ...string) (*decoder, error) {
	if missing := t.Missing(required...); len(missing) > 0 {
		return nil, core.NewSourceFormatError(stageDecode, t.Name, missing[0], "",
			"expected column is absent (missing: %s)", strings.Join(missing, ", "))
	}
	d := &decoder{t: t, cols: make(map[string]int, len(required))}
	for _, c := range required {
		d.cols[c] = t.Index(c)
	}
	return d, nil
}

func (d *decoder) str(col string) string {
	return strings.TrimSpace(d.t.Rows[d.row][d.cols[col]])
}

func (d *decoder) key() string {
	if j, ok := d.cols[core.ColCode3]; ok {
		k := d.t.Rows[d.row][j]
		if y, ok := d.cols[core.ColYear]; ok {
			k += "/" + d.t.Rows[d.row][y]
		}
		return k
	}
	return "row " + strconv.Itoa(d.row+1)
}

func (d *decoder) year() int {
	s := d.str(core.ColYear)
	v, err := strconv.Atoi(s)
	if err != nil && d.err == nil {
		d.err = core.NewSourceFormatError(stageDecode, d.t.Name, core.ColYear, d.key(), "year %q is not an integer", s).WithCause(err)
	}
	return v
}

func (d *decoder) float(col string) float64 {
	s := d.str(col)
	v, err := table.ParseFloat(s)
	if err != nil && d.err == nil {
		d.err = core.NewSourceFormatError(stageDecode, d.t.Name, col, d.key(), "value %q is not a number", s).WithCause(err)
	}
	return v
}

// CountryCodes decodes a tidy country-code table.
func CountryCodes(t *table.Table) ([]core.CountryCode, error) {
	d, err := newDecoder(t, core.ColCode3, core.ColCountry)
	if err != nil {
		return nil, err
	}
	optional := func(col string) string {
		if j := t.Index(col); j >= 0 {
			return strings.TrimSpace(t.Rows[d.row][j])
		}
		return ""
	}
	out := make([]core.CountryCode, 0, t.Len())
	for d.row = 0; d.row < t.Len(); d.row++ {
		out = append(out, core.CountryCode{
			Code2:        optional(core.ColCode2),
			Code3:        d.str(core.ColCode3),
			OfficialName: optional(core.ColOfficialName),
			Country:      d.str(core.ColCountry),
			Numeric:      optional(core.ColCodeNumeric),
			TLD:          optional(core.ColTLD),
		})
	}
	return out, nil
}

// HousePrices decodes a tidy house-price table.
func HousePrices(t *table.Table) ([]core.HousePriceRecord, error) {
	d, err := newDecoder(t, core.ColCode3, core.ColYear, core.ColPriceIncomeRatio, core.ColRealPriceIndex)
	if err != nil {
		return nil, err
	}
	out := make([]core.HousePriceRecord, 0, t.Len())
	for d.row = 0; d.row < t.Len(); d.row++ {
		out = append(out, core.HousePriceRecord{
			Code3:            d.str(core.ColCode3),
			Year:             d.year(),
			PriceIncomeRatio: d.float(core.ColPriceIncomeRatio),
			RealPriceIndex:   d.float(core.ColRealPriceIndex),
		})
		if d.err != nil {
			return nil, d.err
		}
	}
	return out, nil
}

// PropertyTax decodes a tidy property-tax table.
func PropertyTax(t *table.Table) ([]core.PropertyTaxRecord, error) {
	d, err := newDecoder(t, core.ColCode3, core.ColYear, core.ColPctGDP, core.ColPctTotalTax)
	if err != nil {
		return nil, err
	}
	out := make([]core.PropertyTaxRecord, 0, t.Len())
	for d.row = 0; d.row < t.Len(); d.row++ {
		out = append(out, core.PropertyTaxRecord{
			Code3:       d.str(core.ColCode3),
			Year:        d.year(),
			PctGDP:      d.float(core.ColPctGDP),
			PctTotalTax: d.float(core.ColPctTotalTax),
		})
		if d.err != nil {
			return nil, d.err
		}
	}
	return out, nil
}

// Combined decodes the combined dataset.
func Combined(t *table.Table) ([]core.CombinedRecord, error) {
	d, err := newDecoder(t, core.CombinedColumns...)
	if err != nil {
		return nil, err
	}
	out := make([]core.CombinedRecord, 0, t.Len())
	for d.row = 0; d.row < t.Len(); d.row++ {
		out = append(out, core.CombinedRecord{
			Code3:            d.str(core.ColCode3),
			Country:          d.str(core.ColCountry),
			CountryLabel:     d.str(core.ColCountryLabel),
			Year:             d.year(),
			PriceIncomeRatio: d.float(core.ColPriceIncomeRatio),
			RealPriceIndex:   d.float(core.ColRealPriceIndex),
			PctGDP:           d.float(core.ColPctGDP),
			PctTotalTax:      d.float(core.ColPctTotalTax),
		})
		if d.err != nil {
			return nil, d.err
		}
	}
	return out, nil
}

// CombinedTable encodes combined records in the canonical column order.
func CombinedTable(name string, recs []core.CombinedRecord) *table.Table {
	t := table.New(name, core.CombinedColumns...)
	t.Rows = make([][]string, 0, len(recs))
	for _, r := range recs {
		t.Rows = append(t.Rows, []string{
			r.Code3,
			r.Country,
			r.CountryLabel,
			strconv.Itoa(r.Year),
			table.FormatFloat(r.PriceIncomeRatio),
			table.FormatFloat(r.RealPriceIndex),
			table.FormatFloat(r.PctGDP),
			table.FormatFloat(r.PctTotalTax),
		})
	}
	return t
}
