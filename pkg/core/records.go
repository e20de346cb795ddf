package core

import "math"

// Column names shared by the tidy files and the combined dataset.
const (
	ColCode2            = "Code2"
	ColCode3            = "Code3"
	ColCodeNumeric      = "CodeNumeric"
	ColCountry          = "Country"
	ColOfficialName     = "OfficialName"
	ColTLD              = "TLD"
	ColCountryLabel     = "CountryLabel"
	ColYear             = "Year"
	ColPriceIncomeRatio = "PriceIncomeRatio"
	ColRealPriceIndex   = "RealPriceIndex"
	ColPctGDP           = "PctGDP"
	ColPctTotalTax      = "PctTotalTax"
)

// CombinedColumns is the column order of the combined dataset.
var CombinedColumns = []string{
	ColCode3, ColCountry, ColCountryLabel, ColYear,
	ColPriceIncomeRatio, ColRealPriceIndex, ColPctGDP, ColPctTotalTax,
}

// IndicatorColumns are the numeric columns a chart can be drawn from.
var IndicatorColumns = []string{
	ColPriceIncomeRatio, ColRealPriceIndex, ColPctGDP, ColPctTotalTax,
}

// CountryCode is one row of the ISO 3166 reference table.
type CountryCode struct {
	Code2        string
	Code3        string
	OfficialName string
	Country      string
	Numeric      string
	TLD          string
}

// HousePriceRecord holds the house-price indicators for one country and year.
type HousePriceRecord struct {
	Code3            string
	Year             int
	PriceIncomeRatio float64
	RealPriceIndex   float64
}

// PropertyTaxRecord holds the property-tax indicators for one country and year.
type PropertyTaxRecord struct {
	Code3       string
	Year        int
	PctGDP      float64
	PctTotalTax float64
}

// CombinedRecord is one row of the joined dataset.
type CombinedRecord struct {
	Code3            string
	Country          string
	CountryLabel     string
	Year             int
	PriceIncomeRatio float64
	RealPriceIndex   float64
	PctGDP           float64
	PctTotalTax      float64
}

// Value returns the indicator named by column and whether the name is known.
func (r CombinedRecord) Value(column string) (float64, bool) {
	switch column {
	case ColPriceIncomeRatio:
		return r.PriceIncomeRatio, true
	case ColRealPriceIndex:
		return r.RealPriceIndex, true
	case ColPctGDP:
		return r.PctGDP, true
	case ColPctTotalTax:
		return r.PctTotalTax, true
	}
	return math.NaN(), false
}

// Complete reports whether every field of the record is present.
func (r CombinedRecord) Complete() bool {
	if r.Code3 == "" || r.Country == "" || r.CountryLabel == "" {
		return false
	}
	for _, v := range []float64{r.PriceIncomeRatio, r.RealPriceIndex, r.PctGDP, r.PctTotalTax} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// DerivedSeries is the per-country summary a chart is drawn from.
type DerivedSeries struct {
	Code3        string
	Country      string
	CountryLabel string
	First        float64
	Last         float64
	Change       float64
}
