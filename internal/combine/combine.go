// Package combine joins the tidy country, house-price and property-tax
// tables into one labelled dataset and applies the completeness filter.
package combine

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/leapstack-labs/housetax/pkg/core"
)

const stageCombine = "combine"

// LabelOverride replaces a long reference name with a display name.
type LabelOverride struct {
	Name  string `koanf:"name" yaml:"name"`
	Label string `koanf:"label" yaml:"label"`
}

// Options configures the join.
type Options struct {
	AggregateCode     string
	AggregateAliases  []string
	AggregateName     string
	FirstYear         int
	LastYear          int
	RequireContiguous bool
	LabelOverrides    []LabelOverride
	Logger            *slog.Logger
}

// DefaultLabelOverrides are the display names used for OECD members whose
// ISO names are unwieldy on a chart axis.
func DefaultLabelOverrides() []LabelOverride {
	return []LabelOverride{
		{Name: "United Kingdom of Great Britain and Northern Ireland (the)", Label: "United Kingdom"},
		{Name: "Korea (the Republic of)", Label: "Republic of Korea"},
		{Name: "United States of America (the)", Label: "United States"},
		{Name: "Netherlands (the)", Label: "Netherlands"},
	}
}

// DefaultOptions returns the OECD 2000-2020 configuration.
func DefaultOptions() Options {
	return Options{
		AggregateCode:    "OECD",
		AggregateAliases: []string{"OAVG"},
		AggregateName:    "OECD Average",
		FirstYear:        2000,
		LastYear:         2020,
		LabelOverrides:   DefaultLabelOverrides(),
	}
}

// Gap is a country kept by the endpoint check whose years are not contiguous.
type Gap struct {
	Code3   string
	Missing []int
}

// Result is the combined dataset plus what the filters removed.
type Result struct {
	Records    []core.CombinedRecord
	Dropped    []string
	Gaps       []Gap
	Incomplete int
}

type key struct {
	code string
	year int
}

func (k key) String() string { return fmt.Sprintf("%s/%d", k.code, k.year) }

// NormalizeAggregate rewrites aggregate aliases to the canonical code.
// Applying it twice gives the same result as applying it once.
func NormalizeAggregate(recs []core.PropertyTaxRecord, aliases []string, code string) []core.PropertyTaxRecord {
	out := make([]core.PropertyTaxRecord, len(recs))
	for i, r := range recs {
		if slices.Contains(aliases, r.Code3) {
			r.Code3 = code
		}
		out[i] = r
	}
	return out
}

// Label builds the display label for a country name and code.
func Label(name, code string, overrides []LabelOverride) string {
	if name == "" {
		return ""
	}
	for _, o := range overrides {
		if o.Name == name {
			name = o.Label
			break
		}
	}
	return name + " (" + code + ")"
}

// Combine joins the three sources. Duplicate join keys in any source are
// a JoinIntegrityError.
func Combine(codes []core.CountryCode, prices []core.HousePriceRecord, taxes []core.PropertyTaxRecord, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.FirstYear > opts.LastYear {
		return nil, fmt.Errorf("first year %d is after last year %d", opts.FirstYear, opts.LastYear)
	}

	taxes = NormalizeAggregate(taxes, opts.AggregateAliases, opts.AggregateCode)

	taxByKey := make(map[key]core.PropertyTaxRecord, len(taxes))
	taxCodes := make(map[string]bool)
	for _, r := range taxes {
		k := key{r.Code3, r.Year}
		if _, dup := taxByKey[k]; dup {
			return nil, core.NewJoinIntegrityError(stageCombine, "property tax", k.String(), "duplicate join key")
		}
		taxByKey[k] = r
		taxCodes[r.Code3] = true
	}

	seenPrice := make(map[key]bool, len(prices))
	priceCodes := make(map[string]bool)
	for _, r := range prices {
		k := key{r.Code3, r.Year}
		if seenPrice[k] {
			return nil, core.NewJoinIntegrityError(stageCombine, "house prices", k.String(), "duplicate join key")
		}
		seenPrice[k] = true
		priceCodes[r.Code3] = true
	}

	names, err := referenceNames(codes, opts)
	if err != nil {
		return nil, err
	}

	logger.Debug("joining sources", "house_price_codes", len(priceCodes), "property_tax_codes", len(taxCodes))

	var joined []core.CombinedRecord
	for _, p := range prices {
		if !taxCodes[p.Code3] {
			continue
		}
		t, ok := taxByKey[key{p.Code3, p.Year}]
		if !ok {
			continue
		}
		name := names[p.Code3]
		joined = append(joined, core.CombinedRecord{
			Code3:            p.Code3,
			Country:          name,
			CountryLabel:     Label(name, p.Code3, opts.LabelOverrides),
			Year:             p.Year,
			PriceIncomeRatio: p.PriceIncomeRatio,
			RealPriceIndex:   p.RealPriceIndex,
			PctGDP:           t.PctGDP,
			PctTotalTax:      t.PctTotalTax,
		})
	}

	res := &Result{}
	var window []core.CombinedRecord
	for _, r := range joined {
		if r.Year > opts.LastYear {
			continue
		}
		if !r.Complete() {
			res.Incomplete++
			continue
		}
		window = append(window, r)
	}

	byCode := make(map[string][]core.CombinedRecord)
	for _, r := range window {
		byCode[r.Code3] = append(byCode[r.Code3], r)
	}
	countries := make([]string, 0, len(byCode))
	for c := range byCode {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	for _, c := range countries {
		rows := byCode[c]
		minYear, maxYear := math.MaxInt, math.MinInt
		years := make(map[int]bool, len(rows))
		for _, r := range rows {
			minYear = min(minYear, r.Year)
			maxYear = max(maxYear, r.Year)
			years[r.Year] = true
		}
		if minYear != opts.FirstYear || maxYear != opts.LastYear {
			res.Dropped = append(res.Dropped, c)
			continue
		}
		var missing []int
		for y := opts.FirstYear; y <= opts.LastYear; y++ {
			if !years[y] {
				missing = append(missing, y)
			}
		}
		if len(missing) > 0 {
			if opts.RequireContiguous {
				res.Dropped = append(res.Dropped, c)
				continue
			}
			res.Gaps = append(res.Gaps, Gap{Code3: c, Missing: missing})
			logger.Warn("country kept with missing intermediate years", "code3", c, "missing", missing)
		}
		res.Records = append(res.Records, rows...)
	}

	sort.SliceStable(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if a.Code3 != b.Code3 {
			return a.Code3 < b.Code3
		}
		return a.Year < b.Year
	})

	logger.Info("datasets combined",
		"rows", len(res.Records),
		"countries", len(countries)-len(res.Dropped),
		"dropped", res.Dropped,
		"incomplete_rows", res.Incomplete)
	return res, nil
}

func referenceNames(codes []core.CountryCode, opts Options) (map[string]string, error) {
	names := make(map[string]string, len(codes)+1)
	for _, c := range codes {
		if _, dup := names[c.Code3]; dup {
			return nil, core.NewJoinIntegrityError(stageCombine, "country codes", c.Code3, "duplicate country code")
		}
		names[c.Code3] = c.Country
	}
	if _, ok := names[opts.AggregateCode]; !ok && opts.AggregateCode != "" {
		names[opts.AggregateCode] = opts.AggregateName
	}
	return names, nil
}
