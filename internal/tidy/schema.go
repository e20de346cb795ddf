// Package tidy turns raw source tables into tidy tables, one row per
// observation and one semantically named column per variable.
//
// A Schema declares the transformation. Normalize compiles it into a
// chain of steps and applies them in a fixed order.
package tidy

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Schema declares how one source is tidied.
type Schema struct {
	Name           string            `koanf:"name" yaml:"name"`
	Description    string            `koanf:"description" yaml:"description,omitempty"`
	Keep           []string          `koanf:"keep" yaml:"keep,omitempty"`
	Drop           []string          `koanf:"drop" yaml:"drop,omitempty"`
	StripFootnotes bool              `koanf:"strip_footnotes" yaml:"strip_footnotes,omitempty"`
	Pivot          *Pivot            `koanf:"pivot" yaml:"pivot,omitempty"`
	Rename         map[string]string `koanf:"rename" yaml:"rename,omitempty"`
	Corrections    []Correction      `koanf:"corrections" yaml:"corrections,omitempty"`
	DropEqual      []string          `koanf:"drop_equal" yaml:"drop_equal,omitempty"`
	Filters        []Filter          `koanf:"filters" yaml:"filters,omitempty"`
	SortBy         []string          `koanf:"sort_by" yaml:"sort_by,omitempty"`
}

// Pivot reshapes long data to wide: one row per Index tuple and one
// column per measure found in Columns, filled from Values.
type Pivot struct {
	Index   []string `koanf:"index" yaml:"index"`
	Columns string   `koanf:"columns" yaml:"columns"`
	Values  string   `koanf:"values" yaml:"values"`
	// Measures to keep, in output order. Empty keeps every measure
	// in order of first appearance.
	Measures []string `koanf:"measures" yaml:"measures,omitempty"`
}

// Correction overwrites one cell of the row whose KeyColumn equals Key.
type Correction struct {
	Name      string `koanf:"name" yaml:"name,omitempty"`
	KeyColumn string `koanf:"key_column" yaml:"key_column"`
	Key       string `koanf:"key" yaml:"key"`
	Column    string `koanf:"column" yaml:"column"`
	Value     string `koanf:"value" yaml:"value"`
}

// Filter keeps the rows whose Column satisfies Op against Value.
type Filter struct {
	Column string `koanf:"column" yaml:"column"`
	Op     string `koanf:"op" yaml:"op"`
	Value  string `koanf:"value" yaml:"value"`
}

// Filter operators.
const (
	OpEq          = "eq"
	OpNe          = "ne"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpGte         = "gte"
	OpLte         = "lte"
)

var knownOps = []string{OpEq, OpNe, OpContains, OpNotContains, OpGte, OpLte}

// Validate checks the schema for declarations that can never succeed.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if len(s.Keep) > 0 && len(s.Drop) > 0 {
		return fmt.Errorf("schema %q: keep and drop are mutually exclusive", s.Name)
	}
	if p := s.Pivot; p != nil {
		if len(p.Index) == 0 || p.Columns == "" || p.Values == "" {
			return fmt.Errorf("schema %q: pivot needs index, columns and values", s.Name)
		}
	}
	for i, c := range s.Corrections {
		if c.KeyColumn == "" || c.Column == "" {
			return fmt.Errorf("schema %q: correction %d needs key_column and column", s.Name, i+1)
		}
	}
	if len(s.DropEqual) != 0 && len(s.DropEqual) != 2 {
		return fmt.Errorf("schema %q: drop_equal takes exactly two columns", s.Name)
	}
	for _, f := range s.Filters {
		if f.Column == "" {
			return fmt.Errorf("schema %q: filter column is required", s.Name)
		}
		if !slices.Contains(knownOps, f.Op) {
			return fmt.Errorf("schema %q: unknown filter op %q (valid: %s)", s.Name, f.Op, strings.Join(knownOps, ", "))
		}
	}
	return nil
}

// Schema names of the built-in sources.
const (
	CountryCodes = "country-codes"
	HousePrices  = "house-prices"
	PropertyTax  = "property-tax"
)

// Builtin returns a fresh copy of a built-in schema.
func Builtin(name string) (*Schema, bool) {
	fn, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// BuiltinNames lists the built-in schema names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve looks a schema up in overrides first, then in the built-ins.
func Resolve(name string, overrides map[string]Schema) (*Schema, error) {
	if s, ok := overrides[name]; ok {
		s.Name = name
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return &s, nil
	}
	if s, ok := Builtin(name); ok {
		return s, nil
	}
	known := BuiltinNames()
	for n := range overrides {
		if !slices.Contains(known, n) {
			known = append(known, n)
		}
	}
	sort.Strings(known)
	return nil, fmt.Errorf("unknown schema %q (available: %s)", name, strings.Join(known, ", "))
}

var builtins = map[string]func() *Schema{
	CountryCodes: func() *Schema {
		return &Schema{
			Name:           CountryCodes,
			Description:    "ISO 3166 country codes scraped from Wikipedia",
			Keep:           []string{"Country name", "Official state name", "Alpha-2 code", "Alpha-3 code", "Numeric code", "Internet ccTLD"},
			StripFootnotes: true,
			Rename: map[string]string{
				"Country name":        "Country",
				"Official state name": "OfficialName",
				"Alpha-2 code":        "Code2",
				"Alpha-3 code":        "Code3",
				"Numeric code":        "CodeNumeric",
				"Internet ccTLD":      "TLD",
			},
			// The Afghanistan row carries stray markup in its Alpha-2 cell.
			Corrections: []Correction{
				{Name: "afghanistan-code2", KeyColumn: "Code3", Key: "AFG", Column: "Code2", Value: "AF"},
			},
			DropEqual: []string{"Code2", "Code3"},
			SortBy:    []string{"Country"},
		}
	},
	HousePrices: func() *Schema {
		return &Schema{
			Name:        HousePrices,
			Description: "OECD analytical house price indicators",
			Drop: []string{
				"Country", "Indicator", "Time", "Unit Code", "Unit", "PowerCode Code", "PowerCode",
				"Reference Period Code", "Reference Period", "Flag Codes", "Flags",
			},
			Pivot: &Pivot{
				Index:    []string{"COU", "TIME"},
				Columns:  "IND",
				Values:   "Value",
				Measures: []string{"HPI_YDH_AVG", "RHP"},
			},
			Rename: map[string]string{
				"COU":         "Code3",
				"TIME":        "Year",
				"HPI_YDH_AVG": "PriceIncomeRatio",
				"RHP":         "RealPriceIndex",
			},
			Filters: []Filter{{Column: "Year", Op: OpNotContains, Value: "Q"}},
		}
	},
	PropertyTax: func() *Schema {
		return &Schema{
			Name:        PropertyTax,
			Description: "OECD revenue statistics for taxes on property",
			Drop:        []string{"INDICATOR", "SUBJECT", "FREQUENCY", "Flag Codes"},
			Pivot: &Pivot{
				Index:    []string{"LOCATION", "TIME"},
				Columns:  "MEASURE",
				Values:   "Value",
				Measures: []string{"PC_GDP", "PC_TOT_TAX"},
			},
			Rename: map[string]string{
				"LOCATION":   "Code3",
				"TIME":       "Year",
				"PC_GDP":     "PctGDP",
				"PC_TOT_TAX": "PctTotalTax",
			},
			Filters: []Filter{{Column: "Year", Op: OpGte, Value: "2000"}},
		}
	},
}
