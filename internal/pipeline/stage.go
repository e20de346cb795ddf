// Package pipeline runs the housetax stages: download, tidy, combine and
// plot. Each stage reads files and writes exactly one output file, so a
// configured list of stages forms a dependency graph through its paths.
package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Kind names what a stage does.
type Kind string

// Stage kinds.
const (
	KindDownload Kind = "download"
	KindTidy     Kind = "tidy"
	KindCombine  Kind = "combine"
	KindBar      Kind = "bar"
	KindScatter  Kind = "scatter"
)

// Kinds lists every stage kind.
var Kinds = []Kind{KindDownload, KindTidy, KindCombine, KindBar, KindScatter}

// Stage is one configured pipeline step.
type Stage struct {
	Name   string   `koanf:"name" yaml:"name"`
	Kind   Kind     `koanf:"kind" yaml:"kind"`
	Inputs []string `koanf:"inputs" yaml:"inputs,omitempty"`
	Output string   `koanf:"output" yaml:"output"`

	// download
	URL string `koanf:"url" yaml:"url,omitempty"`
	// tidy
	Schema string `koanf:"schema" yaml:"schema,omitempty"`
	// bar
	Var   string `koanf:"var" yaml:"var,omitempty"`
	Label string `koanf:"label" yaml:"label,omitempty"`
	// scatter
	XVar   string `koanf:"x_var" yaml:"x_var,omitempty"`
	XLabel string `koanf:"x_label" yaml:"x_label,omitempty"`
	YVar   string `koanf:"y_var" yaml:"y_var,omitempty"`
	YLabel string `koanf:"y_label" yaml:"y_label,omitempty"`
}

// Validate checks that the fields the stage kind needs are set.
func (s Stage) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("stage has no name")
	}
	if s.Output == "" {
		return fmt.Errorf("stage %q: output is required", s.Name)
	}

	want := map[Kind]int{KindDownload: 0, KindTidy: 1, KindCombine: 3, KindBar: 1, KindScatter: 1}
	n, ok := want[s.Kind]
	if !ok {
		return fmt.Errorf("stage %q: unknown kind %q (valid: %s)", s.Name, s.Kind, kindList())
	}
	if len(s.Inputs) != n {
		return fmt.Errorf("stage %q: %s takes %d input(s), got %d", s.Name, s.Kind, n, len(s.Inputs))
	}

	switch s.Kind {
	case KindTidy:
		if s.Schema == "" {
			return fmt.Errorf("stage %q: schema is required", s.Name)
		}
	case KindBar:
		if s.Var == "" {
			return fmt.Errorf("stage %q: var is required", s.Name)
		}
	case KindScatter:
		if s.XVar == "" || s.YVar == "" {
			return fmt.Errorf("stage %q: x_var and y_var are required", s.Name)
		}
	}
	return nil
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// ValidKind reports whether k is a known stage kind.
func ValidKind(k Kind) bool { return slices.Contains(Kinds, k) }

func cleanPath(p string) string { return filepath.Clean(p) }

// DefaultStages is the full pipeline over the default data layout.
// The raw OECD exports are expected under data/raw.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "download-country-codes", Kind: KindDownload, Output: "data/raw/country-codes.tsv"},
		{Name: "tidy-country-codes", Kind: KindTidy, Schema: "country-codes",
			Inputs: []string{"data/raw/country-codes.tsv"}, Output: "data/tidy/country-codes.tsv"},
		{Name: "tidy-house-prices", Kind: KindTidy, Schema: "house-prices",
			Inputs: []string{"data/raw/house-prices.csv"}, Output: "data/tidy/house-prices.tsv"},
		{Name: "tidy-property-tax", Kind: KindTidy, Schema: "property-tax",
			Inputs: []string{"data/raw/property-tax.csv"}, Output: "data/tidy/property-tax.tsv"},
		{Name: "combine", Kind: KindCombine,
			Inputs: []string{"data/tidy/country-codes.tsv", "data/tidy/house-prices.tsv", "data/tidy/property-tax.tsv"},
			Output: "data/combined.tsv"},
		{Name: "plot-real-price-index", Kind: KindBar, Inputs: []string{"data/combined.tsv"},
			Var: "RealPriceIndex", Label: "Real Price Index", Output: "figures/real-price-index.png"},
		{Name: "plot-price-income-ratio", Kind: KindBar, Inputs: []string{"data/combined.tsv"},
			Var: "PriceIncomeRatio", Label: "Price to Income Ratio", Output: "figures/price-income-ratio.png"},
		{Name: "plot-property-tax", Kind: KindBar, Inputs: []string{"data/combined.tsv"},
			Var: "PctGDP", Label: "Property Tax (% of GDP)", Output: "figures/property-tax.png"},
		{Name: "plot-tax-vs-prices", Kind: KindScatter, Inputs: []string{"data/combined.tsv"},
			XVar: "PctGDP", XLabel: "Property Tax (% of GDP)",
			YVar: "RealPriceIndex", YLabel: "Real Price Index",
			Output: "figures/tax-vs-prices.png"},
	}
}
