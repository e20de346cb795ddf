package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/pipeline"
)

// CombineOptions holds options for the combine command.
type CombineOptions struct {
	CountryCodes string
	HousePrices  string
	PropertyTax  string
	OutFile      string
}

type combineOutput struct {
	Output     string   `json:"output"`
	Rows       int      `json:"rows"`
	Countries  int      `json:"countries"`
	Dropped    []string `json:"dropped"`
	Incomplete int      `json:"incomplete"`
	Gaps       []gapOut `json:"gaps,omitempty"`
}

type gapOut struct {
	Code3   string `json:"code3"`
	Missing []int  `json:"missing"`
}

// NewCombineCommand creates the combine command.
func NewCombineCommand() *cobra.Command {
	opts := &CombineOptions{}

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Join the tidy tables into the combined dataset",
		Long: `Join country codes, house prices and property tax on country and year,
label every country, and keep only countries observed in both the first
and the last year of the configured window.`,
		Example: `  housetax combine \
    --country-codes data/tidy/country-codes.tsv \
    --house-prices data/tidy/house-prices.tsv \
    --property-tax data/tidy/property-tax.tsv \
    --out-file data/combined.tsv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCombine(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.CountryCodes, "country-codes", "", "Tidy country code table")
	cmd.Flags().StringVar(&opts.HousePrices, "house-prices", "", "Tidy house price table")
	cmd.Flags().StringVar(&opts.PropertyTax, "property-tax", "", "Tidy property tax table")
	cmd.Flags().StringVar(&opts.OutFile, "out-file", "", "Path of the combined TSV to write")
	markRequired(cmd, "country-codes", "house-prices", "property-tax", "out-file")

	return cmd
}

func runCombine(cmd *cobra.Command, opts *CombineOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	res, err := cmdCtx.Runner().Combine(opts.CountryCodes, opts.HousePrices, opts.PropertyTax, opts.OutFile)
	if err != nil {
		return err
	}

	out := summarizeCombine(res)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Success(fmt.Sprintf("Wrote %d rows for %d countries to %s", out.Rows, out.Countries, out.Output))
	if len(out.Dropped) > 0 {
		r.Warning(fmt.Sprintf("Dropped %d countries without both endpoint years: %s", len(out.Dropped), strings.Join(out.Dropped, ", ")))
	}
	if out.Incomplete > 0 {
		r.Muted(fmt.Sprintf("%d joined rows had missing values", out.Incomplete))
	}
	for _, g := range out.Gaps {
		years := make([]string, len(g.Missing))
		for i, y := range g.Missing {
			years[i] = strconv.Itoa(y)
		}
		r.Warning(fmt.Sprintf("%s has no data for %s", g.Code3, strings.Join(years, ", ")))
	}
	return nil
}

func summarizeCombine(res *pipeline.CombineResult) combineOutput {
	countries := map[string]bool{}
	for _, rec := range res.Records {
		countries[rec.Code3] = true
	}
	out := combineOutput{
		Output:     res.Output,
		Rows:       len(res.Records),
		Countries:  len(countries),
		Dropped:    res.Dropped,
		Incomplete: res.Incomplete,
	}
	if out.Dropped == nil {
		out.Dropped = []string{}
	}
	for _, g := range res.Gaps {
		out.Gaps = append(out.Gaps, gapOut{Code3: g.Code3, Missing: g.Missing})
	}
	return out
}
