package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/chart"
	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// NewPlotCommand creates the plot command.
func NewPlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Draw figures from the combined dataset",
		Long: `Draw bar or scatter figures from the combined dataset. The output
format follows the file extension: .svg writes SVG, anything else PNG.`,
	}
	cmd.AddCommand(newPlotBarCommand())
	cmd.AddCommand(newPlotScatterCommand())
	return cmd
}

func newPlotBarCommand() *cobra.Command {
	var column, label, outFile string

	cmd := &cobra.Command{
		Use:   "bar FILE",
		Short: "Bar chart of latest values and change since the first year",
		Example: `  housetax plot bar --var RealPriceIndex --label "Real house price index" \
    --out-file figures/real-price-index.png data/combined.tsv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if label == "" {
				label = chart.ColumnLabel(column)
			}
			rep, err := cmdCtx.Runner().PlotBar(args[0], column, label, outFile)
			if err != nil {
				return fmt.Errorf("failed to draw bar chart: %w", err)
			}
			return renderReport(cmdCtx.Renderer, outFile, rep)
		},
	}

	cmd.Flags().StringVar(&column, "var", "", "Indicator column to plot")
	cmd.Flags().StringVar(&label, "label", "", "Axis label (default: derived from --var)")
	cmd.Flags().StringVar(&outFile, "out-file", "", "Figure path (.png or .svg)")
	markRequired(cmd, "var", "out-file")
	_ = cmd.RegisterFlagCompletionFunc("var", completeIndicators)

	return cmd
}

func newPlotScatterCommand() *cobra.Command {
	var x, y chart.Axis
	var outFile string

	cmd := &cobra.Command{
		Use:   "scatter FILE",
		Short: "Scatter plot of two indicators with a fitted line",
		Example: `  housetax plot scatter --x-var PctGDP --x-label "Property tax (% of GDP)" \
    --y-var RealPriceIndex --y-label "Real house price index" \
    --out-file figures/tax-vs-prices.png data/combined.tsv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			if x.Label == "" {
				x.Label = chart.ColumnLabel(x.Column)
			}
			if y.Label == "" {
				y.Label = chart.ColumnLabel(y.Column)
			}
			rep, err := cmdCtx.Runner().PlotScatter(args[0], x, y, outFile)
			if err != nil {
				return fmt.Errorf("failed to draw scatter plot: %w", err)
			}
			return renderReport(cmdCtx.Renderer, outFile, rep)
		},
	}

	cmd.Flags().StringVar(&x.Column, "x-var", "", "Indicator on the x axis")
	cmd.Flags().StringVar(&x.Label, "x-label", "", "X axis label")
	cmd.Flags().StringVar(&y.Column, "y-var", "", "Indicator on the y axis")
	cmd.Flags().StringVar(&y.Label, "y-label", "", "Y axis label")
	cmd.Flags().StringVar(&outFile, "out-file", "", "Figure path (.png or .svg)")
	markRequired(cmd, "x-var", "y-var", "out-file")
	_ = cmd.RegisterFlagCompletionFunc("x-var", completeIndicators)
	_ = cmd.RegisterFlagCompletionFunc("y-var", completeIndicators)

	return cmd
}

func completeIndicators(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return core.IndicatorColumns, cobra.ShellCompDirectiveNoFileComp
}

type panelOut struct {
	Title      string   `json:"title"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Iterations int      `json:"iterations"`
	Overlaps   int      `json:"overlaps"`
	Slope      *float64 `json:"slope,omitempty"`
	RSquared   *float64 `json:"r_squared,omitempty"`
}

type reportOut struct {
	Output     string     `json:"output"`
	Format     string     `json:"format"`
	Countries  int        `json:"countries"`
	Excluded   []string   `json:"excluded"`
	Panels     []panelOut `json:"panels"`
	Constraint string     `json:"constraint,omitempty"`
}

func renderReport(r *output.Renderer, path string, rep *chart.Report) error {
	out := reportOut{
		Output:    path,
		Format:    rep.Format.String(),
		Countries: rep.Countries,
		Excluded:  rep.Excluded,
	}
	if out.Excluded == nil {
		out.Excluded = []string{}
	}
	for _, p := range rep.Panels {
		po := panelOut{Title: p.Title, Min: p.Min, Max: p.Max, Iterations: p.Iterations, Overlaps: p.Overlaps}
		if p.Fit != nil {
			po.Slope, po.RSquared = &p.Fit.Beta, &p.Fit.RSquared
		}
		out.Panels = append(out.Panels, po)
	}
	if rep.Constraint != nil {
		out.Constraint = rep.Constraint.Error()
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Success(fmt.Sprintf("Wrote %s figure of %d countries to %s", out.Format, out.Countries, path))
	if out.Constraint != "" {
		r.Warning(out.Constraint)
	}
	if len(out.Excluded) > 0 {
		r.Muted(fmt.Sprintf("Excluded for missing values: %v", out.Excluded))
	}
	rows := make([][]string, 0, len(out.Panels))
	for _, p := range out.Panels {
		fit := ""
		if p.Slope != nil {
			fit = fmt.Sprintf("slope %.3g, R² %.2f", *p.Slope, *p.RSquared)
		}
		rows = append(rows, []string{p.Title, fmt.Sprintf("%.4g", p.Min), fmt.Sprintf("%.4g", p.Max), fmt.Sprint(p.Iterations), fit})
	}
	return r.Table([]string{"Panel", "Min", "Max", "Iterations", "Fit"}, rows)
}
