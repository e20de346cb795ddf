package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/pipeline"
)

type checkOut struct {
	Name        string     `json:"name"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	Passed      bool       `json:"passed"`
	Violations  int        `json:"violations"`
	Columns     []string   `json:"columns,omitempty"`
	Sample      [][]string `json:"sample,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Verify the invariants of a combined dataset with SQL",
		Long: `Load a combined dataset into an in-memory SQL engine and verify it:
unique country and year rows, both endpoint years present for every
country, years inside the window and no missing values. Gaps between
the endpoints are reported as warnings.

Exits non-zero when an error-severity check fails.`,
		Example: `  housetax check data/combined.tsv
  housetax check --engine duckdb data/combined.tsv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], engine)
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "", "SQL engine (default: sql.engine from config)")
	_ = cmd.RegisterFlagCompletionFunc("engine", completeEngines)
	return cmd
}

func runCheck(cmd *cobra.Command, path, engine string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	adp, err := cmdCtx.Connect(cmd, engine)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	results, err := pipeline.RunChecks(cmd.Context(), adp, abs, cmdCtx.Cfg.CombineOptions(cmdCtx.Logger))
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	failed := pipeline.Failed(results)

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]checkOut, len(results))
		for i, res := range results {
			out[i] = checkOut{
				Name:        res.Name,
				Severity:    string(res.Severity),
				Description: res.Description,
				Passed:      res.Passed(),
				Violations:  res.Violations,
				Columns:     res.Columns,
				Sample:      res.Sample,
			}
		}
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		renderChecks(r, results)
	}

	if len(failed) > 0 {
		names := make([]string, len(failed))
		for i, f := range failed {
			names[i] = f.Name
		}
		return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(names, ", "))
	}
	return nil
}

func renderChecks(r *output.Renderer, results []pipeline.CheckResult) {
	styles := r.Styles()
	rows := make([][]string, len(results))
	for i, res := range results {
		status := "pass"
		if !res.Passed() {
			status = "FAIL"
			if res.Severity == pipeline.SeverityWarning {
				status = "warn"
			}
		}
		rows[i] = []string{res.Name, string(res.Severity), status, strconv.Itoa(res.Violations)}
	}
	_ = r.Table([]string{"Check", "Severity", "Status", "Violations"}, rows)

	for _, res := range results {
		if res.Passed() {
			continue
		}
		r.Println("")
		if r.EffectiveMode() == output.ModeText {
			r.Println(styles.Bold.Render(res.Name) + " " + styles.Muted.Render(res.Description))
		} else {
			r.Println(output.FormatHeader(2, res.Name))
			r.Println(res.Description)
		}
		for _, row := range res.Sample {
			r.Printf("  %s\n", strings.Join(pairs(res.Columns, row), ", "))
		}
		if more := res.Violations - len(res.Sample); more > 0 {
			r.Printf("  ... and %d more\n", more)
		}
	}
}

func pairs(cols, row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if i < len(cols) {
			out[i] = cols[i] + "=" + v
		} else {
			out[i] = v
		}
	}
	return out
}
