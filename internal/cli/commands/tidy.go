package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/tidy"
)

// NewTidyCommand creates the tidy command with one subcommand per
// built-in schema. Schemas declared under tidy.schemas in the
// configuration are run with --schema.
func NewTidyCommand() *cobra.Command {
	var schema, outFile string

	cmd := &cobra.Command{
		Use:   "tidy [--schema NAME] FILE",
		Short: "Normalize a raw source file into a tidy table",
		Long: `Apply a schema to a raw source file and write a tidy tab-separated table:
one row per observation and one named column per variable.

The built-in schemas have their own subcommands. A schema from
tidy.schemas in housetax.yaml, or a replacement for a built-in one,
is selected with --schema.`,
		Example: `  housetax tidy country-codes --out-file data/tidy/country-codes.tsv data/raw/country-codes.tsv
  housetax tidy house-prices --out-file data/tidy/house-prices.tsv data/raw/house-prices.csv
  housetax tidy --schema gdp --out-file data/tidy/gdp.tsv data/raw/gdp.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema == "" {
				return fmt.Errorf("--schema is required without a schema subcommand (built-in: %s)", strings.Join(tidy.BuiltinNames(), ", "))
			}
			return runTidy(cmd, schema, args[0], outFile)
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Schema to apply")
	cmd.Flags().StringVar(&outFile, "out-file", "", "Path of the tidy TSV to write")

	for _, name := range tidy.BuiltinNames() {
		s, _ := tidy.Builtin(name)
		cmd.AddCommand(newTidySchemaCommand(name, s.Description))
	}
	return cmd
}

func newTidySchemaCommand(schema, description string) *cobra.Command {
	var outFile string
	short := description
	if short == "" {
		short = fmt.Sprintf("Tidy a %s source file", schema)
	}

	cmd := &cobra.Command{
		Use:   schema + " FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTidy(cmd, schema, args[0], outFile)
		},
	}

	cmd.Flags().StringVar(&outFile, "out-file", "", "Path of the tidy TSV to write")
	markRequired(cmd, "out-file")
	return cmd
}

func runTidy(cmd *cobra.Command, schema, in, out string) error {
	if out == "" {
		return fmt.Errorf("--out-file is required")
	}
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	res, err := cmdCtx.Runner().Tidy(schema, in, out)
	if err != nil {
		return fmt.Errorf("failed to tidy %s: %w", in, err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}
	r.Success(fmt.Sprintf("Wrote %d rows to %s", res.RowsOut, res.Output))
	r.Muted(fmt.Sprintf("%d raw rows read with schema %s", res.RowsIn, res.Schema))
	return nil
}
