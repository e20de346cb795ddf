package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/housetax/internal/pipeline"
	"github.com/leapstack-labs/housetax/pkg/adapter"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Tables []string
	Engine string
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL over pipeline files",
		Long: `Load tab-separated pipeline files into an in-memory SQL engine and run
a query over them. Each --table flag loads one file; without any, the
combined dataset of the configured pipeline is loaded as "combined".

SQL is read from the arguments, from --input, or from standard input.`,
		Example: `  # Countries in the combined dataset
  housetax query "SELECT DISTINCT Code3 FROM combined"

  # Join two tidy tables with DuckDB
  housetax query --engine duckdb \
    --table prices=data/tidy/house-prices.tsv \
    --table tax=data/tidy/property-tax.tsv \
    "SELECT p.Code3, p.Year, t.PctGDP FROM prices p JOIN tax t USING (Code3, Year)"

  # Output as CSV
  housetax query --format csv "SELECT * FROM combined"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Tables, "table", "t", nil, "Table to load as name=path (repeatable)")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "SQL engine (default: sql.engine from config)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	_ = cmd.RegisterFlagCompletionFunc("engine", completeEngines)
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "md"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func completeEngines(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return adapter.Engines(), cobra.ShellCompDirectiveNoFileComp
}

// parseTables turns name=path flags into an ordered list.
func parseTables(specs []string) ([][2]string, error) {
	out := make([][2]string, 0, len(specs))
	seen := map[string]bool{}
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --table %q: expected name=path", spec)
		}
		if seen[name] {
			return nil, fmt.Errorf("table %q given twice", name)
		}
		seen[name] = true
		out = append(out, [2]string{name, path})
	}
	return out, nil
}

// combinedOutput returns the output of the last combine stage.
func combinedOutput(stages []pipeline.Stage) string {
	path := ""
	for _, s := range stages {
		if s.Kind == pipeline.KindCombine {
			path = s.Output
		}
	}
	return path
}

func readSQL(cmd *cobra.Command, args []string, input string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("no SQL given: pass it as an argument, with --input, or on stdin")
	}
	content, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(content), nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContext(cmd)

	if !validFormat(opts.Format) {
		return fmt.Errorf("unknown format %q (valid: table, json, csv, md)", opts.Format)
	}
	tables, err := parseTables(opts.Tables)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		path := combinedOutput(cmdCtx.Cfg.Pipeline.Stages)
		if path == "" {
			return fmt.Errorf("no --table given and the pipeline has no combine stage")
		}
		tables = append(tables, [2]string{pipeline.CheckTable, path})
	}

	sqlQuery, err := readSQL(cmd, args, opts.Input)
	if err != nil {
		return err
	}
	if strings.TrimSpace(sqlQuery) == "" {
		return fmt.Errorf("empty query")
	}

	adp, err := cmdCtx.Connect(cmd, opts.Engine)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	for _, t := range tables {
		abs, err := filepath.Abs(t[1])
		if err != nil {
			return err
		}
		if err := adp.LoadTable(cmd.Context(), t[0], abs); err != nil {
			return fmt.Errorf("failed to load table %s: %w", t[0], err)
		}
		cmdCtx.Logger.Debug("table loaded", "table", t[0], "path", abs, "engine", adp.Name())
	}

	rows, err := adp.Query(cmd.Context(), sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	res, err := adapter.Collect(rows)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return renderResults(cmd.OutOrStdout(), res, opts.Format)
}
