package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/cli/config"
	"github.com/leapstack-labs/housetax/internal/cli/testutil"

	_ "github.com/leapstack-labs/housetax/pkg/adapters/sqlite"
)

// execute loads the configuration from dir and runs cmd with args.
func execute(t *testing.T, dir string, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// project is a directory holding the raw exports and, once prepared,
// the tidy tables and combined dataset of the default pipeline.
type project struct {
	dir string
	url string
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteRawExports(t, dir)
	return &project{dir: dir, url: testutil.CodesServer(t)}
}

func (p *project) path(rel string) string { return filepath.Join(p.dir, filepath.FromSlash(rel)) }

// prepare runs download, tidy and combine.
func (p *project) prepare(t *testing.T) {
	t.Helper()
	steps := []struct {
		cmd  *cobra.Command
		args []string
	}{
		{NewDownloadCommand(), []string{"--url", p.url, "--out-file", "data/raw/country-codes.tsv"}},
		{NewTidyCommand(), []string{"country-codes", "--out-file", "data/tidy/country-codes.tsv", "data/raw/country-codes.tsv"}},
		{NewTidyCommand(), []string{"house-prices", "--out-file", "data/tidy/house-prices.tsv", "data/raw/house-prices.csv"}},
		{NewTidyCommand(), []string{"property-tax", "--out-file", "data/tidy/property-tax.tsv", "data/raw/property-tax.csv"}},
		{NewCombineCommand(), []string{
			"--country-codes", "data/tidy/country-codes.tsv",
			"--house-prices", "data/tidy/house-prices.tsv",
			"--property-tax", "data/tidy/property-tax.tsv",
			"--out-file", "data/combined.tsv",
		}},
	}
	for _, s := range steps {
		_, _, err := execute(t, p.dir, s.cmd, s.args...)
		require.NoError(t, err, strings.Join(s.args, " "))
	}
}

func TestCommandDefinitions(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewDownloadCommand(), "download", []string{"out-file", "url"}},
		{NewTidyCommand(), "tidy [--schema NAME] FILE", []string{"schema", "out-file"}},
		{NewCombineCommand(), "combine", []string{"country-codes", "house-prices", "property-tax", "out-file"}},
		{NewRunCommand(), "run", []string{"select", "downstream", "dry-run"}},
		{NewQueryCommand(), "query [SQL]", []string{"table", "engine", "format", "input"}},
		{NewCheckCommand(), "check FILE", []string{"engine"}},
		{NewConfigCommand(), "config", []string{"defaults"}},
		{NewInitCommand(), "init [directory]", []string{"force"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "missing flag --%s", f)
			}
		})
	}
}

func TestMarkRequired(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("out-file", "", "")
	markRequired(cmd, "out-file")
	assert.Equal(t, []string{"true"}, cmd.Flags().Lookup("out-file").Annotations[cobra.BashCompOneRequiredFlag])

	assert.Panics(t, func() { markRequired(cmd, "no-such-flag") })
}

func TestShortFlags(t *testing.T) {
	q := NewQueryCommand()
	assert.Equal(t, "t", q.Flags().Lookup("table").Shorthand)
	assert.Equal(t, "f", q.Flags().Lookup("format").Shorthand)
	assert.Equal(t, "i", q.Flags().Lookup("input").Shorthand)
	assert.Equal(t, "table", q.Flags().Lookup("format").DefValue)

	r := NewRunCommand()
	assert.Equal(t, "s", r.Flags().Lookup("select").Shorthand)
	assert.Contains(t, r.Aliases, "build")
}

func TestTidySubcommands(t *testing.T) {
	cmd := NewTidyCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
		assert.NotNil(t, c.Flags().Lookup("out-file"))
	}
	assert.ElementsMatch(t, []string{"country-codes", "house-prices", "property-tax"}, names)
}

func TestPlotSubcommands(t *testing.T) {
	cmd := NewPlotCommand()
	bar, _, err := cmd.Find([]string{"bar"})
	require.NoError(t, err)
	for _, f := range []string{"var", "label", "out-file"} {
		assert.NotNil(t, bar.Flags().Lookup(f))
	}

	scatter, _, err := cmd.Find([]string{"scatter"})
	require.NoError(t, err)
	for _, f := range []string{"x-var", "x-label", "y-var", "y-label", "out-file"} {
		assert.NotNil(t, scatter.Flags().Lookup(f))
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, t.TempDir(), NewVersionCommand("1.2.3"))
	require.NoError(t, err)
	assert.Equal(t, "housetax v1.2.3\nOECD house price and property tax charts, built with Go\n", out)
}
