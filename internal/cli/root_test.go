package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/cli/config"

	_ "github.com/leapstack-labs/housetax/pkg/adapters/sqlite"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "download", "tidy", "combine", "plot", "run", "history", "query", "check", "config", "init", "completion"} {
		assert.Contains(t, names, want)
	}

	for _, f := range []string{"config", "verbose", "output", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(f), "missing --%s", f)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Equal(t, "o", cmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestFlagsOverrideEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "housetax.yaml"), []byte("output: text\nlog_level: error\n"), 0600))

	_, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "text", config.GetCurrentConfig().Output)
	assert.Equal(t, "error", config.GetCurrentConfig().LogLevel)

	t.Setenv("HOUSETAX_OUTPUT", "markdown")
	_, _, err = run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "markdown", config.GetCurrentConfig().Output)

	_, _, err = run(t, "--output", "json", "--log-level", "debug", "version")
	require.NoError(t, err)
	assert.Equal(t, "json", config.GetCurrentConfig().Output)
	assert.Equal(t, "debug", config.GetCurrentConfig().LogLevel)
}

func TestExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("combine:\n  last_year: 2019\n"), 0600))

	out, _, err := run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "last_year: 2019")
	assert.Equal(t, path, config.GetConfigFileUsed())

	_, _, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestInvalidFlagValue(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := run(t, "--log-format", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "housetax.yaml"), []byte("log_format: json\n"), 0600))

	_, errOut, err := run(t, "-v", "run", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, errOut, `"msg":"using config file"`)
	assert.Contains(t, errOut, `"run_id":`)
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, _, err := run(t, "completion", shell)
			require.NoError(t, err)
			assert.True(t, strings.Contains(out, "housetax"), "completion script mentions the binary")
		})
	}

	_, _, err := run(t, "completion", "tcsh")
	assert.Error(t, err)
}
