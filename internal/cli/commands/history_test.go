package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/cli/config"
)

func TestHistoryRecordsRuns(t *testing.T) {
	p := newProject(t)
	t.Setenv("HOUSETAX_SOURCE_URL", p.url)

	_, _, err := execute(t, p.dir, NewRunCommand(), "--select", "download-country-codes,tidy-country-codes")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(p.dir, config.DefaultStatePath))

	require.NoError(t, os.Remove(p.path("data/raw/house-prices.csv")))
	_, _, err = execute(t, p.dir, NewRunCommand(), "-s", "tidy-house-prices")
	require.Error(t, err)

	out, _, err := execute(t, p.dir, NewHistoryCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "| Run |")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "download-country-codes, tidy-country-codes")

	t.Setenv("HOUSETAX_OUTPUT", "json")
	out, _, err = execute(t, p.dir, NewHistoryCommand(), "--limit", "1")
	require.NoError(t, err)
	var runs []historyRunOut
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status, "newest first")
	assert.Contains(t, runs[0].Error, "tidy-house-prices")

	out, _, err = execute(t, p.dir, NewHistoryCommand(), "--limit", "2")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)

	out, _, err = execute(t, p.dir, NewHistoryCommand(), runs[1].ID)
	require.NoError(t, err)
	var run historyRunOut
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, "completed", run.Status)
	require.Len(t, run.Stages, 2)
	assert.Equal(t, "download-country-codes", run.Stages[0].Name)
	assert.Equal(t, 3, run.Stages[0].Rows)
}

func TestHistoryShowRunMarkdown(t *testing.T) {
	p := newProject(t)
	t.Setenv("HOUSETAX_SOURCE_URL", p.url)
	t.Setenv("HOUSETAX_OUTPUT", "json")

	out, _, err := execute(t, p.dir, NewRunCommand(), "--select", "download-country-codes")
	require.NoError(t, err)
	var res runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.RunID)

	t.Setenv("HOUSETAX_OUTPUT", "markdown")
	out, _, err = execute(t, p.dir, NewHistoryCommand(), res.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "# Run "+res.RunID)
	assert.Contains(t, out, "- **Status:** completed")
	assert.Contains(t, out, "download-country-codes")
}

func TestHistoryEmptyAndErrors(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, dir, NewHistoryCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet")

	_, _, err = execute(t, dir, NewHistoryCommand(), "missing-id")
	assert.ErrorContains(t, err, "run not found")

	_, _, err = execute(t, dir, NewHistoryCommand(), "--limit", "0")
	assert.ErrorContains(t, err, "--limit must be positive")
}

func TestHistoryDisabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte("state:\n  path: \"\"\n"), 0600))

	_, _, err := execute(t, dir, NewRunCommand(), "--dry-run")
	require.NoError(t, err)

	_, _, err = execute(t, dir, NewHistoryCommand())
	assert.ErrorContains(t, err, "run history is disabled")
	assert.NoDirExists(t, filepath.Join(dir, ".housetax"))
}
