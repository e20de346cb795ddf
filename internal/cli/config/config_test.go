package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/internal/pipeline"
	"github.com/leapstack-labs/housetax/internal/tidy"

	// Import adapter packages to ensure engines are registered via init()
	_ "github.com/leapstack-labs/housetax/pkg/adapters/sqlite"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "housetax.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Empty(t, GetConfigFileUsed())
	assert.Equal(t, "auto", cfg.Output)
	assert.Equal(t, "sqlite", cfg.SQL.Engine)
	assert.Equal(t, Duration(30*time.Second), cfg.HTTPTimeout)
	assert.Equal(t, 2000, cfg.Combine.FirstYear)
	assert.Equal(t, 2020, cfg.Combine.LastYear)
	assert.Equal(t, []string{"OAVG"}, cfg.Combine.AggregateAliases)
	assert.Len(t, cfg.Combine.LabelOverrides, 4)
	assert.Equal(t, []string{"NZL", "SWE", "CAN", "JPN"}, cfg.Chart.HighlightCodes)
	assert.Equal(t, "#1C4EAA", cfg.Chart.Colors.Aggregate)
	assert.Len(t, cfg.Pipeline.Stages, len(pipeline.DefaultStages()))
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_SearchesUpward(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfig(t, root, "combine:\n  first_year: 2005\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 2005, cfg.Combine.FirstYear)
	assert.Equal(t, "housetax.yaml", filepath.Base(GetConfigFileUsed()))
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, t.TempDir(), `
http_timeout: 5s
combine:
  last_year: 2018
  label_overrides:
    - name: "Czechia"
      label: "Czech Republic"
chart:
  highlight_codes: [AUS]
  colors:
    highlight: "#ff0000"
tidy:
  schemas:
    house-prices:
      description: custom export
      keep: [LOCATION, TIME, Value]
pipeline:
  stages:
    - name: prices
      kind: tidy
      schema: house-prices
      inputs: [raw.csv]
      output: tidy.tsv
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, Duration(5*time.Second), cfg.HTTPTimeout)
	assert.Equal(t, 2018, cfg.Combine.LastYear)
	assert.Equal(t, 2000, cfg.Combine.FirstYear)
	require.Len(t, cfg.Combine.LabelOverrides, 1)
	assert.Equal(t, "Czech Republic", cfg.Combine.LabelOverrides[0].Label)
	assert.Equal(t, []string{"AUS"}, cfg.Chart.HighlightCodes)
	assert.Equal(t, "#ff0000", cfg.Chart.Colors.Highlight)
	assert.Equal(t, "#374043", cfg.Chart.Colors.Neutral)
	require.Contains(t, cfg.Tidy.Schemas, "house-prices")
	assert.Equal(t, []string{"LOCATION", "TIME", "Value"}, cfg.Tidy.Schemas["house-prices"].Keep)

	require.Len(t, cfg.Pipeline.Stages, 1)
	assert.Equal(t, pipeline.KindTidy, cfg.Pipeline.Stages[0].Kind)
	assert.Equal(t, []string{"raw.csv"}, cfg.Pipeline.Stages[0].Inputs)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_Env(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())
	t.Setenv("HOUSETAX_COMBINE__FIRST_YEAR", "2010")
	t.Setenv("HOUSETAX_CHART__HIGHLIGHT_CODES", "AUS,NZL")
	t.Setenv("HOUSETAX_VERBOSE", "true")
	t.Setenv("HOUSETAX_HTTP_TIMEOUT", "1m")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 2010, cfg.Combine.FirstYear)
	assert.Equal(t, []string{"AUS", "NZL"}, cfg.Chart.HighlightCodes)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, Duration(time.Minute), cfg.HTTPTimeout)
}

// TestLoadConfig_Precedence checks flags > env > file > defaults.
func TestLoadConfig_Precedence(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("log-level", "", "log level")
		flags.String("output", "", "output mode")
		return flags
	}
	path := writeConfig(t, t.TempDir(), "log_level: warn\noutput: markdown\n")

	t.Run("file over defaults", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfig(path, newFlags())
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, "markdown", cfg.Output)
	})

	t.Run("env over file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("HOUSETAX_LOG_LEVEL", "error")
		cfg, err := LoadConfig(path, newFlags())
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.LogLevel, "unset flags must not mask env vars")
	})

	t.Run("flag over env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("HOUSETAX_LOG_LEVEL", "error")
		flags := newFlags()
		require.NoError(t, flags.Set("log-level", "debug"))
		require.NoError(t, flags.Set("output", "json"))
		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "json", cfg.Output)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, t.TempDir(), `
output: yaml
combine:
  first_year: 2021
chart:
  colors:
    neutral: "grey"
sql:
  engine: oracle
`)

	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid configuration")
	assert.Contains(t, msg, `unknown output mode "yaml"`)
	assert.Contains(t, msg, "first_year 2021 is after combine.last_year 2020")
	assert.Contains(t, msg, `chart.colors.neutral: invalid hex colour "grey"`)
	assert.Contains(t, msg, `unknown sql.engine "oracle"`)
	assert.Nil(t, GetCurrentConfig())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"equal years", func(c *Config) { c.Combine.FirstYear = c.Combine.LastYear }, ""},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, `unknown log_level "trace"`},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, `unknown log_format "xml"`},
		{"aggregate", func(c *Config) { c.Combine.AggregateCode = "" }, "aggregate_code is required"},
		{"width", func(c *Config) { c.Chart.Width = 0 }, "width and height must be positive"},
		{"stage kind", func(c *Config) {
			c.Pipeline.Stages = []pipeline.Stage{{Name: "x", Kind: "zip", Output: "o"}}
		}, `unknown kind "zip"`},
		{"stage schema", func(c *Config) {
			c.Pipeline.Stages = []pipeline.Stage{{Name: "x", Kind: pipeline.KindTidy, Schema: "gdp", Inputs: []string{"a"}, Output: "o"}}
		}, "gdp"},
		{"custom schema", func(c *Config) {
			c.Tidy.Schemas = map[string]tidy.Schema{"gdp": {Keep: []string{"a"}, Drop: []string{"b"}}}
		}, "keep and drop are mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_PipelineOptions(t *testing.T) {
	cfg := Default()
	cfg.HTTPTimeout = Duration(2 * time.Second)
	cfg.Chart.Width = 800
	cfg.Combine.RequireContiguous = true

	opts := cfg.PipelineOptions(nil)

	assert.Equal(t, 2*time.Second, opts.HTTPClient.Timeout)
	assert.Equal(t, 800, opts.Style.Width)
	assert.True(t, opts.Combine.RequireContiguous)
	assert.Equal(t, "OECD", opts.Combine.AggregateCode)
	assert.Equal(t, cfg.Chart.HighlightCodes, opts.Highlight)
	assert.Equal(t, "sqlite", cfg.AdapterConfig().Type)
}

func TestConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "stage", "combine")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "combine", rec["stage"])
	assert.NotEmpty(t, rec["run_id"])

	buf.Reset()
	cfg.Verbose = true
	cfg.NewLogger(&buf).Debug("debug on")
	assert.Contains(t, buf.String(), "debug on")
}

func TestDuration_YAML(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", v)
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
