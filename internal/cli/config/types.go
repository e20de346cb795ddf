// Package config provides layered configuration for the housetax CLI.
//
// Values come from built-in defaults, a housetax.yaml file, HOUSETAX_
// environment variables and explicitly set flags, in increasing order
// of precedence.
package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/leapstack-labs/housetax/internal/chart"
	"github.com/leapstack-labs/housetax/internal/combine"
	"github.com/leapstack-labs/housetax/internal/pipeline"
	"github.com/leapstack-labs/housetax/internal/scrape"
	"github.com/leapstack-labs/housetax/internal/tidy"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// Defaults shared by the loader and the init command.
const (
	DefaultOutput     = "auto"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultEngine     = "sqlite"
	DefaultConfigFile = "housetax.yaml"
	DefaultStatePath  = ".housetax/state.db"
)

// Config is the effective CLI configuration.
type Config struct {
	Verbose     bool     `koanf:"verbose" yaml:"verbose"`
	Output      string   `koanf:"output" yaml:"output"`
	LogLevel    string   `koanf:"log_level" yaml:"log_level"`
	LogFormat   string   `koanf:"log_format" yaml:"log_format"`
	SourceURL   string   `koanf:"source_url" yaml:"source_url"`
	HTTPTimeout Duration `koanf:"http_timeout" yaml:"http_timeout"`

	Combine  CombineConfig  `koanf:"combine" yaml:"combine"`
	Tidy     TidyConfig     `koanf:"tidy" yaml:"tidy"`
	Chart    ChartConfig    `koanf:"chart" yaml:"chart"`
	SQL      SQLConfig      `koanf:"sql" yaml:"sql"`
	Pipeline PipelineConfig `koanf:"pipeline" yaml:"pipeline"`
	State    StateConfig    `koanf:"state" yaml:"state"`
}

// CombineConfig configures the join and completeness filter.
type CombineConfig struct {
	AggregateCode     string                  `koanf:"aggregate_code" yaml:"aggregate_code"`
	AggregateAliases  []string                `koanf:"aggregate_aliases" yaml:"aggregate_aliases"`
	AggregateName     string                  `koanf:"aggregate_name" yaml:"aggregate_name"`
	FirstYear         int                     `koanf:"first_year" yaml:"first_year"`
	LastYear          int                     `koanf:"last_year" yaml:"last_year"`
	RequireContiguous bool                    `koanf:"require_contiguous" yaml:"require_contiguous"`
	LabelOverrides    []combine.LabelOverride `koanf:"label_overrides" yaml:"label_overrides"`
}

// TidyConfig holds schemas that replace or extend the built-in ones.
type TidyConfig struct {
	Schemas map[string]tidy.Schema `koanf:"schemas" yaml:"schemas,omitempty"`
}

// ChartConfig holds figure style and colours.
type ChartConfig struct {
	Width               int           `koanf:"width" yaml:"width"`
	Height              int           `koanf:"height" yaml:"height"`
	FontSize            float64       `koanf:"font_size" yaml:"font_size"`
	Padding             float64       `koanf:"padding" yaml:"padding"`
	HighlightCodes      []string      `koanf:"highlight_codes" yaml:"highlight_codes"`
	Colors              chart.Palette `koanf:"colors" yaml:"colors"`
	SourceNote          string        `koanf:"source_note" yaml:"source_note"`
	MaxLayoutIterations int           `koanf:"max_layout_iterations" yaml:"max_layout_iterations"`
	RepelIterations     int           `koanf:"repel_iterations" yaml:"repel_iterations"`
}

// SQLConfig selects the inspection engine.
type SQLConfig struct {
	Engine  string            `koanf:"engine" yaml:"engine"`
	Options map[string]string `koanf:"options" yaml:"options,omitempty"`
}

// PipelineConfig lists the stages `housetax run` executes.
type PipelineConfig struct {
	Stages []pipeline.Stage `koanf:"stages" yaml:"stages"`
}

// StateConfig locates the run history database. An empty path turns
// recording off.
type StateConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// Duration is a time.Duration written as "30s" in YAML and env vars.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	copts := combine.DefaultOptions()
	style := chart.DefaultStyle()
	return &Config{
		Output:      DefaultOutput,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		SourceURL:   scrape.DefaultURL,
		HTTPTimeout: Duration(30 * time.Second),
		Combine: CombineConfig{
			AggregateCode:     copts.AggregateCode,
			AggregateAliases:  copts.AggregateAliases,
			AggregateName:     copts.AggregateName,
			FirstYear:         copts.FirstYear,
			LastYear:          copts.LastYear,
			RequireContiguous: copts.RequireContiguous,
			LabelOverrides:    copts.LabelOverrides,
		},
		Chart: ChartConfig{
			Width:               style.Width,
			Height:              style.Height,
			FontSize:            style.FontSize,
			Padding:             style.Padding,
			HighlightCodes:      chart.DefaultHighlight(),
			Colors:              chart.DefaultPalette(),
			SourceNote:          style.SourceNote,
			MaxLayoutIterations: style.MaxLayoutIterations,
			RepelIterations:     style.RepelIterations,
		},
		SQL:      SQLConfig{Engine: DefaultEngine},
		Pipeline: PipelineConfig{Stages: pipeline.DefaultStages()},
		State:    StateConfig{Path: DefaultStatePath},
	}
}

// CombineOptions converts the combine section.
func (c *Config) CombineOptions(logger *slog.Logger) combine.Options {
	return combine.Options{
		AggregateCode:     c.Combine.AggregateCode,
		AggregateAliases:  c.Combine.AggregateAliases,
		AggregateName:     c.Combine.AggregateName,
		FirstYear:         c.Combine.FirstYear,
		LastYear:          c.Combine.LastYear,
		RequireContiguous: c.Combine.RequireContiguous,
		LabelOverrides:    c.Combine.LabelOverrides,
		Logger:            logger,
	}
}

// PipelineOptions converts the configuration into runner options.
func (c *Config) PipelineOptions(logger *slog.Logger) pipeline.Options {
	return pipeline.Options{
		SourceURL:  c.SourceURL,
		HTTPClient: &http.Client{Timeout: time.Duration(c.HTTPTimeout)},
		Schemas:    c.Tidy.Schemas,
		Combine:    c.CombineOptions(logger),
		Style: chart.Style{
			Width:               c.Chart.Width,
			Height:              c.Chart.Height,
			FontSize:            c.Chart.FontSize,
			Padding:             c.Chart.Padding,
			SourceNote:          c.Chart.SourceNote,
			MaxLayoutIterations: c.Chart.MaxLayoutIterations,
			RepelIterations:     c.Chart.RepelIterations,
		},
		Palette:   c.Chart.Colors,
		Highlight: c.Chart.HighlightCodes,
	}
}

// AdapterConfig returns the connection settings of the SQL engine.
func (c *Config) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{Type: c.SQL.Engine, Options: c.SQL.Options}
}
