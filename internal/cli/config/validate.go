package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/pipeline"
	"github.com/leapstack-labs/housetax/internal/tidy"
	"github.com/leapstack-labs/housetax/pkg/adapter"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if _, err := output.ParseMode(c.Output); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("unknown log_level %q (valid: %s)", c.LogLevel, strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Errorf("unknown log_format %q (valid: %s)", c.LogFormat, strings.Join(logFormats, ", ")))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must not be negative"))
	}

	if c.Combine.FirstYear > c.Combine.LastYear {
		errs = append(errs, fmt.Errorf("combine.first_year %d is after combine.last_year %d", c.Combine.FirstYear, c.Combine.LastYear))
	}
	if c.Combine.AggregateCode == "" {
		errs = append(errs, fmt.Errorf("combine.aggregate_code is required"))
	}

	colors := map[string]string{
		"highlight":  c.Chart.Colors.Highlight,
		"aggregate":  c.Chart.Colors.Aggregate,
		"neutral":    c.Chart.Colors.Neutral,
		"regression": c.Chart.Colors.Regression,
	}
	for _, name := range []string{"highlight", "aggregate", "neutral", "regression"} {
		if _, err := colorful.Hex(colors[name]); err != nil {
			errs = append(errs, fmt.Errorf("chart.colors.%s: invalid hex colour %q", name, colors[name]))
		}
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		errs = append(errs, fmt.Errorf("chart width and height must be positive"))
	}
	if c.Chart.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("chart.font_size must be positive"))
	}

	if err := adapter.CheckEngine(c.SQL.Engine); err != nil {
		errs = append(errs, err)
	}

	for name, s := range c.Tidy.Schemas {
		s.Name = name
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range c.Pipeline.Stages {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, custom := c.Tidy.Schemas[s.Schema]; s.Kind == pipeline.KindTidy && !custom {
			if _, err := tidy.Resolve(s.Schema, c.Tidy.Schemas); err != nil {
				errs = append(errs, fmt.Errorf("stage %q: %w", s.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}
