package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of configuration environment variables.
// A double underscore separates nested keys:
// HOUSETAX_COMBINE__FIRST_YEAR sets combine.first_year.
const EnvPrefix = "HOUSETAX_"

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"housetax.yaml", "housetax.yml"}

var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile returns explicit when set, otherwise the nearest
// housetax.yaml or housetax.yml at or above the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for range maxUpwardSearchLevels {
		for _, name := range configNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// defaults flattens Default into koanf keys. Struct-valued lists are
// filled in after unmarshalling.
func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"verbose":                     d.Verbose,
		"output":                      d.Output,
		"log_level":                   d.LogLevel,
		"log_format":                  d.LogFormat,
		"source_url":                  d.SourceURL,
		"http_timeout":                "30s",
		"combine.aggregate_code":      d.Combine.AggregateCode,
		"combine.aggregate_aliases":   d.Combine.AggregateAliases,
		"combine.aggregate_name":      d.Combine.AggregateName,
		"combine.first_year":          d.Combine.FirstYear,
		"combine.last_year":           d.Combine.LastYear,
		"combine.require_contiguous":  d.Combine.RequireContiguous,
		"chart.width":                 d.Chart.Width,
		"chart.height":                d.Chart.Height,
		"chart.font_size":             d.Chart.FontSize,
		"chart.padding":               d.Chart.Padding,
		"chart.highlight_codes":       d.Chart.HighlightCodes,
		"chart.colors.highlight":      d.Chart.Colors.Highlight,
		"chart.colors.aggregate":      d.Chart.Colors.Aggregate,
		"chart.colors.neutral":        d.Chart.Colors.Neutral,
		"chart.colors.regression":     d.Chart.Colors.Regression,
		"chart.source_note":           d.Chart.SourceNote,
		"chart.max_layout_iterations": d.Chart.MaxLayoutIterations,
		"chart.repel_iterations":      d.Chart.RepelIterations,
		"sql.engine":                  d.SQL.Engine,
		"state.path":                  d.State.Path,
	}
}

// envKey maps HOUSETAX_CHART__HIGHLIGHT_CODES to chart.highlight_codes.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, file, environment variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (HOUSETAX_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	d := Default()
	if !k.Exists("combine.label_overrides") {
		cfg.Combine.LabelOverrides = d.Combine.LabelOverrides
	}
	if !k.Exists("pipeline.stages") {
		cfg.Pipeline.Stages = d.Pipeline.Stages
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded last, or nil.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}
