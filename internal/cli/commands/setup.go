// Package commands implements the housetax subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/config"
	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/pipeline"
	"github.com/leapstack-labs/housetax/internal/state"
	"github.com/leapstack-labs/housetax/pkg/adapter"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// CommandContext holds what every command needs.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode, _ := output.ParseMode(cfg.Output)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Runner returns a pipeline runner configured from Cfg.
func (c *CommandContext) Runner() *pipeline.Runner {
	return pipeline.NewRunner(c.Cfg.PipelineOptions(c.Logger), c.Logger)
}

// Connect opens the named SQL engine, or the configured one when name
// is empty. The caller closes the adapter.
func (c *CommandContext) Connect(cmd *cobra.Command, name string) (core.Adapter, error) {
	cfg := c.Cfg.AdapterConfig()
	if name != "" {
		cfg.Type = name
	}
	adp, err := adapter.NewEngine(cfg, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(cmd.Context(), cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return adp, nil
}

// OpenState opens the run history database. It returns nil when
// state.path is empty.
func (c *CommandContext) OpenState(cmd *cobra.Command) (*state.SQLiteStore, error) {
	if c.Cfg.State.Path == "" {
		return nil, nil
	}
	return state.Open(cmd.Context(), c.Cfg.State.Path, c.Logger)
}

// getConfig returns the loaded configuration, or the defaults when the
// command runs outside the root command.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// markRequired marks flags as required. It panics on an undefined flag.
func markRequired(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		if err := cmd.MarkFlagRequired(n); err != nil {
			panic(err)
		}
	}
}
