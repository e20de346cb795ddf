package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/pipeline"
	"github.com/leapstack-labs/housetax/internal/state"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     []string
	Downstream bool
	DryRun     bool
}

type stageOut struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Output     string `json:"output"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
	Warning    string `json:"warning,omitempty"`
}

type runOutput struct {
	RunID      string     `json:"run_id,omitempty"`
	Status     string     `json:"status"`
	Stages     []stageOut `json:"stages"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured pipeline stages",
		Long: `Execute the stages listed under pipeline.stages in dependency order.

A stage depends on every stage that writes one of its inputs. By default
all stages run. Use --select to run specific stages and --downstream to
also run the stages that consume their outputs. The first failing stage
stops the run.`,
		Example: `  # Run the whole pipeline
  housetax run

  # Re-tidy house prices and rebuild everything that depends on them
  housetax run --select tidy-house-prices --downstream

  # Show the execution order without running anything
  housetax run --dry-run`,
		Aliases: []string{"build"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Comma-separated list of stages to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream stages when using --select")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the execution order and exit")
	_ = cmd.RegisterFlagCompletionFunc("select", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, s := range getConfig().Pipeline.Stages {
			names = append(names, s.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	stages := cmdCtx.Cfg.Pipeline.Stages

	if opts.DryRun {
		return renderPlan(r, stages, opts)
	}

	store, run := startRun(cmd, cmdCtx, opts.Select)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	start := time.Now()
	results, runErr := cmdCtx.Runner().Run(cmd.Context(), stages, opts.Select, opts.Downstream)

	out := runOutput{Status: "success", DurationMS: time.Since(start).Milliseconds()}
	if run != nil {
		out.RunID = run.ID
		if err := finishRun(cmd, store, run.ID, results, runErr); err != nil {
			r.Warning(fmt.Sprintf("failed to record run history: %v", err))
		}
	}
	for _, res := range results {
		out.Stages = append(out.Stages, stageOut{
			Name:       res.Name,
			Kind:       string(res.Kind),
			Output:     res.Output,
			Rows:       res.Rows,
			DurationMS: res.Duration.Milliseconds(),
			Warning:    res.Warning,
		})
	}
	if runErr != nil {
		out.Status = "failed"
		out.Error = runErr.Error()
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
		return runErr
	}

	if len(out.Stages) > 0 {
		rows := make([][]string, len(out.Stages))
		for i, s := range out.Stages {
			rows[i] = []string{s.Name, s.Kind, s.Output, strconv.Itoa(s.Rows), (time.Duration(s.DurationMS) * time.Millisecond).String()}
		}
		if err := r.Table([]string{"Stage", "Kind", "Output", "Rows", "Duration"}, rows); err != nil {
			return err
		}
	}
	for _, s := range out.Stages {
		if s.Warning != "" {
			r.Warning(fmt.Sprintf("%s: %s", s.Name, s.Warning))
		}
	}
	if runErr != nil {
		return runErr
	}
	r.Success(fmt.Sprintf("Completed %d stages in %s", len(out.Stages), time.Since(start).Round(time.Millisecond)))
	return nil
}

// startRun opens the history database and creates a run. History is
// best effort: failures are reported as warnings and the run goes on.
func startRun(cmd *cobra.Command, cmdCtx *CommandContext, selection []string) (*state.SQLiteStore, *state.Run) {
	store, err := cmdCtx.OpenState(cmd)
	if err != nil {
		cmdCtx.Renderer.Warning(fmt.Sprintf("run history disabled: %v", err))
		return nil, nil
	}
	if store == nil {
		return nil, nil
	}
	run, err := store.CreateRun(cmd.Context(), selection)
	if err != nil {
		cmdCtx.Renderer.Warning(fmt.Sprintf("run history disabled: %v", err))
		_ = store.Close()
		return nil, nil
	}
	cmdCtx.Logger.Debug("run recorded", "run", run.ID, "path", store.Path())
	return store, run
}

func finishRun(cmd *cobra.Command, store *state.SQLiteStore, id string, results []pipeline.StageResult, runErr error) error {
	stages := make([]state.StageRun, len(results))
	for i, res := range results {
		stages[i] = state.StageRun{
			Name:     res.Name,
			Kind:     string(res.Kind),
			Output:   res.Output,
			Rows:     res.Rows,
			Duration: res.Duration,
			Warning:  res.Warning,
		}
	}
	// The run context may be cancelled; the record is still written.
	ctx := context.WithoutCancel(cmd.Context())
	if err := store.RecordStages(ctx, id, stages); err != nil {
		return err
	}
	status, msg := state.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = state.RunStatusFailed, runErr.Error()
	}
	return store.CompleteRun(ctx, id, status, msg)
}

func renderPlan(r *output.Renderer, stages []pipeline.Stage, opts *RunOptions) error {
	g, err := pipeline.Plan(stages)
	if err != nil {
		return err
	}
	order, err := pipeline.Select(g, opts.Select, opts.Downstream)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string][]string{"order": order})
	}

	rows := make([][]string, len(order))
	for i, name := range order {
		s, _ := g.Node(name)
		rows[i] = []string{strconv.Itoa(i + 1), name, string(s.Kind), strings.Join(g.Parents(name), ", ")}
	}
	return r.Table([]string{"#", "Stage", "Kind", "Depends on"}, rows)
}
