package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/output"
	"github.com/leapstack-labs/housetax/internal/state"
)

type historyRunOut struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Selection   []string   `json:"selection,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Stages      []stageOut `json:"stages,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded pipeline runs",
		Long: `List recent 'housetax run' executions from the run history database
(state.path), newest first. With a run ID, show the stages of that run.`,
		Example: `  housetax history
  housetax history --limit 3
  housetax history 6f1c0a53-9a07-4c36-9d25-1f0c1b0d7f39`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.OpenState(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled (state.path is empty)")
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showRun(cmd, cmdCtx.Renderer, store, args[0])
			}
			return listRuns(cmd, cmdCtx.Renderer, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	return cmd
}

func toHistoryOut(run *state.Run) historyRunOut {
	return historyRunOut{
		ID:          run.ID,
		Status:      string(run.Status),
		Selection:   run.Selection,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}

func listRuns(cmd *cobra.Command, r *output.Renderer, store *state.SQLiteStore, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]historyRunOut, len(runs))
		for i, run := range runs {
			out[i] = toHistoryOut(run)
		}
		return r.JSON(out)
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}
	rows := make([][]string, len(runs))
	for i, run := range runs {
		selection := "all"
		if len(run.Selection) > 0 {
			selection = strings.Join(run.Selection, ", ")
		}
		rows[i] = []string{
			run.ID,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			run.Duration().Round(time.Millisecond).String(),
			selection,
		}
	}
	return r.Table([]string{"Run", "Status", "Started", "Duration", "Selection"}, rows)
}

func showRun(cmd *cobra.Command, r *output.Renderer, store *state.SQLiteStore, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	stages, err := store.StageRuns(cmd.Context(), id)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := toHistoryOut(run)
		for _, st := range stages {
			out.Stages = append(out.Stages, stageOut{
				Name:       st.Name,
				Kind:       st.Kind,
				Output:     st.Output,
				Rows:       st.Rows,
				DurationMS: st.Duration.Milliseconds(),
				Warning:    st.Warning,
			})
		}
		return r.JSON(out)
	}

	r.Header(1, "Run "+run.ID)
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	if run.CompletedAt != nil {
		r.KeyValue("Duration", run.Duration().Round(time.Millisecond).String())
	}
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	if len(stages) == 0 {
		return nil
	}
	r.Println("")
	rows := make([][]string, len(stages))
	for i, st := range stages {
		rows[i] = []string{st.Name, st.Kind, st.Output, strconv.Itoa(st.Rows), st.Duration.String(), st.Warning}
	}
	return r.Table([]string{"Stage", "Kind", "Output", "Rows", "Duration", "Warning"}, rows)
}
