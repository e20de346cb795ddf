package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/housetax/internal/chart"
)

// StageResult summarizes one executed stage.
type StageResult struct {
	Name     string
	Kind     Kind
	Output   string
	Rows     int
	Duration time.Duration
	// Warning is set when the stage succeeded with a caveat, such as a
	// constrained label layout or countries dropped by the join.
	Warning string
}

// Run executes the selected stages in dependency order, one at a time.
// The first failure stops the run; the results of the stages that
// finished are returned with the error.
func (r *Runner) Run(ctx context.Context, stages []Stage, selected []string, downstream bool) ([]StageResult, error) {
	g, err := Plan(stages)
	if err != nil {
		return nil, err
	}
	order, err := Select(g, selected, downstream)
	if err != nil {
		return nil, err
	}
	r.logger.Info("running pipeline", "stages", len(order), "order", order)

	results := make([]StageResult, 0, len(order))
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		s, _ := g.Node(name)
		start := time.Now()
		res, err := r.runStage(ctx, s)
		if err != nil {
			r.logger.Error("stage failed", "stage", name, "error", err)
			return results, fmt.Errorf("stage %q failed: %w", name, err)
		}
		res.Duration = time.Since(start)
		r.logger.Info("stage finished", "stage", name, "output", res.Output, "duration", res.Duration)
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runStage(ctx context.Context, s Stage) (StageResult, error) {
	res := StageResult{Name: s.Name, Kind: s.Kind, Output: s.Output}
	switch s.Kind {
	case KindDownload:
		d, err := r.Download(ctx, s.URL, s.Output)
		if err != nil {
			return res, err
		}
		res.Rows = d.Rows
	case KindTidy:
		t, err := r.Tidy(s.Schema, s.Inputs[0], s.Output)
		if err != nil {
			return res, err
		}
		res.Rows = t.RowsOut
	case KindCombine:
		c, err := r.Combine(s.Inputs[0], s.Inputs[1], s.Inputs[2], s.Output)
		if err != nil {
			return res, err
		}
		res.Rows = len(c.Records)
		if n := len(c.Dropped); n > 0 {
			res.Warning = fmt.Sprintf("%d countries dropped by the completeness filter", n)
		}
	case KindBar:
		rep, err := r.PlotBar(s.Inputs[0], s.Var, labelOr(s.Label, s.Var), s.Output)
		if err != nil {
			return res, err
		}
		res.Rows, res.Warning = rep.Countries, constraintWarning(rep)
	case KindScatter:
		x := chart.Axis{Column: s.XVar, Label: labelOr(s.XLabel, s.XVar)}
		y := chart.Axis{Column: s.YVar, Label: labelOr(s.YLabel, s.YVar)}
		rep, err := r.PlotScatter(s.Inputs[0], x, y, s.Output)
		if err != nil {
			return res, err
		}
		res.Rows, res.Warning = rep.Countries, constraintWarning(rep)
	default:
		return res, fmt.Errorf("unknown kind %q", s.Kind)
	}
	return res, nil
}

func labelOr(label, column string) string {
	if label != "" {
		return label
	}
	return chart.ColumnLabel(column)
}

func constraintWarning(rep *chart.Report) string {
	if rep.Constraint != nil {
		return rep.Constraint.Error()
	}
	return ""
}
