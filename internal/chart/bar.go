package chart

import (
	"errors"
	"fmt"
	"io"

	"github.com/leapstack-labs/housetax/internal/layout"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// Bar renders the current and change views of one indicator as two
// horizontal bar charts sharing the country order.
func (r *Renderer) Bar(w io.Writer, format Format, recs []core.CombinedRecord, column, label string) (*Report, error) {
	d, err := Views(recs, column)
	if err != nil {
		return nil, err
	}
	if len(d.Series) == 0 {
		return nil, fmt.Errorf("no country has a %s value in %d", column, d.LastYear)
	}
	if len(d.Excluded) > 0 {
		r.logger.Warn("countries missing a first or latest value are not plotted", "column", column, "year", d.LastYear, "codes", d.Excluded)
	}

	c, err := newCanvas(format, r.style.Width, r.style.Height)
	if err != nil {
		return nil, err
	}
	rep := &Report{Format: format, Countries: len(d.Series), Excluded: d.Excluded}

	top := 24 + r.titleSize()*2
	bottom := 24 + r.style.FontSize*3
	left, right := r.panels(top, bottom, 0)

	titles := []string{
		fmt.Sprintf("%d %s", d.LastYear, label),
		fmt.Sprintf("Change in %s since %d", label, d.FirstYear),
	}
	values := [][]float64{d.Current(), d.Changes()}
	for i, f := range []frame{left, right} {
		pr, err := r.barPanel(c, f, titles[i], d, values[i])
		var rce *core.RenderingConstraintError
		if err != nil && !errors.As(err, &rce) {
			return nil, err
		}
		r.noteConstraint(rep, titles[i], err)
		rep.Panels = append(rep.Panels, pr)
	}
	r.drawSource(c)

	r.logger.Debug("bar figure drawn", "column", column, "countries", rep.Countries, "format", format.String())
	return rep, finish(c, w)
}

func (r *Renderer) barPanel(c *canvas, f frame, title string, d *Derived, values []float64) (PanelReport, error) {
	size := r.style.FontSize
	labels := d.Labels()
	codes := d.Codes()

	bars := make([]layout.Bar, len(values))
	for i, v := range values {
		tw, _ := c.MeasureText(labels[i], size)
		bars[i] = layout.Bar{Label: labels[i], Value: v, Width: tw}
	}
	lay, lerr := layout.PlaceBarLabels(bars, layout.BarOptions{
		AreaWidth:     f.width(),
		Padding:       r.style.Padding,
		MaxIterations: r.style.MaxLayoutIterations,
	})
	if lay == nil {
		return PanelReport{Title: title}, lerr
	}

	x := axisMap{lo: lay.Min, hi: lay.Max, p0: f.x0, p1: f.x1}
	rowH := f.height() / float64(len(bars))
	barH := rowH * 0.8
	_, textH := c.MeasureText("Xg", size)

	c.text(title, f.x0, f.y0-r.titleSize()*0.8, r.titleSize(), axisColor)

	for _, t := range niceTicks(lay.Min, lay.Max, 6) {
		if t.Value < lay.Min || t.Value > lay.Max {
			continue
		}
		gx := x.px(t.Value)
		c.line(gx, f.y0, gx, f.y1, 1, gridColor)
		c.textCentered(t.Label, gx, f.y1+size*1.6, size, mutedColor)
	}

	pr := PanelReport{Title: title, Min: lay.Min, Max: lay.Max, Iterations: lay.Iterations}
	zero := x.px(0)
	for i, b := range bars {
		cy := f.y0 + rowH*(float64(i)+0.5)
		c.rect(zero, cy-barH/2, x.px(b.Value), cy+barH/2, r.colors.For(codes[i]))

		p := lay.Placements[i]
		col := r.colors.Neutral()
		if p.Inside {
			col = whiteText
			pr.Inside++
		} else {
			pr.Outside++
		}
		baseline := cy + textH/2 - 1
		if p.Align == layout.AlignRight {
			c.textRight(b.Label, x.px(p.X), baseline, size, col)
		} else {
			c.text(b.Label, x.px(p.X), baseline, size, col)
		}
	}
	c.line(zero, f.y0, zero, f.y1, 1.5, axisColor)
	return pr, lerr
}
