package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/leapstack-labs/housetax/internal/layout"
	"github.com/leapstack-labs/housetax/pkg/core"
)

// Axis names one scatter dimension.
type Axis struct {
	Column string
	Label  string
}

type point struct {
	code string
	x, y float64
}

// Scatter renders two scatter plots of y against x: latest-year values and
// changes since the first year, each with a least-squares fit.
func (r *Renderer) Scatter(w io.Writer, format Format, recs []core.CombinedRecord, xAxis, yAxis Axis) (*Report, error) {
	dx, err := Views(recs, xAxis.Column)
	if err != nil {
		return nil, err
	}
	dy, err := Views(recs, yAxis.Column)
	if err != nil {
		return nil, err
	}
	ys := make(map[string]core.DerivedSeries, len(dy.Series))
	for _, s := range dy.Series {
		ys[s.Code3] = s
	}
	var current, change []point
	for _, s := range dx.Series {
		t, ok := ys[s.Code3]
		if !ok {
			continue
		}
		current = append(current, point{code: s.Code3, x: s.Last, y: t.Last})
		change = append(change, point{code: s.Code3, x: s.Change, y: t.Change})
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("no country has both %s and %s in %d", xAxis.Column, yAxis.Column, dx.LastYear)
	}

	c, err := newCanvas(format, r.style.Width, r.style.Height)
	if err != nil {
		return nil, err
	}
	excluded := excludedFrom(dx, dy)
	if len(excluded) > 0 {
		r.logger.Warn("countries missing a first or latest value are not plotted",
			"x", xAxis.Column, "y", yAxis.Column, "year", dx.LastYear, "codes", excluded)
	}
	rep := &Report{Format: format, Countries: len(current), Excluded: excluded}

	top := 24 + r.titleSize()*2
	bottom := 24 + r.style.FontSize*5
	left, right := r.panels(top, bottom, r.style.FontSize*4)

	panels := []struct {
		f      frame
		title  string
		xl, yl string
		pts    []point
	}{
		{left, "Comparison of current values",
			fmt.Sprintf("%d %s", dx.LastYear, xAxis.Label), fmt.Sprintf("%d %s", dx.LastYear, yAxis.Label), current},
		{right, "Comparison of changes",
			fmt.Sprintf("Change in %s since %d", xAxis.Label, dx.FirstYear),
			fmt.Sprintf("Change in %s since %d", yAxis.Label, dx.FirstYear), change},
	}
	for _, p := range panels {
		pr, err := r.scatterPanel(c, p.f, p.title, p.xl, p.yl, p.pts)
		if err != nil && !errors.Is(err, ErrDegenerateFit) {
			return nil, err
		}
		rep.Panels = append(rep.Panels, pr)
	}
	r.drawSource(c)

	r.logger.Debug("scatter figure drawn", "x", xAxis.Column, "y", yAxis.Column, "countries", rep.Countries)
	return rep, finish(c, w)
}

func (r *Renderer) scatterPanel(c *canvas, f frame, title, xLabel, yLabel string, pts []point) (PanelReport, error) {
	size := r.style.FontSize
	pr := PanelReport{Title: title}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.x, p.y
	}
	xlo, xhi := padRange(xs)
	ylo, yhi := padRange(ys)

	fit, ferr := FitLine(xs, ys)
	if ferr != nil {
		r.logger.Warn("regression skipped", "panel", title, "points", len(pts), "error", ferr)
	} else {
		pr.Fit = fit
		r.logger.Debug("regression fitted", "panel", title, "alpha", fit.Alpha, "beta", fit.Beta, "r2", fit.RSquared)
		for _, x := range []float64{xlo, xhi} {
			lo, hi := fit.Band(x)
			ylo, yhi = math.Min(ylo, lo), math.Max(yhi, hi)
		}
	}

	xm := axisMap{lo: xlo, hi: xhi, p0: f.x0, p1: f.x1}
	ym := axisMap{lo: ylo, hi: yhi, p0: f.y0, p1: f.y1, inverted: true}
	pr.Min, pr.Max = xlo, xhi

	c.text(title, f.x0, f.y0-r.titleSize()*0.8, r.titleSize(), axisColor)
	for _, t := range niceTicks(xlo, xhi, 6) {
		if t.Value < xlo || t.Value > xhi {
			continue
		}
		gx := xm.px(t.Value)
		c.line(gx, f.y0, gx, f.y1, 1, gridColor)
		c.textCentered(t.Label, gx, f.y1+size*1.6, size, mutedColor)
	}
	for _, t := range niceTicks(ylo, yhi, 6) {
		if t.Value < ylo || t.Value > yhi {
			continue
		}
		gy := ym.px(t.Value)
		c.line(f.x0, gy, f.x1, gy, 1, gridColor)
		c.textRight(t.Label, f.x0-size*0.5, gy+size*0.4, size, mutedColor)
	}
	c.textCentered(xLabel, (f.x0+f.x1)/2, f.y1+size*3.4, size, axisColor)
	c.textVertical(yLabel, f.x0-size*3.6, (f.y0+f.y1)/2, size, axisColor)

	if fit != nil {
		band := r.colors.Regression()
		band.A = 60
		const steps = 24
		var bx, by []float64
		for i := 0; i <= steps; i++ {
			x := xlo + (xhi-xlo)*float64(i)/steps
			_, hi := fit.Band(x)
			bx, by = append(bx, xm.px(x)), append(by, ym.px(hi))
		}
		for i := steps; i >= 0; i-- {
			x := xlo + (xhi-xlo)*float64(i)/steps
			lo, _ := fit.Band(x)
			bx, by = append(bx, xm.px(x)), append(by, ym.px(lo))
		}
		c.polygon(bx, by, band)
		c.line(xm.px(xlo), ym.px(fit.At(xlo)), xm.px(xhi), ym.px(fit.At(xhi)), 2.5, r.colors.Regression())
	}

	const radius = 5.0
	labels := make([]layout.PointLabel, len(pts))
	for i, p := range pts {
		cx, cy := xm.px(p.x), ym.px(p.y)
		c.circle(cx, cy, radius, r.colors.For(p.code))
		tw, th := c.MeasureText(p.code, size)
		labels[i] = layout.PointLabel{X: cx, Y: cy, W: tw, H: th}
	}
	res := layout.Repel(labels, layout.RepelOptions{
		Bounds:        layout.Rect{X0: f.x0, Y0: f.y0, X1: f.x1, Y1: f.y1},
		Padding:       2,
		PointRadius:   radius,
		MaxIterations: r.style.RepelIterations,
	})
	pr.Iterations, pr.Overlaps = res.Iterations, res.Overlaps
	for i, box := range res.Boxes {
		col := r.colors.For(pts[i].code)
		c.text(pts[i].code, box.X0, box.Y1-1, size, darken(col))
	}
	return pr, ferr
}

// padRange returns [min, max] widened by 5% on each side.
func padRange(vs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo == hi {
		return lo - 1, hi + 1
	}
	m := (hi - lo) * 0.05
	return lo - m, hi + m
}

func darken(c drawing.Color) drawing.Color {
	return drawing.Color{R: c.R / 4 * 3, G: c.G / 4 * 3, B: c.B / 4 * 3, A: c.A}
}

// excludedFrom merges the exclusions of both axes, sorted and unique.
func excludedFrom(views ...*Derived) []string {
	var out []string
	for _, d := range views {
		for _, code := range d.Excluded {
			if !slices.Contains(out, code) {
				out = append(out, code)
			}
		}
	}
	slices.Sort(out)
	return out
}
