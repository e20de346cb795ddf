package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/leapstack-labs/housetax/pkg/core"
)

const stageLayout = "layout"

// ErrNonFinite is returned for a bar whose value or label width is NaN or infinite.
var ErrNonFinite = errors.New("bar value and label width must be finite")

// Align is the horizontal anchor of a label.
type Align int

const (
	// AlignLeft anchors the label's left edge at X.
	AlignLeft Align = iota
	// AlignRight anchors the label's right edge at X.
	AlignRight
)

// Bar is one bar and the measured width of its label.
type Bar struct {
	Label string
	Value float64
	// Width of the rendered label, in pixels.
	Width float64
}

// BarOptions describes the drawing area the bars live in.
type BarOptions struct {
	// AreaWidth is the pixel width of the value axis.
	AreaWidth float64
	// Padding is the pixel gap between a bar edge and its label.
	Padding float64
	// MaxIterations caps the decide-and-resolve loop. Zero means len(bars)+2.
	MaxIterations int
}

// Bounds is a value-axis range.
type Bounds struct {
	Min, Max float64
}

// Span returns Max - Min.
func (b Bounds) Span() float64 { return b.Max - b.Min }

// Placement is where one label is drawn, in data units.
type Placement struct {
	Inside bool
	Align  Align
	// X is the anchor; see Align.
	X float64
	// Start and End are the label's horizontal extent.
	Start, End float64
	// Clipped is set when no finite bound can contain the label.
	Clipped bool
}

// BarLayout is the result of PlaceBarLabels.
type BarLayout struct {
	Bounds
	Placements []Placement
	Iterations int
}

// linear constraint: bound >= a + c*span (upper) or bound <= b - d*span (lower).
type constraint struct {
	v   float64
	k   float64
	bar int
}

// PlaceBarLabels decides for every bar whether its label fits inside and
// computes the tightest axis bounds that contain every bar and label.
//
// A label goes inside when its width plus a padding on both sides fits in
// the bar at the final scale; otherwise it sits past the tip. Both sides of
// zero are handled; zero-valued bars count as positive. When labels cannot
// fit in any finite range a RenderingConstraintError is returned together
// with the bounds that ignore the offending labels.
func PlaceBarLabels(bars []Bar, opts BarOptions) (*BarLayout, error) {
	if opts.AreaWidth <= 0 {
		return nil, core.NewRenderingConstraintError(stageLayout, "", 0, "plot area width must be positive")
	}
	for i, b := range bars {
		if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) || math.IsNaN(b.Width) || math.IsInf(b.Width, 0) {
			return nil, fmt.Errorf("bar %d %q (value %v, width %v): %w", i, b.Label, b.Value, b.Width, ErrNonFinite)
		}
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = len(bars) + 2
	}

	outside := make([]bool, len(bars))
	var (
		span    float64
		skipped map[int]bool
		iter    int
	)
	for iter = 1; ; iter++ {
		span, skipped = solveSpan(bars, outside, opts)
		changed := false
		for i, b := range bars {
			if !outside[i] && !fitsInside(b, span, opts) {
				outside[i] = true
				changed = true
			}
		}
		if !changed {
			break
		}
		if iter >= maxIter {
			span, skipped = solveSpan(bars, outside, opts)
			out := build(bars, outside, skipped, span, opts, iter)
			return out, core.NewRenderingConstraintError(stageLayout, "", iter, "label placement did not settle")
		}
	}

	out := build(bars, outside, skipped, span, opts, iter)
	if len(skipped) > 0 {
		first := len(bars)
		for i := range skipped {
			first = min(first, i)
		}
		return out, core.NewRenderingConstraintError(stageLayout, bars[first].Label, iter,
			"label is too wide for the plot area at any axis range")
	}
	return out, nil
}

func fitsInside(b Bar, span float64, opts BarOptions) bool {
	return (b.Width+2*opts.Padding)*span/opts.AreaWidth <= math.Abs(b.Value)
}

func constraints(bars []Bar, outside []bool, opts BarOptions) (upper, lower []constraint) {
	upper = []constraint{{bar: -1}}
	lower = []constraint{{bar: -1}}
	pad := opts.Padding / opts.AreaWidth
	for i, b := range bars {
		switch {
		case b.Value > 0:
			upper = append(upper, constraint{v: b.Value, k: pad, bar: -1})
		case b.Value < 0:
			lower = append(lower, constraint{v: b.Value, k: pad, bar: -1})
		}
		if !outside[i] {
			continue
		}
		k := (opts.Padding + b.Width) / opts.AreaWidth
		if b.Value >= 0 {
			upper = append(upper, constraint{v: b.Value, k: k, bar: i})
		} else {
			lower = append(lower, constraint{v: b.Value, k: k, bar: i})
		}
	}
	return upper, lower
}

// solveSpan returns the smallest span r with
// max(a + c*r) - min(b - d*r) <= r for the given decisions. Label
// constraints that make every finite r infeasible are dropped and
// reported in skipped.
func solveSpan(bars []Bar, outside []bool, opts BarOptions) (float64, map[int]bool) {
	upper, lower := constraints(bars, outside, opts)
	skipped := make(map[int]bool)

	for {
		span := 0.0
		var bad *constraint
		for ui := range upper {
			u := upper[ui]
			for li := range lower {
				l := lower[li]
				den := 1 - u.k - l.k
				gap := u.v - l.v
				if den <= 0 {
					if gap > 0 || den < 0 {
						if u.bar >= 0 && (bad == nil || u.k > bad.k) {
							bad = &upper[ui]
						}
						if l.bar >= 0 && (bad == nil || l.k > bad.k) {
							bad = &lower[li]
						}
					}
					continue
				}
				span = max(span, gap/den)
			}
		}
		if bad == nil {
			if span <= 0 {
				span = 1
			}
			return span, skipped
		}
		skipped[bad.bar] = true
		upper = without(upper, bad.bar)
		lower = without(lower, bad.bar)
	}
}

func without(cs []constraint, bar int) []constraint {
	out := cs[:0:0]
	for _, c := range cs {
		if c.bar != bar {
			out = append(out, c)
		}
	}
	return out
}

func build(bars []Bar, outside []bool, skipped map[int]bool, span float64, opts BarOptions, iter int) *BarLayout {
	scale := span / opts.AreaWidth
	pad := opts.Padding * scale

	upper, lower := constraints(bars, outside, opts)
	hi := math.Inf(-1)
	for _, u := range upper {
		if skipped[u.bar] && u.bar >= 0 {
			continue
		}
		hi = max(hi, u.v+u.k*span)
	}
	lo := math.Inf(1)
	for _, l := range lower {
		if skipped[l.bar] && l.bar >= 0 {
			continue
		}
		lo = min(lo, l.v-l.k*span)
	}
	// Distribute any slack so Max-Min equals span and the scale is exact.
	if slack := span - (hi - lo); slack > 0 {
		if lo < 0 && hi > 0 {
			hi += slack / 2
			lo -= slack / 2
		} else if lo < 0 {
			lo -= slack
		} else {
			hi += slack
		}
	}

	out := &BarLayout{Bounds: Bounds{Min: lo, Max: hi}, Iterations: iter}
	out.Placements = make([]Placement, len(bars))
	for i, b := range bars {
		w := b.Width * scale
		neg := b.Value < 0
		var p Placement
		switch {
		case !outside[i] && !neg:
			p = Placement{Inside: true, Align: AlignLeft, X: pad}
			p.Start, p.End = pad, pad+w
		case !outside[i] && neg:
			p = Placement{Inside: true, Align: AlignRight, X: -pad}
			p.Start, p.End = -pad-w, -pad
		case !neg:
			p = Placement{Align: AlignLeft, X: b.Value + pad}
			p.Start, p.End = p.X, p.X+w
		default:
			p = Placement{Align: AlignRight, X: b.Value - pad}
			p.Start, p.End = p.X-w, p.X
		}
		p.Clipped = skipped[i]
		out.Placements[i] = p
	}
	return out
}
