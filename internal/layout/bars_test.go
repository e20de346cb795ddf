package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/housetax/pkg/core"
)

const eps = 1e-9

func defaultOpts() BarOptions {
	return BarOptions{AreaWidth: 600, Padding: 4}
}

// checkContained asserts every label lies within the bounds and that the
// bounds are the tightest ones: each equals the farthest bar tip (plus
// padding) or label edge on its side.
func checkContained(t *testing.T, bars []Bar, opts BarOptions, out *BarLayout) {
	t.Helper()
	span := out.Span()
	tol := eps * math.Max(1, span)
	pad := opts.Padding * span / opts.AreaWidth

	wantMax, wantMin := 0.0, 0.0
	for i, b := range bars {
		p := out.Placements[i]
		w := b.Width * span / opts.AreaWidth
		assert.GreaterOrEqual(t, p.Start, out.Min-tol, "label %d starts before Min", i)
		assert.LessOrEqual(t, p.End, out.Max+tol, "label %d ends after Max", i)
		assert.InDelta(t, w, p.End-p.Start, tol, "label %d extent matches its width", i)

		if p.Inside {
			assert.LessOrEqual(t, w+2*pad, math.Abs(b.Value)+tol, "inside label %d fits its bar", i)
		}
		switch {
		case b.Value > 0:
			assert.Equal(t, AlignLeft, p.Align)
			wantMax = math.Max(wantMax, b.Value+pad)
		case b.Value < 0:
			assert.Equal(t, AlignRight, p.Align)
			wantMin = math.Min(wantMin, b.Value-pad)
		default:
			assert.Equal(t, AlignLeft, p.Align)
		}
		wantMax = math.Max(wantMax, p.End)
		wantMin = math.Min(wantMin, p.Start)
	}
	assert.InDelta(t, wantMax, out.Max, tol, "tight upper bound")
	assert.InDelta(t, wantMin, out.Min, tol, "tight lower bound")
}

func monotone(values []float64, width float64) []Bar {
	bars := make([]Bar, len(values))
	for i, v := range values {
		bars[i] = Bar{Label: "label", Value: v, Width: width + float64(i%3)*20}
	}
	return bars
}

func TestPlaceBarLabelsMonotoneSequences(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  float64
	}{
		{"all positive", []float64{1, 5, 10, 40, 100, 180}, 60},
		{"all negative", []float64{-90, -40, -12, -3, -0.5}, 70},
		{"crossing zero", []float64{-50, -20, -1, 0, 3, 25, 80}, 80},
		{"one dominant bar", []float64{0.1, 0.2, 0.3, 1000}, 50},
		{"tiny values", []float64{-0.002, -0.001, 0.0005, 0.003}, 40},
		{"wide labels", []float64{-10, 5, 10, 20}, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := monotone(tt.values, tt.width)
			out, err := PlaceBarLabels(bars, defaultOpts())
			require.NoError(t, err)
			checkContained(t, bars, defaultOpts(), out)
		})
	}
}

func TestPlaceBarLabelsIsMinimal(t *testing.T) {
	bars := monotone([]float64{-50, -20, -1, 3, 25, 80}, 90)
	opts := defaultOpts()
	out, err := PlaceBarLabels(bars, opts)
	require.NoError(t, err)

	// At any smaller span the decisions made at that span need more room
	// than the span provides.
	for _, f := range []float64{0.5, 0.9, 0.99} {
		r := out.Span() * f
		outside := make([]bool, len(bars))
		for i, b := range bars {
			outside[i] = !fitsInside(b, r, opts)
		}
		need, skipped := solveSpan(bars, outside, opts)
		require.Empty(t, skipped)
		assert.Greater(t, need, r, "span %.4f would be feasible", r)
	}
}

func TestPlaceBarLabelsInsideDecision(t *testing.T) {
	bars := []Bar{{Label: "long bar", Value: 100, Width: 50}, {Label: "short bar", Value: 2, Width: 50}}
	out, err := PlaceBarLabels(bars, defaultOpts())
	require.NoError(t, err)

	assert.True(t, out.Placements[0].Inside)
	assert.False(t, out.Placements[1].Inside)
	assert.InDelta(t, 0, out.Min, eps)
	assert.Greater(t, out.Max, 100.0)
}

func TestPlaceBarLabelsAllZero(t *testing.T) {
	bars := []Bar{{Label: "a", Value: 0, Width: 20}, {Label: "b", Value: 0, Width: 30}}
	out, err := PlaceBarLabels(bars, defaultOpts())
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Min, eps)
	assert.Greater(t, out.Max, 0.0)
	for _, p := range out.Placements {
		assert.False(t, p.Inside)
		assert.LessOrEqual(t, p.End, out.Max+eps)
	}
}

func TestPlaceBarLabelsTooWide(t *testing.T) {
	bars := []Bar{
		{Label: "fits", Value: 10, Width: 40},
		{Label: "wider than the panel", Value: 1, Width: 900},
	}
	out, err := PlaceBarLabels(bars, defaultOpts())
	var rce *core.RenderingConstraintError
	require.True(t, errors.As(err, &rce), "got %v", err)
	assert.Equal(t, "wider than the panel", rce.Label)

	require.NotNil(t, out, "best bound is still returned")
	assert.True(t, out.Placements[1].Clipped)
	assert.False(t, out.Placements[0].Clipped)
	assert.False(t, math.IsInf(out.Max, 0))
	assert.LessOrEqual(t, out.Placements[0].End, out.Max+eps)
}

func TestPlaceBarLabelsInvalidArea(t *testing.T) {
	_, err := PlaceBarLabels([]Bar{{Value: 1, Width: 1}}, BarOptions{})
	var rce *core.RenderingConstraintError
	assert.True(t, errors.As(err, &rce))
}

func TestPlaceBarLabelsRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name string
		bar  Bar
	}{
		{"nan value", Bar{Label: "NZL", Value: math.NaN(), Width: 30}},
		{"infinite value", Bar{Label: "NZL", Value: math.Inf(-1), Width: 30}},
		{"nan width", Bar{Label: "NZL", Value: 4, Width: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := []Bar{{Label: "SWE", Value: 10, Width: 30}, tt.bar}
			out, err := PlaceBarLabels(bars, defaultOpts())
			require.ErrorIs(t, err, ErrNonFinite)
			assert.Contains(t, err.Error(), `bar 1 "NZL"`)
			assert.Nil(t, out)

			var rce *core.RenderingConstraintError
			assert.False(t, errors.As(err, &rce), "not a recoverable layout constraint")
		})
	}
}
