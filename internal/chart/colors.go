package chart

import (
	"fmt"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette holds the chart colours as hex strings.
type Palette struct {
	Highlight  string `koanf:"highlight" yaml:"highlight"`
	Aggregate  string `koanf:"aggregate" yaml:"aggregate"`
	Neutral    string `koanf:"neutral" yaml:"neutral"`
	Regression string `koanf:"regression" yaml:"regression"`
}

// DefaultPalette returns the standard colours.
func DefaultPalette() Palette {
	return Palette{
		Highlight:  "#E89611",
		Aggregate:  "#1C4EAA",
		Neutral:    "#374043",
		Regression: "#7ea8be",
	}
}

// DefaultHighlight is the allow-list of country codes drawn in the
// highlight colour.
func DefaultHighlight() []string {
	return []string{"NZL", "SWE", "CAN", "JPN"}
}

// ParseColor converts "#rrggbb" to a drawing colour.
func ParseColor(hex string) (drawing.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return drawing.Color{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return drawing.Color{R: r, G: g, B: b, A: 255}, nil
}

// Colorizer assigns a colour to each country code by static lookup.
type Colorizer struct {
	highlight  []string
	aggregate  string
	hi, agg, n drawing.Color
	regression drawing.Color
}

// NewColorizer validates the palette and builds the lookup.
func NewColorizer(p Palette, highlight []string, aggregate string) (*Colorizer, error) {
	c := &Colorizer{highlight: append([]string(nil), highlight...), aggregate: aggregate}
	for _, f := range []struct {
		hex string
		dst *drawing.Color
	}{
		{p.Highlight, &c.hi},
		{p.Aggregate, &c.agg},
		{p.Neutral, &c.n},
		{p.Regression, &c.regression},
	} {
		col, err := ParseColor(f.hex)
		if err != nil {
			return nil, err
		}
		*f.dst = col
	}
	return c, nil
}

// For returns the colour of a country code.
func (c *Colorizer) For(code string) drawing.Color {
	switch {
	case slices.Contains(c.highlight, code):
		return c.hi
	case code == c.aggregate:
		return c.agg
	default:
		return c.n
	}
}

// Neutral returns the colour used for plain text and ordinary bars.
func (c *Colorizer) Neutral() drawing.Color { return c.n }

// Regression returns the fit line colour.
func (c *Colorizer) Regression() drawing.Color { return c.regression }
