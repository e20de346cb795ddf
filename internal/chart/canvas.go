package chart

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an output image format.
type Format int

const (
	PNG Format = iota
	SVG
)

// FormatFor picks the format from a file extension: .svg is SVG, anything else PNG.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return SVG
	}
	return PNG
}

func (f Format) String() string {
	if f == SVG {
		return "svg"
	}
	return "png"
}

// canvas wraps a go-chart renderer with the primitives the figures use.
type canvas struct {
	r    gochart.Renderer
	w, h int
}

func newCanvas(format Format, w, h int) (*canvas, error) {
	provider := gochart.PNG
	if format == SVG {
		provider = gochart.SVG
	}
	r, err := provider(w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s renderer: %w", format, err)
	}
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	r.SetFont(font)
	c := &canvas{r: r, w: w, h: h}
	c.rect(0, 0, float64(w), float64(h), drawing.ColorWhite)
	return c, nil
}

// MeasureText returns the rendered size of s at the given point size.
func (c *canvas) MeasureText(s string, size float64) (float64, float64) {
	c.r.SetFontSize(size)
	b := c.r.MeasureText(s)
	return float64(b.Width()), float64(b.Height())
}

func px(v float64) int { return int(math.Round(v)) }

func (c *canvas) rect(x0, y0, x1, y1 float64, fill drawing.Color) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	c.r.SetFillColor(fill)
	c.r.SetStrokeColor(fill)
	c.r.SetStrokeWidth(0)
	c.r.MoveTo(px(x0), px(y0))
	c.r.LineTo(px(x1), px(y0))
	c.r.LineTo(px(x1), px(y1))
	c.r.LineTo(px(x0), px(y1))
	c.r.Close()
	c.r.Fill()
}

func (c *canvas) polygon(xs, ys []float64, fill drawing.Color) {
	if len(xs) < 3 {
		return
	}
	c.r.SetFillColor(fill)
	c.r.SetStrokeColor(fill)
	c.r.SetStrokeWidth(0)
	c.r.MoveTo(px(xs[0]), px(ys[0]))
	for i := 1; i < len(xs); i++ {
		c.r.LineTo(px(xs[i]), px(ys[i]))
	}
	c.r.Close()
	c.r.Fill()
}

func (c *canvas) line(x0, y0, x1, y1, width float64, col drawing.Color) {
	c.r.SetStrokeColor(col)
	c.r.SetStrokeWidth(width)
	c.r.MoveTo(px(x0), px(y0))
	c.r.LineTo(px(x1), px(y1))
	c.r.Stroke()
}

func (c *canvas) circle(x, y, radius float64, col drawing.Color) {
	c.r.SetFillColor(col)
	c.r.SetStrokeColor(col)
	c.r.SetStrokeWidth(1)
	c.r.Circle(radius, px(x), px(y))
}

// text draws s with its left edge at x and its baseline at y.
func (c *canvas) text(s string, x, y, size float64, col drawing.Color) {
	c.r.SetFontSize(size)
	c.r.SetFontColor(col)
	c.r.Text(s, px(x), px(y))
}

// textRight draws s with its right edge at x.
func (c *canvas) textRight(s string, x, y, size float64, col drawing.Color) {
	w, _ := c.MeasureText(s, size)
	c.text(s, x-w, y, size, col)
}

// textCentered draws s horizontally centred on x.
func (c *canvas) textCentered(s string, x, y, size float64, col drawing.Color) {
	w, _ := c.MeasureText(s, size)
	c.text(s, x-w/2, y, size, col)
}

// textVertical draws s rotated a quarter turn counter-clockwise, centred on y.
func (c *canvas) textVertical(s string, x, y, size float64, col drawing.Color) {
	w, _ := c.MeasureText(s, size)
	c.r.SetTextRotation(3 * math.Pi / 2)
	c.text(s, x, y+w/2, size, col)
	c.r.ClearTextRotation()
}

func (c *canvas) save(w io.Writer) error {
	return c.r.Save(w)
}

var (
	gridColor  = drawing.Color{R: 0xdd, G: 0xdd, B: 0xdd, A: 255}
	axisColor  = drawing.ColorBlack
	mutedColor = drawing.Color{R: 0x80, G: 0x80, B: 0x80, A: 255}
	whiteText  = drawing.ColorWhite
)

// axisMap converts data values to pixels along one axis.
type axisMap struct {
	lo, hi   float64
	p0, p1   float64
	inverted bool
}

func (a axisMap) px(v float64) float64 {
	if a.hi == a.lo {
		return a.p0
	}
	f := (v - a.lo) / (a.hi - a.lo)
	if a.inverted {
		f = 1 - f
	}
	return a.p0 + f*(a.p1-a.p0)
}
