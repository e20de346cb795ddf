package chart

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/housetax/pkg/core"
)

// Style holds figure dimensions and text settings.
type Style struct {
	Width    int
	Height   int
	FontSize float64
	// Padding is the gap in pixels between a bar edge and its label.
	Padding             float64
	SourceNote          string
	MaxLayoutIterations int
	RepelIterations     int
}

// DefaultStyle returns a 1600x1000 figure with 12pt labels.
func DefaultStyle() Style {
	return Style{
		Width:               1600,
		Height:              1000,
		FontSize:            12,
		Padding:             6,
		SourceNote:          "Source: OECD, https://stats.oecd.org/",
		MaxLayoutIterations: 50,
		RepelIterations:     200,
	}
}

// Renderer draws figures with a fixed style and colour lookup.
type Renderer struct {
	style  Style
	colors *Colorizer
	logger *slog.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(style Style, colors *Colorizer, logger *slog.Logger) (*Renderer, error) {
	if style.Width <= 0 || style.Height <= 0 {
		return nil, fmt.Errorf("figure size must be positive, got %dx%d", style.Width, style.Height)
	}
	if style.FontSize <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %g", style.FontSize)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{style: style, colors: colors, logger: logger}, nil
}

// Report summarizes a rendered figure.
type Report struct {
	Format     Format
	Countries  int
	Excluded   []string
	Panels     []PanelReport
	Constraint error
}

// PanelReport describes one panel of a figure.
type PanelReport struct {
	Title      string
	Min, Max   float64
	Inside     int
	Outside    int
	Iterations int
	Overlaps   int
	Fit        *Fit
}

// frame is the pixel box one panel draws into.
type frame struct {
	x0, y0, x1, y1 float64
}

func (f frame) width() float64  { return f.x1 - f.x0 }
func (f frame) height() float64 { return f.y1 - f.y0 }

func (r *Renderer) titleSize() float64  { return r.style.FontSize * 1.4 }
func (r *Renderer) sourceSize() float64 { return r.style.FontSize * 0.85 }

// panels splits the figure into two side-by-side frames below the titles.
func (r *Renderer) panels(top, bottom, left float64) (frame, frame) {
	const margin, gap = 24.0, 48.0
	w := (float64(r.style.Width) - 2*margin - gap - left*2) / 2
	a := frame{x0: margin + left, y0: top, x1: margin + left + w, y1: float64(r.style.Height) - bottom}
	b := frame{x0: a.x1 + gap + left, y0: top, x1: a.x1 + gap + left + w, y1: a.y1}
	return a, b
}

func (r *Renderer) drawSource(c *canvas) {
	if r.style.SourceNote == "" {
		return
	}
	c.text(r.style.SourceNote, 24, float64(r.style.Height)-12, r.sourceSize(), mutedColor)
}

// keep the first constraint error and log every one
func (r *Renderer) noteConstraint(rep *Report, panel string, err error) {
	var rce *core.RenderingConstraintError
	if errors.As(err, &rce) {
		r.logger.Warn("label layout constrained", "panel", panel, "error", err)
		if rep.Constraint == nil {
			rep.Constraint = err
		}
	}
}

func finish(c *canvas, w io.Writer) error {
	if err := c.save(w); err != nil {
		return fmt.Errorf("failed to encode figure: %w", err)
	}
	return nil
}
