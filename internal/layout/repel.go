package layout

import "math"

// Rect is an axis-aligned box in pixel space, Y growing downwards.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) { return (r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2 }

func (r Rect) shift(dx, dy float64) Rect {
	return Rect{r.X0 + dx, r.Y0 + dy, r.X1 + dx, r.Y1 + dy}
}

// overlap returns the penetration depth on each axis, including pad.
// Both are positive only when the boxes intersect.
func overlap(a, b Rect, pad float64) (float64, float64) {
	ox := math.Min(a.X1, b.X1) - math.Max(a.X0, b.X0) + pad
	oy := math.Min(a.Y1, b.Y1) - math.Max(a.Y0, b.Y0) + pad
	return ox, oy
}

// PointLabel is a text label attached to a scatter point.
type PointLabel struct {
	X, Y float64 // anchor point
	W, H float64 // measured text size
}

// RepelOptions tunes the force-directed pass.
type RepelOptions struct {
	// Bounds keeps labels inside the plot area. A zero Rect disables clamping.
	Bounds Rect
	// Padding is the minimum gap between two labels.
	Padding float64
	// PointRadius is the marker radius labels must not cover.
	PointRadius float64
	// MaxIterations caps the pass. Zero means 200.
	MaxIterations int
}

// RepelResult holds the final label boxes.
type RepelResult struct {
	Boxes      []Rect
	Iterations int
	// Overlaps is the number of label pairs still intersecting.
	Overlaps int
}

// Repel spreads labels apart. Each label starts centred above its point.
// Every iteration resolves overlapping label pairs along the axis of least
// penetration: sideways by splitting the overlap, vertically by lifting the
// higher label. Labels covering a marker are lifted clear of it. Vertical
// moves only go up, so the pass settles unless the plot bounds stop it;
// it ends when nothing moves or at the iteration cap. The result depends
// only on the input order.
func Repel(labels []PointLabel, opts RepelOptions) RepelResult {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 200
	}
	boxes := make([]Rect, len(labels))
	for i, l := range labels {
		y1 := l.Y - opts.PointRadius - opts.Padding
		boxes[i] = Rect{X0: l.X - l.W/2, Y0: y1 - l.H, X1: l.X + l.W/2, Y1: y1}
		boxes[i] = clamp(boxes[i], opts.Bounds)
	}

	iter := 0
	for iter < maxIter {
		iter++
		moved := false

		for i := range boxes {
			for j := i + 1; j < len(boxes); j++ {
				ox, oy := overlap(boxes[i], boxes[j], opts.Padding)
				if ox <= 0 || oy <= 0 {
					continue
				}
				ix, iy := boxes[i].Center()
				jx, jy := boxes[j].Center()
				if ox < oy {
					d := direction(ix - jx)
					boxes[i] = boxes[i].shift(d*ox/2, 0)
					boxes[j] = boxes[j].shift(-d*ox/2, 0)
				} else if iy <= jy {
					boxes[i] = boxes[i].shift(0, -oy)
				} else {
					boxes[j] = boxes[j].shift(0, -oy)
				}
				moved = true
			}
		}

		for i := range boxes {
			for _, l := range labels {
				marker := Rect{l.X - opts.PointRadius, l.Y - opts.PointRadius, l.X + opts.PointRadius, l.Y + opts.PointRadius}
				if ox, oy := overlap(boxes[i], marker, 0); ox <= 0 || oy <= 0 {
					continue
				}
				boxes[i] = boxes[i].shift(0, -(boxes[i].Y1 - marker.Y0 + opts.Padding))
				moved = true
			}
		}

		for i := range boxes {
			boxes[i] = clamp(boxes[i], opts.Bounds)
		}
		if !moved {
			break
		}
	}

	res := RepelResult{Boxes: boxes, Iterations: iter}
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if ox, oy := overlap(boxes[i], boxes[j], 0); ox > 0 && oy > 0 {
				res.Overlaps++
			}
		}
	}
	return res
}

// direction maps a signed delta to -1 or +1, with ties going negative.
func direction(delta float64) float64 {
	if delta > 0 {
		return 1
	}
	return -1
}

func clamp(r Rect, b Rect) Rect {
	if b == (Rect{}) {
		return r
	}
	w, h := r.X1-r.X0, r.Y1-r.Y0
	if r.X0 < b.X0 {
		r.X0, r.X1 = b.X0, b.X0+w
	}
	if r.X1 > b.X1 {
		r.X0, r.X1 = b.X1-w, b.X1
	}
	if r.Y0 < b.Y0 {
		r.Y0, r.Y1 = b.Y0, b.Y0+h
	}
	if r.Y1 > b.Y1 {
		r.Y0, r.Y1 = b.Y1-h, b.Y1
	}
	return r
}
