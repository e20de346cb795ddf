package chart

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrDegenerateFit is returned when the points cannot define a line.
var ErrDegenerateFit = errors.New("regression needs at least three points with distinct x values")

// Fit is an ordinary least-squares line y = Alpha + Beta*x with the
// statistics needed for a 95% confidence band on the mean.
type Fit struct {
	Alpha, Beta float64
	RSquared    float64
	N           int

	meanX float64
	sxx   float64
	se    float64
	tcrit float64
}

// FitLine fits ys against xs.
func FitLine(xs, ys []float64) (*Fit, error) {
	n := len(xs)
	if n != len(ys) || n < 3 {
		return nil, ErrDegenerateFit
	}
	meanX := stat.Mean(xs, nil)
	var sxx float64
	for _, x := range xs {
		sxx += (x - meanX) * (x - meanX)
	}
	if sxx == 0 {
		return nil, ErrDegenerateFit
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	var ssr float64
	for i, x := range xs {
		r := ys[i] - (alpha + beta*x)
		ssr += r * r
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}

	return &Fit{
		Alpha:    alpha,
		Beta:     beta,
		RSquared: stat.RSquared(xs, ys, nil, alpha, beta),
		N:        n,
		meanX:    meanX,
		sxx:      sxx,
		se:       math.Sqrt(ssr / float64(n-2)),
		tcrit:    t.Quantile(0.975),
	}, nil
}

// At evaluates the line.
func (f *Fit) At(x float64) float64 { return f.Alpha + f.Beta*x }

// Band returns the 95% confidence interval of the fitted mean at x.
func (f *Fit) Band(x float64) (lo, hi float64) {
	half := f.tcrit * f.se * math.Sqrt(1/float64(f.N)+(x-f.meanX)*(x-f.meanX)/f.sxx)
	y := f.At(x)
	return y - half, y + half
}
