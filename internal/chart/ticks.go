package chart

import (
	"math"
	"strconv"
)

// Tick is one labelled axis position.
type Tick struct {
	Value float64
	Label string
}

// niceTicks picks about n round tick values covering [lo, hi].
// Steps are 1, 2, 2.5 or 5 times a power of ten.
func niceTicks(lo, hi float64, n int) []Tick {
	if n < 2 || math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil
	}
	if hi <= lo {
		hi = lo + 1
	}
	span := hi - lo
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	best, bestScore := mag, math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Max(2, math.Floor(hi/step)-math.Ceil(lo/step)+1)
		if score := math.Abs(count - float64(n)); score < bestScore {
			best, bestScore = step, score
		}
	}

	var ticks []Tick
	for k := math.Ceil(lo / best); k*best <= hi+best*1e-9; k++ {
		v := k * best
		if math.Abs(v) < best*1e-9 {
			v = 0
		}
		ticks = append(ticks, Tick{Value: v, Label: formatTick(v, best)})
	}
	return ticks
}

// formatTick prints v with as many decimals as the step needs.
func formatTick(v, step float64) string {
	decimals := 0
	for ; decimals < 10; decimals++ {
		scaled := step * math.Pow(10, float64(decimals))
		if math.Abs(scaled-math.Round(scaled)) < 1e-6*math.Max(1, scaled) {
			break
		}
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
