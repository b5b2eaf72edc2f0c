package factors

import "math"

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252.0

// nanMean averages the defined values of xs. NaN if none are defined.
func nanMean(xs []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// nanStd is the population standard deviation of the defined values of xs.
func nanStd(xs []float64) float64 {
	mean := nanMean(xs)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	sum2, n := 0.0, 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		d := x - mean
		sum2 += d * d
		n++
	}
	return math.Sqrt(sum2 / float64(n))
}

// simpleReturns computes r_t = C_t / C_{t-1} - 1. A step with an undefined or
// non-positive previous close is NaN.
func simpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// divide returns a/b, or NaN when either side is undefined or b is zero.
func divide(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || b == 0 {
		return math.NaN()
	}
	return a / b
}
