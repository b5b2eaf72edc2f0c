package factors

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// pairWindow holds a single asset whose close is a and open is b.
func pairWindow(a, b float64) *Window {
	w := NewWindow([]string{"AAPL"}, 1)
	w.Set(Close, 0, 0, a)
	w.Set(Open, 0, 0, b)
	return w
}

func TestPercentDifferenceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	a, b := NewLatest(Close), NewLatest(Open)
	pct := Div(Sub(a, b), b)

	properties.Property("(A-B)/B matches scalar arithmetic where B is defined and non-zero", prop.ForAll(
		func(x, y float64) bool {
			if y == 0 {
				return true
			}
			got := pct.Compute(pairWindow(x, y))[0]
			return got == (x-y)/y
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("(A-B)/B is NaN where B is zero or undefined", prop.ForAll(
		func(x, y float64) bool {
			return math.IsNaN(pct.Compute(pairWindow(x, y))[0])
		},
		gen.Float64Range(-1e6, 1e6),
		gen.OneGenOf(gen.Const(0.0), gen.Const(math.NaN())),
	))

	properties.Property("undefined A propagates", prop.ForAll(
		func(y float64) bool {
			return math.IsNaN(pct.Compute(pairWindow(math.NaN(), y))[0])
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("add and sub are inverse on defined values", prop.ForAll(
		func(x, y float64) bool {
			got := Sub(Add(a, b), b).Compute(pairWindow(x, y))[0]
			return math.Abs(got-x) <= 1e-9*math.Max(1, math.Abs(x)+math.Abs(y))
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
