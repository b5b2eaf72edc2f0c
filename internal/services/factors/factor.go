package factors

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidWindow = errors.New("invalid window length")
	ErrUnknownColumn = errors.New("unknown column")
	ErrInvalidExpr   = errors.New("invalid factor expression")
)

// MaxWindowLength caps the trailing window any factor may request: ten years
// of trading sessions.
const MaxWindowLength = 2520

// Factor is a numeric value computed per asset from a trailing window of
// pricing data. NaN marks an undefined value.
type Factor interface {
	// WindowLength is the number of trailing sessions Compute needs.
	WindowLength() int
	// Compute returns one value per w.Assets. w holds at most WindowLength
	// rows; fewer when history is short, and missing rows count as NaN.
	Compute(w *Window) []float64
	Validate() error
	// String is a canonical, parseable rendering of the expression.
	String() string
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// checkWindow validates a window length against [lo, MaxWindowLength].
func checkWindow(f Factor, n, lo int) error {
	if n < lo {
		return fmt.Errorf("%s: %w: needs at least %d sessions, got %d", f, ErrInvalidWindow, lo, n)
	}
	if n > MaxWindowLength {
		return fmt.Errorf("%s: %w: at most %d sessions, got %d", f, ErrInvalidWindow, MaxWindowLength, n)
	}
	return nil
}
