package factors

import (
	"fmt"
	"math"
)

// SimpleMovingAverage is the average of a column over a trailing window,
// ignoring missing observations.
type SimpleMovingAverage struct {
	Input  Column
	Window int
}

// NewSimpleMovingAverage creates an SMA of input over window sessions.
func NewSimpleMovingAverage(input Column, window int) *SimpleMovingAverage {
	return &SimpleMovingAverage{Input: input, Window: window}
}

func (f *SimpleMovingAverage) WindowLength() int { return f.Window }

func (f *SimpleMovingAverage) Validate() error {
	if !f.Input.Valid() {
		return fmt.Errorf("%s: %w: %q", f, ErrUnknownColumn, f.Input)
	}
	return checkWindow(f, f.Window, 1)
}

func (f *SimpleMovingAverage) Compute(w *Window) []float64 {
	tail := w.Tail(f.Window)
	out := make([]float64, len(w.Assets))
	for a := range w.Assets {
		out[a] = nanMean(tail.series(f.Input, a))
	}
	return out
}

// String renders the factor as sma(<column>,<window>).
func (f *SimpleMovingAverage) String() string {
	return fmt.Sprintf("sma(%s,%d)", f.Input, f.Window)
}

// Latest is the most recent value of a column.
type Latest struct {
	Input Column
}

// NewLatest creates a factor returning the last value of input.
func NewLatest(input Column) *Latest { return &Latest{Input: input} }

func (f *Latest) WindowLength() int { return 1 }

func (f *Latest) Validate() error {
	if !f.Input.Valid() {
		return fmt.Errorf("%s: %w: %q", f, ErrUnknownColumn, f.Input)
	}
	return nil
}

func (f *Latest) Compute(w *Window) []float64 {
	out := nanSlice(len(w.Assets))
	if w.Len() == 0 {
		return out
	}
	last := w.Column(f.Input)[w.Len()-1]
	copy(out, last)
	return out
}

func (f *Latest) String() string { return fmt.Sprintf("latest(%s)", f.Input) }

// Returns is the percent change in close over the window.
type Returns struct {
	Window int
}

// NewReturns creates a close-to-close return over window sessions.
func NewReturns(window int) *Returns { return &Returns{Window: window} }

func (f *Returns) WindowLength() int { return f.Window }

func (f *Returns) Validate() error {
	return checkWindow(f, f.Window, 2)
}

// Compute is NaN for assets whose first or last close in the window is missing,
// and for every asset when the window is shorter than f.Window.
func (f *Returns) Compute(w *Window) []float64 {
	m := w.Tail(f.Window).Column(Close)
	out := nanSlice(len(w.Assets))
	if len(m) < f.Window {
		return out
	}
	first, last := m[0], m[len(m)-1]
	for a := range w.Assets {
		out[a] = divide(last[a], first[a]) - 1
	}
	return out
}

func (f *Returns) String() string { return fmt.Sprintf("returns(%d)", f.Window) }

// VWAP is the volume-weighted average close over the window.
type VWAP struct {
	Window int
}

// NewVWAP creates a VWAP over window sessions.
func NewVWAP(window int) *VWAP { return &VWAP{Window: window} }

func (f *VWAP) WindowLength() int { return f.Window }

func (f *VWAP) Validate() error {
	return checkWindow(f, f.Window, 1)
}

func (f *VWAP) Compute(w *Window) []float64 {
	tail := w.Tail(f.Window)
	closes, volumes := tail.Column(Close), tail.Column(Volume)
	out := make([]float64, len(w.Assets))
	for a := range w.Assets {
		num, den := 0.0, 0.0
		for i := range closes {
			c, v := closes[i][a], volumes[i][a]
			if math.IsNaN(c) || math.IsNaN(v) {
				continue
			}
			num += c * v
			den += v
		}
		out[a] = divide(num, den)
	}
	return out
}

func (f *VWAP) String() string { return fmt.Sprintf("vwap(%d)", f.Window) }

// AverageDollarVolume is the mean of close*volume over the window.
type AverageDollarVolume struct {
	Window int
}

// NewAverageDollarVolume creates an ADV over window sessions.
func NewAverageDollarVolume(window int) *AverageDollarVolume {
	return &AverageDollarVolume{Window: window}
}

func (f *AverageDollarVolume) WindowLength() int { return f.Window }

func (f *AverageDollarVolume) Validate() error {
	return checkWindow(f, f.Window, 1)
}

func (f *AverageDollarVolume) Compute(w *Window) []float64 {
	tail := w.Tail(f.Window)
	closes, volumes := tail.Column(Close), tail.Column(Volume)
	out := make([]float64, len(w.Assets))
	dv := make([]float64, len(closes))
	for a := range w.Assets {
		for i := range closes {
			dv[i] = closes[i][a] * volumes[i][a]
		}
		out[a] = nanMean(dv)
	}
	return out
}

func (f *AverageDollarVolume) String() string { return fmt.Sprintf("adv(%d)", f.Window) }

// AnnualizedVolatility is the population standard deviation of daily returns
// in the window, scaled by sqrt(TradingDaysPerYear).
type AnnualizedVolatility struct {
	Window int
}

// NewAnnualizedVolatility creates a volatility factor over window sessions.
func NewAnnualizedVolatility(window int) *AnnualizedVolatility {
	return &AnnualizedVolatility{Window: window}
}

func (f *AnnualizedVolatility) WindowLength() int { return f.Window }

func (f *AnnualizedVolatility) Validate() error {
	return checkWindow(f, f.Window, 2)
}

func (f *AnnualizedVolatility) Compute(w *Window) []float64 {
	tail := w.Tail(f.Window)
	out := make([]float64, len(w.Assets))
	for a := range w.Assets {
		out[a] = nanStd(simpleReturns(tail.series(Close, a))) * math.Sqrt(TradingDaysPerYear)
	}
	return out
}

func (f *AnnualizedVolatility) String() string { return fmt.Sprintf("volatility(%d)", f.Window) }
