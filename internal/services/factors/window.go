package factors

import (
	"math"

	"FactorPipe/internal/domain/models"
)

// Window is a dense block of pricing data: rows are sessions (ascending),
// columns are assets. Missing observations are NaN.
type Window struct {
	Assets  []string
	rows    int
	data    map[Column][][]float64
	present [][]bool
}

// NewWindow allocates a window of the given number of rows, filled with NaN.
func NewWindow(assets []string, rows int) *Window {
	w := &Window{Assets: assets, rows: rows, data: make(map[Column][][]float64, len(AllColumns))}
	w.present = make([][]bool, rows)
	for i := range w.present {
		w.present[i] = make([]bool, len(assets))
	}
	for _, c := range AllColumns {
		m := make([][]float64, rows)
		for i := range m {
			row := make([]float64, len(assets))
			for j := range row {
				row[j] = math.NaN()
			}
			m[i] = row
		}
		w.data[c] = m
	}
	return w
}

// Len is the number of session rows.
func (w *Window) Len() int { return w.rows }

// Set stores a single observation and marks the asset as present on row.
func (w *Window) Set(c Column, row, asset int, v float64) {
	w.data[c][row][asset] = v
	w.present[row][asset] = true
}

// SetBar stores every column of a bar.
func (w *Window) SetBar(row, asset int, b models.Bar) {
	for _, c := range AllColumns {
		w.data[c][row][asset] = c.Of(b)
	}
	w.present[row][asset] = true
}

// Column returns the [row][asset] matrix for c. Callers must not modify it.
func (w *Window) Column(c Column) [][]float64 {
	return w.data[c]
}

// Slice returns a view of rows [lo, hi). The view shares storage with w.
func (w *Window) Slice(lo, hi int) *Window {
	if lo < 0 {
		lo = 0
	}
	if hi > w.rows {
		hi = w.rows
	}
	if lo > hi {
		lo = hi
	}
	v := &Window{Assets: w.Assets, rows: hi - lo, data: make(map[Column][][]float64, len(w.data)), present: w.present[lo:hi]}
	for c, m := range w.data {
		v.data[c] = m[lo:hi]
	}
	return v
}

// Tail returns a view of the last n rows.
func (w *Window) Tail(n int) *Window {
	return w.Slice(w.rows-n, w.rows)
}

// series copies one asset's values for column c, oldest first.
func (w *Window) series(c Column, asset int) []float64 {
	m := w.data[c]
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[asset]
	}
	return out
}

// HasData reports whether asset has at least one stored observation in the window.
func (w *Window) HasData(asset int) bool {
	for _, row := range w.present {
		if row[asset] {
			return true
		}
	}
	return false
}
