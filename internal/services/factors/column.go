package factors

import (
	"fmt"

	"FactorPipe/internal/domain/models"
)

// Column is a pricing field a factor can read.
type Column string

const (
	Open   Column = "open"
	High   Column = "high"
	Low    Column = "low"
	Close  Column = "close"
	Volume Column = "volume"
)

// USEquityPricing groups the daily pricing columns under one dataset name.
var USEquityPricing = struct {
	Open, High, Low, Close, Volume Column
}{Open, High, Low, Close, Volume}

// AllColumns lists every loadable column.
var AllColumns = []Column{Open, High, Low, Close, Volume}

// Valid reports whether c is a known column.
func (c Column) Valid() bool {
	switch c {
	case Open, High, Low, Close, Volume:
		return true
	default:
		return false
	}
}

// Of extracts the column from a bar.
func (c Column) Of(b models.Bar) float64 {
	switch c {
	case Open:
		return b.Open
	case High:
		return b.High
	case Low:
		return b.Low
	case Close:
		return b.Close
	case Volume:
		return b.Volume
	}
	return 0
}

// ParseColumn converts a raw name to a Column.
func ParseColumn(s string) (Column, error) {
	c := Column(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, s)
	}
	return c, nil
}
