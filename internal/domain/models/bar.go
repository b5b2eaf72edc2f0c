package models

import (
	"errors"
	"fmt"
	"time"
)

// Bar is one asset's daily OHLCV record for a trading session.
type Bar struct {
	Session time.Time `json:"session"` // midnight UTC
	Symbol  string    `json:"symbol"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
}

var ErrInvalidBar = errors.New("invalid bar")

// Validate rejects bars that cannot be placed on a session grid.
func (b Bar) Validate() error {
	switch {
	case b.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidBar)
	case b.Session.IsZero():
		return fmt.Errorf("%w: %s has no session", ErrInvalidBar, b.Symbol)
	case b.Volume < 0:
		return fmt.Errorf("%w: %s negative volume", ErrInvalidBar, b.Symbol)
	}
	return nil
}
