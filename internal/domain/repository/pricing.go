package repository

import (
	"context"
	"time"

	"FactorPipe/internal/domain/models"
)

// PricingStore provides read-only access to daily bars for pipeline evaluation.
// A session is any date for which at least one bar is stored.
type PricingStore interface {
	// Sessions returns the sessions in [from, to], ascending.
	Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error)
	// SessionsBefore returns up to n sessions strictly before `before`, ascending.
	SessionsBefore(ctx context.Context, before time.Time, n int) ([]time.Time, error)
	// GetBars returns the bars of every asset with a session in [from, to].
	GetBars(ctx context.Context, from, to time.Time) ([]models.Bar, error)
}

// BarWriter persists daily bars. Writing a bar for an existing (symbol, session)
// replaces it.
type BarWriter interface {
	StoreBars(ctx context.Context, bars []models.Bar) error
}

// PricingRepository is a store that serves reads and accepts writes.
type PricingRepository interface {
	PricingStore
	BarWriter
}
