package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorPipe/internal/domain/models"
	"FactorPipe/internal/repository"
	"FactorPipe/internal/services/factors"
	"FactorPipe/internal/services/pipeline"
	"FactorPipe/pkg/metrics"
)

var refSession = time.Date(2015, 5, 5, 0, 0, 0, 0, time.UTC)

// businessDays returns n weekdays ending on last, ascending.
func businessDays(last time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	d := last
	for i := n - 1; i >= 0; {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out[i] = d
			i--
		}
		d = d.AddDate(0, 0, -1)
	}
	return out
}

// seed stores closes for each symbol on the given days; close(i) is called per day index.
func seed(t *testing.T, days []time.Time, closes map[string]func(i int) float64) *repository.MemoryPricingStore {
	t.Helper()
	store := repository.NewMemoryPricingStore()
	var bars []models.Bar
	for i, d := range days {
		for sym, f := range closes {
			c := f(i)
			bars = append(bars, models.Bar{Session: d, Symbol: sym, Open: c, High: c, Low: c, Close: c, Volume: 1000})
		}
	}
	require.NoError(t, store.StoreBars(context.Background(), bars))
	return store
}

func newEngine(store *repository.MemoryPricingStore) *PipelineEngine {
	return NewPipelineEngine(store, metrics.Nop{}, nil, 4)
}

func linear(i int) float64 { return 100 + float64(i) }
func flat(int) float64     { return 50 }

func TestRunPipeline_PercentDifference(t *testing.T) {
	days := businessDays(refSession, 40)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear, "MSFT": flat})
	e := newEngine(store)
	defer e.Close()

	res, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(10, 30), refSession, refSession)
	require.NoError(t, err)

	assert.Equal(t, []string{pipeline.PercentDifferenceColumn}, res.Columns)
	assert.Equal(t, []time.Time{refSession}, res.Sessions)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "AAPL", res.Rows[0].Symbol)
	assert.Equal(t, "MSFT", res.Rows[1].Symbol)
	assert.NotEmpty(t, res.RunID)

	// Prior sessions are indices 0..38: SMA30 averages 109..138, SMA10 averages 129..138.
	assert.InDelta(t, (133.5-123.5)/123.5, res.Rows[0].Values[0], 1e-12)
	assert.InDelta(t, 0.0, res.Rows[1].Values[0], 1e-12)
}

func TestRunPipeline_NoLookAhead(t *testing.T) {
	days := businessDays(refSession, 40)
	base := seed(t, days, map[string]func(int) float64{"AAPL": linear})
	spiked := seed(t, days, map[string]func(int) float64{"AAPL": func(i int) float64 {
		if i == len(days)-1 {
			return 1e6
		}
		return linear(i)
	}})

	p := pipeline.MakePercentDifference(10, 30)
	a, err := newEngine(base).RunPipeline(context.Background(), p, refSession, refSession)
	require.NoError(t, err)
	b, err := newEngine(spiked).RunPipeline(context.Background(), p, refSession, refSession)
	require.NoError(t, err)

	assert.Equal(t, a.Rows[0].Values, b.Rows[0].Values)
}

func TestRunPipeline_MultipleSessionsOrdered(t *testing.T) {
	days := businessDays(refSession, 40)
	store := seed(t, days, map[string]func(int) float64{"MSFT": flat, "AAPL": linear, "IBM": flat})
	e := newEngine(store)
	defer e.Close()

	start := days[35]
	res, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(3, 5), start, refSession)
	require.NoError(t, err)

	assert.Equal(t, days[35:], res.Sessions)
	require.Len(t, res.Rows, 15)
	for i := 1; i < len(res.Rows); i++ {
		prev, cur := res.Rows[i-1], res.Rows[i]
		if prev.Session.Equal(cur.Session) {
			assert.Less(t, prev.Symbol, cur.Symbol)
		} else {
			assert.True(t, prev.Session.Before(cur.Session))
		}
	}
	assert.Len(t, res.RowsFor(refSession), 3)
}

func TestRunPipeline_SwappedWindowsKeepShape(t *testing.T) {
	days := businessDays(refSession, 40)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear, "MSFT": func(i int) float64 { return 80 - float64(i)/2 }})
	e := newEngine(store)
	defer e.Close()

	a, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(10, 30), refSession, refSession)
	require.NoError(t, err)
	b, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(30, 10), refSession, refSession)
	require.NoError(t, err)

	assert.Equal(t, a.Columns, b.Columns)
	assert.Equal(t, len(a.Rows), len(b.Rows))
	assert.NotEqual(t, a.Rows[0].Values[0], b.Rows[0].Values[0])
}

func TestRunPipeline_ShortHistory(t *testing.T) {
	days := businessDays(refSession, 3)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear})
	e := newEngine(store)
	defer e.Close()

	p := pipeline.New(map[string]factors.Factor{
		"sma":     factors.NewSimpleMovingAverage(factors.Close, 30),
		"returns": factors.NewReturns(30),
	})
	res, err := e.RunPipeline(context.Background(), p, refSession, refSession)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	assert.True(t, math.IsNaN(res.Value(0, "returns")), "history shorter than the window")
	assert.InDelta(t, 100.5, res.Value(0, "sma"), 1e-12, "average of the two prior closes")
}

func TestRunPipeline_FirstSessionHasNoRows(t *testing.T) {
	days := businessDays(refSession, 3)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear})
	e := newEngine(store)
	defer e.Close()

	res, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(1, 2), days[0], days[0])
	require.NoError(t, err)
	assert.Empty(t, res.Rows, "no bars before the first stored session")
}

func TestRunPipeline_DivisionByZeroIsNaN(t *testing.T) {
	days := businessDays(refSession, 5)
	store := seed(t, days, map[string]func(int) float64{"ZERO": func(int) float64 { return 0 }})
	e := newEngine(store)
	defer e.Close()

	res, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(2, 4), refSession, refSession)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.True(t, math.IsNaN(res.Rows[0].Values[0]))
}

func TestRunPipeline_Errors(t *testing.T) {
	days := businessDays(refSession, 5)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear})
	e := newEngine(store)
	defer e.Close()
	ctx := context.Background()

	_, err := e.RunPipeline(ctx, pipeline.New(nil), refSession, refSession)
	assert.ErrorIs(t, err, ErrEmptyPipeline)

	_, err = e.RunPipeline(ctx, pipeline.MakePercentDifference(10, 30), refSession, days[0])
	assert.ErrorIs(t, err, ErrInvalidRange)

	sunday := time.Date(2015, 5, 3, 0, 0, 0, 0, time.UTC)
	_, err = e.RunPipeline(ctx, pipeline.MakePercentDifference(10, 30), sunday, sunday)
	assert.ErrorIs(t, err, ErrNoSessions)

	_, err = e.RunPipeline(ctx, pipeline.MakePercentDifference(0, 30), refSession, refSession)
	assert.ErrorIs(t, err, factors.ErrInvalidWindow)

	_, err = e.RunPipeline(ctx, pipeline.MakePercentDifference(10, 1<<40), refSession, refSession)
	assert.ErrorIs(t, err, factors.ErrInvalidWindow)
}

func TestRunPipeline_LongestWindowOverShortHistory(t *testing.T) {
	days := businessDays(refSession, 40)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear})
	e := newEngine(store)
	defer e.Close()

	p := pipeline.New(map[string]factors.Factor{
		"sma":     factors.NewSimpleMovingAverage(factors.Close, factors.MaxWindowLength),
		"returns": factors.NewReturns(factors.MaxWindowLength),
	})
	res, err := e.RunPipeline(context.Background(), p, refSession, refSession)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	// 39 prior closes 100..138
	assert.InDelta(t, 119.0, res.Value(0, "sma"), 1e-12)
	assert.True(t, math.IsNaN(res.Value(0, "returns")))
}

type failingStore struct{ *repository.MemoryPricingStore }

func (*failingStore) Sessions(context.Context, time.Time, time.Time) ([]time.Time, error) {
	return nil, errors.New("connection refused")
}

func TestRunPipeline_StoreError(t *testing.T) {
	e := NewPipelineEngine(&failingStore{repository.NewMemoryPricingStore()}, metrics.Nop{}, nil, 1)
	defer e.Close()
	_, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(10, 30), refSession, refSession)
	assert.ErrorContains(t, err, "connection refused")
}

type capturePublisher struct{ got []*models.PipelineResult }

func (c *capturePublisher) PublishResult(_ context.Context, res *models.PipelineResult) error {
	c.got = append(c.got, res)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestRunPipeline_Publishes(t *testing.T) {
	days := businessDays(refSession, 5)
	store := seed(t, days, map[string]func(int) float64{"AAPL": linear})
	e := newEngine(store)
	defer e.Close()
	pub := &capturePublisher{}
	e.SetPublisher(pub)

	res, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(2, 4), refSession, refSession)
	require.NoError(t, err)
	require.Len(t, pub.got, 1)
	assert.Equal(t, res.RunID, pub.got[0].RunID)
}
