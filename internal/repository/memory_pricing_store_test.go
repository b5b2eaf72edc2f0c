package repository

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorPipe/internal/domain/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedStore(t *testing.T) *MemoryPricingStore {
	t.Helper()
	s := NewMemoryPricingStore()
	require.NoError(t, s.StoreBars(context.Background(), []models.Bar{
		{Session: day("2015-05-01"), Symbol: "MSFT", Close: 48.6, Volume: 10},
		{Session: day("2015-05-01"), Symbol: "AAPL", Close: 128.9, Volume: 10},
		{Session: day("2015-05-04"), Symbol: "AAPL", Close: 128.7, Volume: 10},
		{Session: day("2015-05-05"), Symbol: "AAPL", Close: 125.8, Volume: 10},
		{Session: day("2015-05-05").Add(15 * time.Hour), Symbol: "MSFT", Close: 47.6, Volume: 10},
	}))
	return s
}

func TestMemoryPricingStore_Sessions(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	got, err := s.Sessions(ctx, day("2015-05-02"), day("2015-05-05"))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2015-05-04"), day("2015-05-05")}, got)

	got, err = s.Sessions(ctx, day("2015-06-01"), day("2015-06-30"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryPricingStore_SessionsBefore(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	got, err := s.SessionsBefore(ctx, day("2015-05-05"), 30)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2015-05-01"), day("2015-05-04")}, got)

	got, err = s.SessionsBefore(ctx, day("2015-05-05"), 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2015-05-04")}, got)

	got, err = s.SessionsBefore(ctx, day("2015-05-01"), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryPricingStore_GetBarsAndUpsert(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	bars, err := s.GetBars(ctx, day("2015-05-05"), day("2015-05-05"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, day("2015-05-05"), bars[1].Session, "session normalised to midnight")

	require.NoError(t, s.StoreBars(ctx, []models.Bar{{Session: day("2015-05-05"), Symbol: "AAPL", Close: 1, Volume: 1}}))
	assert.Equal(t, 5, s.Len())
	bars, err = s.GetBars(ctx, day("2015-05-05"), day("2015-05-05"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, bars[0].Close)
}

func TestMemoryPricingStore_RejectsInvalid(t *testing.T) {
	s := NewMemoryPricingStore()
	err := s.StoreBars(context.Background(), []models.Bar{{Session: day("2015-05-05")}})
	assert.ErrorIs(t, err, models.ErrInvalidBar)
	assert.Equal(t, 0, s.Len())
}

func TestLoadBarsCSV(t *testing.T) {
	in := `symbol,session,open,high,low,close,volume,extra
aapl,2015-05-04,129.5,130.57,128.26,128.7,50988300,x
MSFT,2015-05-04,48.29,48.88,48.27,48.24,,y
`
	bars, err := LoadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, day("2015-05-04"), bars[0].Session)
	assert.Equal(t, 128.7, bars[0].Close)
	assert.True(t, math.IsNaN(bars[1].Volume), "empty volume is NaN")
}

func TestLoadBarsCSV_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"missing column": "session,symbol,close\n2015-05-04,AAPL,1\n",
		"bad date":       "session,symbol,open,high,low,close,volume\n05/04/2015,AAPL,1,1,1,1,1\n",
		"bad number":     "session,symbol,open,high,low,close,volume\n2015-05-04,AAPL,1,1,1,abc,1\n",
		"empty symbol":   "session,symbol,open,high,low,close,volume\n2015-05-04,,1,1,1,1,1\n",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBarsCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}
