package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorPipe/internal/domain/models"
	pkgch "FactorPipe/pkg/clickhouse"
)

func TestInsertBarsQuery(t *testing.T) {
	q, args := insertBarsQuery("factorpipe.daily_bars", []models.Bar{
		{Session: day("2015-05-04"), Symbol: "AAPL", Close: 1},
		{Session: day("2015-05-05").Add(3 * time.Hour), Symbol: "MSFT", Close: 2},
	})
	assert.True(t, strings.HasPrefix(q, "INSERT INTO factorpipe.daily_bars (session, symbol, open, high, low, close, volume) VALUES "))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 14)
	assert.Equal(t, day("2015-05-05"), args[7])
}

// Runs against a live server when CLICKHOUSE_TEST_HOST is set.
func TestCHPricingStore_Integration(t *testing.T) {
	host := os.Getenv("CLICKHOUSE_TEST_HOST")
	if host == "" {
		t.Skip("CLICKHOUSE_TEST_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := fmt.Sprintf("factorpipe_test_%d", time.Now().UnixNano())
	ch, err := pkgch.NewClient(ctx, pkgch.WithHost(host), pkgch.WithConnectTimeout(10*time.Second))
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.InitSchema(ctx, pkgch.DailyBarsSchema(db)))
	defer ch.DB().ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+db)

	s := &CHPricingStore{db: ch.DB(), table: db + ".daily_bars"}
	require.NoError(t, s.StoreBars(ctx, []models.Bar{
		{Session: day("2015-05-01"), Symbol: "AAPL", Close: 128.9, Volume: 1},
		{Session: day("2015-05-04"), Symbol: "AAPL", Close: 128.7, Volume: 1},
		{Session: day("2015-05-05"), Symbol: "AAPL", Close: 125.8, Volume: 1},
	}))

	sessions, err := s.SessionsBefore(ctx, day("2015-05-05"), 10)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2015-05-01"), day("2015-05-04")}, sessions)

	bars, err := s.GetBars(ctx, day("2015-05-04"), day("2015-05-05"))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}
