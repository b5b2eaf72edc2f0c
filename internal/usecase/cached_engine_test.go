package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorPipe/internal/domain/models"
	"FactorPipe/internal/service/cache"
	"FactorPipe/internal/services/pipeline"
	"FactorPipe/pkg/metrics"
)

type countingRunner struct {
	calls int
	err   error
}

func (r *countingRunner) RunPipeline(_ context.Context, p *pipeline.Pipeline, start, end time.Time) (*models.PipelineResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &models.PipelineResult{
		RunID:    "run",
		Start:    start,
		End:      end,
		Columns:  p.Columns(),
		Sessions: []time.Time{start},
		Rows: []models.ResultRow{
			{Session: start, Symbol: "AAPL", Values: []float64{0.5}},
			{Session: start, Symbol: "NEW", Values: []float64{math.NaN()}},
		},
	}, nil
}

func TestCachedEngine_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(cache.RedisConfig{Addr: mr.Addr(), Prefix: "factorpipe"})
	defer rc.Close()

	next := &countingRunner{}
	e := NewCachedEngine(next, rc, time.Minute, metrics.Nop{}, nil)
	p := pipeline.MakePercentDifference(10, 30)
	ctx := context.Background()

	first, err := e.RunPipeline(ctx, p, refSession, refSession)
	require.NoError(t, err)
	second, err := e.RunPipeline(ctx, p, refSession, refSession)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists("factorpipe:"+CacheKey(p, refSession, refSession)))
	assert.Equal(t, first.Rows[0].Values, second.Rows[0].Values)
	assert.True(t, math.IsNaN(second.Rows[1].Values[0]), "NaN survives the cache as null")

	_, err = e.RunPipeline(ctx, pipeline.MakePercentDifference(5, 30), refSession, refSession)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "different fingerprint misses")
}

func TestCachedEngine_CacheDownFallsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCache(cache.RedisConfig{Addr: mr.Addr()})
	defer rc.Close()
	mr.Close()

	next := &countingRunner{}
	e := NewCachedEngine(next, rc, time.Minute, metrics.Nop{}, nil)

	_, err := e.RunPipeline(context.Background(), pipeline.MakePercentDifference(10, 30), refSession, refSession)
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestCachedEngine_ErrorsNotCached(t *testing.T) {
	next := &countingRunner{err: ErrNoSessions}
	e := NewCachedEngine(next, cache.NewTTLCache(), time.Minute, metrics.Nop{}, nil)
	p := pipeline.MakePercentDifference(10, 30)

	for i := 0; i < 2; i++ {
		_, err := e.RunPipeline(context.Background(), p, refSession, refSession)
		assert.True(t, errors.Is(err, ErrNoSessions))
	}
	assert.Equal(t, 2, next.calls)
}

func TestCacheKey(t *testing.T) {
	p := pipeline.MakePercentDifference(10, 30)
	assert.Equal(t, "pipeline:"+p.Fingerprint()+":2015-05-05:2015-05-05", CacheKey(p, refSession, refSession))
}
