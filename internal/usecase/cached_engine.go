package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FactorPipe/internal/domain/models"
	domrepo "FactorPipe/internal/domain/repository"
	"FactorPipe/internal/service/cache"
	"FactorPipe/internal/services/pipeline"
	applogger "FactorPipe/pkg/logger"
	"FactorPipe/pkg/util"
)

// CachedEngine serves repeated runs of the same pipeline and range from a
// BytesCache. Cache failures fall through to the wrapped runner.
type CachedEngine struct {
	next    PipelineRunner
	cache   cache.BytesCache
	ttl     time.Duration
	metrics domrepo.Metrics
	log     *applogger.Logger
}

// NewCachedEngine wraps next with a result cache whose entries live for ttl.
func NewCachedEngine(next PipelineRunner, c cache.BytesCache, ttl time.Duration, metrics domrepo.Metrics, log *applogger.Logger) *CachedEngine {
	if log == nil {
		log = applogger.Nop()
	}
	return &CachedEngine{next: next, cache: c, ttl: ttl, metrics: metrics, log: log}
}

// CacheKey identifies a run by pipeline fingerprint and session range.
func CacheKey(p *pipeline.Pipeline, start, end time.Time) string {
	return fmt.Sprintf("pipeline:%s:%s:%s", p.Fingerprint(), util.FormatSession(start), util.FormatSession(end))
}

func (c *CachedEngine) RunPipeline(ctx context.Context, p *pipeline.Pipeline, start, end time.Time) (*models.PipelineResult, error) {
	if p == nil || p.Len() == 0 {
		return c.next.RunPipeline(ctx, p, start, end)
	}
	key := CacheKey(p, start, end)

	if b, ok, err := c.cache.GetBytes(ctx, key); err != nil {
		c.metrics.RecordError("cache_get")
		c.log.Warn("pipeline cache get", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		var res models.PipelineResult
		if err := json.Unmarshal(b, &res); err == nil {
			c.metrics.RecordRun("cache_hit")
			return &res, nil
		}
		c.metrics.RecordError("cache_decode")
	}

	res, err := c.next.RunPipeline(ctx, p, start, end)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(res)
	if err != nil {
		c.metrics.RecordError("cache_encode")
		return res, nil
	}
	if err := c.cache.SetBytes(ctx, key, b, c.ttl); err != nil {
		c.metrics.RecordError("cache_set")
		c.log.Warn("pipeline cache set", applogger.String("key", key), applogger.Error(err))
	}
	return res, nil
}
