package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"FactorPipe/internal/domain/repository"
	"FactorPipe/internal/handler/api"
	internalrepo "FactorPipe/internal/repository"
	"FactorPipe/internal/service/cache"
	"FactorPipe/internal/service/ratelimit"
	"FactorPipe/internal/usecase"
	pkgch "FactorPipe/pkg/clickhouse"
	"FactorPipe/pkg/config"
	xhttp "FactorPipe/pkg/http"
	pkgkafka "FactorPipe/pkg/kafka"
	applogger "FactorPipe/pkg/logger"
	"FactorPipe/pkg/metrics"
	"FactorPipe/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects to ClickHouse and creates the bars table.
// It returns nil for the memory backend.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if cfg.Backend.Type != config.BackendClickHouse {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, pkgch.DailyBarsSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)
	return client, nil
}

// ProvidePricingRepository selects the bar store for backend.type.
func ProvidePricingRepository(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.PricingRepository, error) {
	if cfg.Backend.Type == config.BackendClickHouse {
		store := internalrepo.NewCHPricingStore(ch)
		store.SetLogger(l)
		return store, nil
	}

	store := internalrepo.NewMemoryPricingStore()
	bars, err := internalrepo.LoadBarsCSVFile(cfg.Backend.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if err := store.StoreBars(context.Background(), bars); err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	l.Info("memory pricing store loaded",
		applogger.String("path", cfg.Backend.CSVPath),
		applogger.Int("bars", store.Len()),
	)
	return store, nil
}

func ProvidePricingStore(repo repository.PricingRepository) repository.PricingStore { return repo }

func ProvideBarWriter(repo repository.PricingRepository) repository.BarWriter { return repo }

// ProvideKafkaProducer creates the results producer. It returns nil unless
// pipeline.publish is set.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Pipeline.Publish {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultPublisher publishes result rows to kafka.results_topic.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
}

func ProvidePipelineEngine(
	cfg *config.Config,
	store repository.PricingStore,
	m repository.Metrics,
	l *applogger.Logger,
	pub repository.ResultPublisher,
) *usecase.PipelineEngine {
	e := usecase.NewPipelineEngine(store, m, l, cfg.Pipeline.Workers)
	if pub != nil {
		e.SetPublisher(pub)
	}
	return e
}

// ProvideResultCache returns Redis (optionally fronted by an in-process L1)
// when enabled, else an in-process TTL cache.
func ProvideResultCache(cfg *config.Config) cache.BytesCache {
	if !cfg.Redis.Enabled {
		return cache.NewTTLCache()
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if cfg.Redis.L1TTL > 0 {
		return cache.NewLayeredCache(rc, cfg.Redis.L1TTL)
	}
	return rc
}

// ProvidePipelineRunner wraps the engine in a result cache when cache_ttl is set.
func ProvidePipelineRunner(
	cfg *config.Config,
	engine *usecase.PipelineEngine,
	c cache.BytesCache,
	m repository.Metrics,
	l *applogger.Logger,
) usecase.PipelineRunner {
	if cfg.Pipeline.CacheTTL <= 0 {
		return engine
	}
	return usecase.NewCachedEngine(engine, c, cfg.Pipeline.CacheTTL, m, l)
}

func ProvidePipelineUseCase(cfg *config.Config, runner usecase.PipelineRunner, store repository.PricingStore) *usecase.PipelineUseCase {
	return usecase.NewPipelineUseCase(runner, store, cfg.Pipeline.Timeout)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) xhttp.Allower {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond)
}

func ProvidePipelineHandler(l *applogger.Logger, uc *usecase.PipelineUseCase, limiter xhttp.Allower) *api.PipelineEchoHandler {
	return api.NewPipelineEchoHandler(l, uc, limiter)
}

// ProvideHTTPServer builds the Echo server with health checks for the
// configured backends.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.PipelineEchoHandler,
	ch *pkgch.Client,
	c cache.BytesCache,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	if p, ok := c.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, xhttp.WithHealthCheck("redis", p.Ping))
	}
	return xhttp.NewServer(l, []xhttp.Handler{h}, opts...)
}

func ProvideBarsIngestHandler(cfg *config.Config, w repository.BarWriter, m repository.Metrics) *usecase.BarsIngestHandler {
	return usecase.NewBarsIngestHandler(cfg.Kafka.BarsTopic, w, m)
}

// ProvideKafkaConsumer creates the bars consumer. It returns nil unless kafka
// is enabled with a bars topic.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, h *usecase.BarsIngestHandler) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.BarsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	if err := consumer.RegisterHandler(h); err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMaintenanceTasks evicts expired in-process cache entries and idle
// rate limiter buckets every server.sweep_interval.
func ProvideMaintenanceTasks(cfg *config.Config, limiter xhttp.Allower, c cache.BytesCache, l *applogger.Logger) server.Tasks {
	var tasks server.Tasks
	if s, ok := c.(interface{ Sweep() int }); ok {
		tasks = append(tasks, server.Task{
			Name:     "result_cache_sweep",
			Interval: cfg.Server.SweepInterval,
			Run: func(context.Context) {
				if n := s.Sweep(); n > 0 {
					l.Debug("expired cache entries dropped", applogger.Int("count", n))
				}
			},
		})
	}
	if p, ok := limiter.(interface{ Prune(time.Duration) int }); ok {
		idle := cfg.Server.RateLimit.IdleTTL
		tasks = append(tasks, server.Task{
			Name:     "rate_limit_prune",
			Interval: cfg.Server.SweepInterval,
			Run: func(context.Context) {
				if n := p.Prune(idle); n > 0 {
					l.Debug("idle rate limit buckets dropped", applogger.Int("count", n))
				}
			},
		})
	}
	return tasks
}

// ProvideResources lists what the App closes on shutdown. The engine pool
// drains first so in-flight runs can still publish.
func ProvideResources(
	engine *usecase.PipelineEngine,
	pub repository.ResultPublisher,
	c cache.BytesCache,
	ch *pkgch.Client,
) server.Resources {
	res := server.Resources{
		{Name: "pipeline_engine", Close: func() error { engine.Close(); return nil }},
	}
	if pub != nil {
		res = append(res, server.Resource{Name: "result_publisher", Close: pub.Close})
	}
	if closer, ok := c.(io.Closer); ok {
		res = append(res, server.Resource{Name: "result_cache", Close: closer.Close})
	}
	if ch != nil {
		res = append(res, server.Resource{Name: "clickhouse", Close: ch.Close})
	}
	return res
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	tasks server.Tasks,
	res server.Resources,
) *server.App {
	return server.New(l, srv, consumer, tasks, res, cfg.Server.ShutdownTimeout)
}
