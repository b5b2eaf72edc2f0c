package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "FactorPipe/pkg/logger"
)

// ErrMalformed marks a message that can never be handled; it is not retried.
var ErrMalformed = errors.New("malformed message")

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages from one reader per topic into a worker pool. Each
// partition is pinned to one worker, so its messages are handled and
// committed in offset order. Offsets are committed after a successful handle,
// after the message is parked on the DLQ, or when it is malformed.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	handlers map[string]MessageHandler
	readers  map[string]messageReader
	dlq      messageWriter
	queues   []chan kafka.Message

	cancel   context.CancelFunc
	fetchWG  sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer creates a consumer. Handlers must be registered before Start.
func NewConsumer(log *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "factorpipe",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = applogger.Nop()
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log.With(applogger.String("component", "kafka_consumer")),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		queues:   make([]chan kafka.Message, cfg.WorkerCount),
	}
	perWorker := max(cfg.BufferSize/cfg.WorkerCount, 1)
	for i := range c.queues {
		c.queues[i] = make(chan kafka.Message, perWorker)
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	initConsumerMetrics()
	return c, nil
}

// RegisterHandler binds a handler to its topic.
func (c *Consumer) RegisterHandler(h MessageHandler) error {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		return fmt.Errorf("handler already registered for topic %s", topic)
	}
	c.handlers[topic] = h
	return nil
}

// Start launches one fetcher per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		if _, ok := c.readers[topic]; !ok {
			c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
				Brokers:  c.cfg.Brokers,
				Topic:    topic,
				GroupID:  c.cfg.GroupID,
				MinBytes: c.cfg.MinBytes,
				MaxBytes: c.cfg.MaxBytes,
			})
		}
	}

	for _, q := range c.queues {
		c.workWG.Add(1)
		go c.worker(ctx, q)
	}
	for topic, r := range c.readers {
		c.fetchWG.Add(1)
		go c.fetch(ctx, topic, r)
	}
	go func() {
		c.fetchWG.Wait()
		for _, q := range c.queues {
			close(q)
		}
	}()

	c.log.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.Int("topics", len(c.readers)),
		applogger.String("group_id", c.cfg.GroupID),
	)
	return nil
}

// Stop cancels fetchers, drains workers and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.fetchWG.Wait()
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", applogger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return stopErr
}

func (c *Consumer) fetch(ctx context.Context, topic string, r messageReader) {
	defer c.fetchWG.Done()
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("fetch message", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-ctx.Done():
				return
			}
			continue
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}
		q := c.queueFor(msg.Topic, msg.Partition)
		select {
		case q <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(q)))
		case <-ctx.Done():
			return
		}
	}
}

// queueFor pins a topic partition to one worker queue.
func (c *Consumer) queueFor(topic string, partition int) chan kafka.Message {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic + "/" + strconv.Itoa(partition)))
	return c.queues[h.Sum32()%uint32(len(c.queues))]
}

type partitionKey struct {
	topic     string
	partition int
}

// worker owns every partition routed to queue. A partition whose message
// could be neither handled nor parked stops at that offset: later messages
// stay uncommitted and are redelivered with it after a restart.
func (c *Consumer) worker(ctx context.Context, queue <-chan kafka.Message) {
	defer c.workWG.Done()
	stalled := make(map[partitionKey]bool)
	for msg := range queue {
		if ctx.Err() != nil {
			// uncommitted; redelivered after restart
			continue
		}
		key := partitionKey{msg.Topic, msg.Partition}
		if stalled[key] {
			continue
		}
		if !c.process(ctx, msg) {
			stalled[key] = true
			c.log.Error("partition stalled until restart",
				applogger.String("topic", msg.Topic),
				applogger.Int("partition", msg.Partition),
				applogger.Any("offset", msg.Offset),
			)
		}
	}
}

// process handles one message with retries and commits it when it is done
// with. It reports false when the message was left uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		return true
	}
	start := time.Now()

	err := c.handleWithRetry(ctx, h, msg.Value)
	consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())

	commit := err == nil
	if err != nil {
		consumerFailures.WithLabelValues(msg.Topic).Inc()
		c.log.Error("handle message failed",
			applogger.String("topic", msg.Topic),
			applogger.Int("partition", msg.Partition),
			applogger.Any("offset", msg.Offset),
			applogger.Error(err),
		)
		switch {
		case c.dlq != nil:
			commit = c.park(ctx, msg, err)
		case errors.Is(err, ErrMalformed):
			// never handleable; dropped
			commit = true
		}
	}
	if !commit {
		return false
	}
	if r := c.readers[msg.Topic]; r != nil {
		if err := r.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			c.log.Warn("commit offset", applogger.String("topic", msg.Topic), applogger.Error(err))
		}
	}
	return true
}

func (c *Consumer) handleWithRetry(ctx context.Context, h MessageHandler, data []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BackoffMin
	bo.MaxInterval = c.cfg.BackoffMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := safeHandle(ctx, h, data)
		if errors.Is(err, ErrMalformed) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(c.cfg.RetryMax+1)))
	return err
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v", h.Topic(), r)
		}
	}()
	return h.Handle(ctx, data)
}

// park writes msg to the DLQ and reports whether the offset may be committed.
func (c *Consumer) park(ctx context.Context, msg kafka.Message, cause error) bool {
	err := c.dlq.WriteMessages(context.WithoutCancel(ctx), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write dlq", applogger.String("dlq_topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "factorpipe_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "factorpipe_kafka_consumer_handle_seconds", Help: "Handling time per message including retries"},
			[]string{"topic"},
		)
		consumerFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "factorpipe_kafka_consumer_failures_total", Help: "Messages that exhausted retries"},
			[]string{"topic"},
		)
	})
}
