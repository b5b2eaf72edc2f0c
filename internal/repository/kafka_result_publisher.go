package repository

import (
	"context"
	"math"

	"FactorPipe/internal/domain/models"
	pkgkafka "FactorPipe/pkg/kafka"
	"FactorPipe/pkg/util"
)

// batchPublisher is the subset of *pkgkafka.Producer the publisher uses.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaResultPublisher emits one message per result row, keyed by symbol.
type KafkaResultPublisher struct {
	producer batchPublisher
	topic    string
}

// NewKafkaResultPublisher publishes result rows to topic through p.
func NewKafkaResultPublisher(p *pkgkafka.Producer, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: p, topic: topic}
}

// ResultMessage is the wire form of a published row. Undefined values are omitted.
type ResultMessage struct {
	RunID   string             `json:"run_id"`
	Session string             `json:"session"`
	Symbol  string             `json:"symbol"`
	Values  map[string]float64 `json:"values"`
}

func (p *KafkaResultPublisher) PublishResult(ctx context.Context, res *models.PipelineResult) error {
	if res == nil || len(res.Rows) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(res.Rows))
	for i, row := range res.Rows {
		m := ResultMessage{
			RunID:   res.RunID,
			Session: util.FormatSession(row.Session),
			Symbol:  row.Symbol,
			Values:  make(map[string]float64, len(res.Columns)),
		}
		for j, col := range res.Columns {
			if v := row.Values[j]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				m.Values[col] = v
			}
		}
		msgs[i] = pkgkafka.Message{Key: []byte(row.Symbol), Value: m}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
