package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FactorPipe/internal/domain/models"
	domrepo "FactorPipe/internal/domain/repository"
	pkgkafka "FactorPipe/pkg/kafka"
	"FactorPipe/pkg/util"
)

// BarsIngestHandler consumes daily bars from Kafka and writes them through a BarWriter.
type BarsIngestHandler struct {
	topic   string
	writer  domrepo.BarWriter
	metrics domrepo.Metrics
}

// NewBarsIngestHandler creates a handler for bar messages on topic.
func NewBarsIngestHandler(topic string, writer domrepo.BarWriter, metrics domrepo.Metrics) *BarsIngestHandler {
	return &BarsIngestHandler{topic: topic, writer: writer, metrics: metrics}
}

func (h *BarsIngestHandler) Topic() string { return h.topic }

// barMessage is the incoming schema. A message holds one bar object or an
// array of them.
type barMessage struct {
	Session string  `json:"session"`
	Symbol  string  `json:"symbol"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
	Volume  float64 `json:"volume"`
}

func (h *BarsIngestHandler) Handle(ctx context.Context, b []byte) error {
	msgs, err := decodeBars(b)
	if err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return fmt.Errorf("%w: %v", pkgkafka.ErrMalformed, err)
	}

	bars := make([]models.Bar, 0, len(msgs))
	for _, m := range msgs {
		session, err := util.ParseSession(m.Session)
		if err != nil {
			h.metrics.RecordError("ingest_session")
			return fmt.Errorf("%w: %v", pkgkafka.ErrMalformed, err)
		}
		bar := models.Bar{Session: session, Symbol: m.Symbol, Open: m.Open, High: m.High, Low: m.Low, Close: m.Close, Volume: m.Volume}
		if err := bar.Validate(); err != nil {
			h.metrics.RecordError("ingest_invalid")
			return fmt.Errorf("%w: %v", pkgkafka.ErrMalformed, err)
		}
		bars = append(bars, bar)
	}

	start := time.Now()
	err = h.writer.StoreBars(ctx, bars)
	h.metrics.RecordLatency("store_bars", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("ingest_store")
		return err
	}
	return nil
}

func decodeBars(b []byte) ([]barMessage, error) {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '[' {
		var out []barMessage
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var m barMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return []barMessage{m}, nil
}

var _ pkgkafka.MessageHandler = (*BarsIngestHandler)(nil)
