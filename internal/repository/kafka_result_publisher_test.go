package repository

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorPipe/internal/domain/models"
	pkgkafka "FactorPipe/pkg/kafka"
)

type recordingProducer struct {
	topic string
	msgs  []pkgkafka.Message
}

func (r *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	r.topic = topic
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func TestKafkaResultPublisher_PublishResult(t *testing.T) {
	rec := &recordingProducer{}
	p := &KafkaResultPublisher{producer: rec, topic: "pipeline.results"}

	res := &models.PipelineResult{
		RunID:   "run-1",
		Columns: []string{"percent_difference"},
		Rows: []models.ResultRow{
			{Session: day("2015-05-05"), Symbol: "AAPL", Values: []float64{0.012}},
			{Session: day("2015-05-05"), Symbol: "NEW", Values: []float64{math.NaN()}},
		},
	}
	require.NoError(t, p.PublishResult(context.Background(), res))

	assert.Equal(t, "pipeline.results", rec.topic)
	require.Len(t, rec.msgs, 2)
	assert.Equal(t, []byte("AAPL"), rec.msgs[0].Key)

	first := rec.msgs[0].Value.(ResultMessage)
	assert.Equal(t, "2015-05-05", first.Session)
	assert.Equal(t, 0.012, first.Values["percent_difference"])

	second := rec.msgs[1].Value.(ResultMessage)
	assert.Empty(t, second.Values)
}

func TestKafkaResultPublisher_EmptyResult(t *testing.T) {
	rec := &recordingProducer{}
	p := &KafkaResultPublisher{producer: rec, topic: "t"}
	require.NoError(t, p.PublishResult(context.Background(), &models.PipelineResult{}))
	assert.Empty(t, rec.msgs)
}
