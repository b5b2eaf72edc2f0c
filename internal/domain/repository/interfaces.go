package repository

import (
	"context"

	"FactorPipe/internal/domain/models"
)

// ResultPublisher fans pipeline results out to downstream consumers.
type ResultPublisher interface {
	PublishResult(ctx context.Context, res *models.PipelineResult) error
	Close() error
}

type Metrics interface {
	RecordRun(status string)
	RecordRows(pipeline string, rows int)
	RecordUndefined(column string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
