package usecase

import (
	"context"
	"fmt"
	"time"

	"FactorPipe/internal/domain/models"
	domrepo "FactorPipe/internal/domain/repository"
	"FactorPipe/internal/services/factors"
	"FactorPipe/internal/services/pipeline"
)

// PipelineUseCase turns request parameters into pipelines and runs them
// under a deadline.
type PipelineUseCase struct {
	runner  PipelineRunner
	store   domrepo.PricingStore
	timeout time.Duration
}

// NewPipelineUseCase creates the pipeline use case. Runs are bounded by timeout.
func NewPipelineUseCase(runner PipelineRunner, store domrepo.PricingStore, timeout time.Duration) *PipelineUseCase {
	return &PipelineUseCase{runner: runner, store: store, timeout: timeout}
}

type RunParams struct {
	Columns map[string]factors.Expr
	Start   time.Time
	End     time.Time
}

// Run builds a pipeline from expression trees and evaluates it.
func (uc *PipelineUseCase) Run(ctx context.Context, p RunParams) (*models.PipelineResult, error) {
	if len(p.Columns) == 0 {
		return nil, ErrEmptyPipeline
	}
	pl, err := pipeline.FromExprs(p.Columns)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return uc.run(ctx, pl, p.Start, p.End)
}

// PercentDifference runs the SMA(short) vs SMA(long) percent difference pipeline.
func (uc *PipelineUseCase) PercentDifference(ctx context.Context, short, long int, start, end time.Time) (*models.PipelineResult, error) {
	return uc.run(ctx, pipeline.MakePercentDifference(short, long), start, end)
}

func (uc *PipelineUseCase) run(ctx context.Context, pl *pipeline.Pipeline, start, end time.Time) (*models.PipelineResult, error) {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}
	return uc.runner.RunPipeline(ctx, pl, start, end)
}

// Sessions lists the trading sessions in [from, to].
func (uc *PipelineUseCase) Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}
	out, err := uc.store.Sessions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}
