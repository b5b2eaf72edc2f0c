package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"

	"FactorPipe/internal/domain/models"
	domrepo "FactorPipe/internal/domain/repository"
	"FactorPipe/internal/services/factors"
	"FactorPipe/internal/services/pipeline"
	applogger "FactorPipe/pkg/logger"
	"FactorPipe/pkg/util"
)

var (
	ErrEmptyPipeline = errors.New("pipeline has no columns")
	ErrInvalidRange  = errors.New("start date is after end date")
	ErrNoSessions    = errors.New("no trading sessions in range")
)

// PipelineRunner evaluates a pipeline over an inclusive session range.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, p *pipeline.Pipeline, start, end time.Time) (*models.PipelineResult, error)
}

// PipelineEngine loads bars from a PricingStore and evaluates each session
// on a bounded worker pool. For session S every factor sees the
// MaxWindowLength sessions strictly before S.
type PipelineEngine struct {
	store     domrepo.PricingStore
	metrics   domrepo.Metrics
	log       *applogger.Logger
	pool      pond.ResultPool[[]models.ResultRow]
	publisher domrepo.ResultPublisher
}

// NewPipelineEngine creates an engine evaluating sessions on a pool of workers.
func NewPipelineEngine(store domrepo.PricingStore, metrics domrepo.Metrics, log *applogger.Logger, workers int) *PipelineEngine {
	if log == nil {
		log = applogger.Nop()
	}
	return &PipelineEngine{
		store:   store,
		metrics: metrics,
		log:     log.With(applogger.String("component", "pipeline_engine")),
		pool:    pond.NewResultPool[[]models.ResultRow](max(workers, 1)),
	}
}

// SetPublisher sends every fresh result to pub after a successful run.
func (e *PipelineEngine) SetPublisher(pub domrepo.ResultPublisher) { e.publisher = pub }

// Close waits for in-flight evaluations and releases the pool.
func (e *PipelineEngine) Close() {
	e.pool.StopAndWait()
}

func (e *PipelineEngine) RunPipeline(ctx context.Context, p *pipeline.Pipeline, start, end time.Time) (*models.PipelineResult, error) {
	began := time.Now()
	res, err := e.run(ctx, p, util.SessionOf(start), util.SessionOf(end))
	e.metrics.RecordLatency("run_pipeline", time.Since(began).Seconds())
	if err != nil {
		e.metrics.RecordRun("error")
		e.log.Warn("pipeline run failed",
			applogger.Session("start", start),
			applogger.Session("end", end),
			applogger.Error(err),
		)
		return nil, err
	}
	e.metrics.RecordRun("ok")
	e.log.Info("pipeline run ok",
		applogger.String("run_id", res.RunID),
		applogger.Strings("columns", res.Columns),
		applogger.Int("sessions", len(res.Sessions)),
		applogger.Int("rows", len(res.Rows)),
		applogger.Duration("duration_ms", time.Since(began)),
	)

	if e.publisher != nil {
		if err := e.publisher.PublishResult(ctx, res); err != nil {
			e.metrics.RecordError("publish_result")
			e.log.Error("publish pipeline result", applogger.String("run_id", res.RunID), applogger.Error(err))
		}
	}
	return res, nil
}

func (e *PipelineEngine) run(ctx context.Context, p *pipeline.Pipeline, start, end time.Time) (*models.PipelineResult, error) {
	if p == nil || p.Len() == 0 {
		return nil, ErrEmptyPipeline
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate pipeline: %w", err)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, util.FormatSession(start), util.FormatSession(end))
	}

	sessions, err := e.store.Sessions(ctx, start, end)
	if err != nil {
		e.metrics.RecordError("store_sessions")
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%w: %s..%s", ErrNoSessions, util.FormatSession(start), util.FormatSession(end))
	}

	lookback := max(p.MaxWindowLength(), 1)
	prior, err := e.store.SessionsBefore(ctx, sessions[0], lookback)
	if err != nil {
		e.metrics.RecordError("store_sessions")
		return nil, fmt.Errorf("load lookback sessions: %w", err)
	}
	grid := make([]time.Time, 0, len(prior)+len(sessions))
	grid = append(append(grid, prior...), sessions...)

	bars, err := e.store.GetBars(ctx, grid[0], grid[len(grid)-1])
	if err != nil {
		e.metrics.RecordError("store_bars")
		return nil, fmt.Errorf("load bars: %w", err)
	}

	// Rows cover stored history only. Windows cut short at the start of the
	// grid behave as if the missing sessions were NaN.
	data := buildWindow(bars, grid)

	columns := p.Columns()
	facs := make([]factors.Factor, len(columns))
	for i, name := range columns {
		facs[i], _ = p.Factor(name)
	}

	group := e.pool.NewGroupContext(ctx)
	for k, session := range sessions {
		row := len(prior) + k
		group.SubmitErr(func() ([]models.ResultRow, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return evaluateSession(data.Slice(row-lookback, row), session, facs), nil
		})
	}
	perSession, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("evaluate sessions: %w", err)
	}

	res := &models.PipelineResult{
		RunID:    uuid.NewString(),
		Start:    start,
		End:      end,
		Columns:  columns,
		Sessions: sessions,
	}
	for _, rows := range perSession {
		res.Rows = append(res.Rows, rows...)
	}
	e.record(p.Fingerprint(), res)
	return res, nil
}

// buildWindow lays bars out on grid, one row per session. Assets are
// every symbol seen in bars, sorted.
func buildWindow(bars []models.Bar, grid []time.Time) *factors.Window {
	rowOf := make(map[int64]int, len(grid))
	for i, s := range grid {
		rowOf[s.Unix()] = i
	}
	assetOf := make(map[string]int)
	var assets []string
	for _, b := range bars {
		if _, ok := assetOf[b.Symbol]; !ok {
			assetOf[b.Symbol] = 0
			assets = append(assets, b.Symbol)
		}
	}
	sort.Strings(assets)
	for i, a := range assets {
		assetOf[a] = i
	}

	w := factors.NewWindow(assets, len(grid))
	for _, b := range bars {
		row, ok := rowOf[util.SessionOf(b.Session).Unix()]
		if !ok {
			continue
		}
		w.SetBar(row, assetOf[b.Symbol], b)
	}
	return w
}

// evaluateSession computes every column over w and keeps assets with at
// least one bar in the window.
func evaluateSession(w *factors.Window, session time.Time, facs []factors.Factor) []models.ResultRow {
	values := make([][]float64, len(facs))
	for i, f := range facs {
		values[i] = f.Compute(w)
	}

	var rows []models.ResultRow
	for a, symbol := range w.Assets {
		if !w.HasData(a) {
			continue
		}
		row := models.ResultRow{Session: session, Symbol: symbol, Values: make([]float64, len(facs))}
		for i := range facs {
			row.Values[i] = values[i][a]
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *PipelineEngine) record(fingerprint string, res *models.PipelineResult) {
	if len(fingerprint) > 8 {
		fingerprint = fingerprint[:8]
	}
	e.metrics.RecordRows(fingerprint, len(res.Rows))
	for i, col := range res.Columns {
		n := 0
		for _, row := range res.Rows {
			if math.IsNaN(row.Values[i]) {
				n++
			}
		}
		e.metrics.RecordUndefined(col, n)
	}
}
