package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the pipeline Metrics interface on Prometheus.
type Recorder struct {
	runsTotal      *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	undefinedTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg, or on the default
// registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorpipe_pipeline_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorpipe_pipeline_rows_total",
				Help: "Result rows produced",
			},
			[]string{"pipeline"},
		),
		undefinedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorpipe_pipeline_undefined_values_total",
				Help: "NaN values produced per output column",
			},
			[]string{"column"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorpipe_errors_total",
				Help: "Errors encountered by kind",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorpipe_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordRows(pipeline string, rows int) {
	r.rowsTotal.WithLabelValues(pipeline).Add(float64(rows))
}

func (r *Recorder) RecordUndefined(column string, n int) {
	if n > 0 {
		r.undefinedTotal.WithLabelValues(column).Add(float64(n))
	}
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordRun(string)              {}
func (Nop) RecordRows(string, int)        {}
func (Nop) RecordUndefined(string, int)   {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
