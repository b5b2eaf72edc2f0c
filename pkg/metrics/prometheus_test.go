package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordRun("ok")
	r.RecordRun("ok")
	r.RecordRows("abc", 3)
	r.RecordUndefined("percent_difference", 2)
	r.RecordUndefined("percent_difference", 0)
	r.RecordError("store")
	r.RecordLatency("run_pipeline", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rowsTotal.WithLabelValues("abc")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.undefinedTotal.WithLabelValues("percent_difference")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
