package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorPipe/internal/domain/models"
	"FactorPipe/internal/usecase"
)

var refSession = time.Date(2015, 5, 5, 0, 0, 0, 0, time.UTC)

// writeBars writes n business days ending at 2015-05-05. AAPL closes at
// 100, 101, ... from the oldest day; MSFT is flat at 50.
func writeBars(t *testing.T, n int) string {
	t.Helper()
	var days []time.Time
	for d := refSession; len(days) < n; d = d.AddDate(0, 0, -1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append([]time.Time{d}, days...)
		}
	}
	var b strings.Builder
	b.WriteString("session,symbol,open,high,low,close,volume\n")
	for i, d := range days {
		fmt.Fprintf(&b, "%s,AAPL,0,0,0,%d,1000\n", d.Format("2006-01-02"), 100+i)
		fmt.Fprintf(&b, "%s,MSFT,0,0,0,50,1000\n", d.Format("2006-01-02"))
	}
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCmd_PercentDifferenceTable(t *testing.T) {
	path := writeBars(t, 40)
	out, err := execute("run", "--csv", path)
	require.NoError(t, err)

	assert.Contains(t, out, "percent_difference")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "MSFT")
	assert.Contains(t, out, "2015-05-05")
	// sma10 = 133.5, sma30 = 123.5
	assert.Contains(t, out, "0.080972")
	assert.Contains(t, out, "0.000000")
}

func TestRunCmd_ExprJSON(t *testing.T) {
	path := writeBars(t, 40)
	out, err := execute("run", "--csv", path, "--format", "json",
		"--expr", "price=latest(close)",
		"--expr", "ratio = div(latest(close), 0)",
	)
	require.NoError(t, err)

	var res models.PipelineResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"price", "ratio"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "AAPL", res.Rows[0].Symbol)
	assert.Equal(t, 138.0, res.Value(0, "price"))
	assert.True(t, math.IsNaN(res.Value(0, "ratio")), "division by zero is NaN")
}

func TestRunCmd_ExpressionFile(t *testing.T) {
	path := writeBars(t, 40)
	file := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
momentum:
  factor: returns
  window: 5
spread:
  op: sub
  left: {factor: sma, column: close, window: 10}
  right: {factor: sma, column: close, window: 30}
`), 0o600))

	out, err := execute("run", "--csv", path, "--file", file, "--expr", "adv=adv(20)")
	require.NoError(t, err)
	assert.Contains(t, out, "momentum")
	assert.Contains(t, out, "spread")
	assert.Contains(t, out, "adv")
	assert.Contains(t, out, "10.000000")
}

func TestRunCmd_Errors(t *testing.T) {
	path := writeBars(t, 40)

	_, err := execute("run")
	assert.ErrorIs(t, err, errNoBackend)

	_, err = execute("run", "--csv", path, "--start", "2015-05-06", "--end", "2015-05-05")
	assert.ErrorIs(t, err, usecase.ErrInvalidRange)

	_, err = execute("run", "--csv", path, "--expr", "broken")
	assert.Error(t, err)

	_, err = execute("run", "--csv", path, "--expr", "x=sma(close,0)")
	assert.Error(t, err)

	_, err = execute("run", "--csv", path, "--format", "xml")
	assert.Error(t, err)

	_, err = execute("run", "--csv", path, "--short", "0")
	assert.Error(t, err)
}

func TestSessionsCmd(t *testing.T) {
	path := writeBars(t, 5)
	out, err := execute("sessions", "--csv", path, "--from", "2015-05-01", "--to", "2015-05-05")
	require.NoError(t, err)
	assert.Equal(t, "2015-05-01\n2015-05-04\n2015-05-05\n", out)
}

func TestIngestCmd_RequiresClickHouseConfig(t *testing.T) {
	_, err := execute("ingest", writeBars(t, 2))
	assert.Error(t, err)
}
