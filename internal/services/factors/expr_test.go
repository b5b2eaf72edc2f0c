package factors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const percentDifferenceJSON = `{
  "op": "div",
  "left": {
    "op": "sub",
    "left":  {"factor": "sma", "column": "close", "window": 10},
    "right": {"factor": "sma", "column": "close", "window": 30}
  },
  "right": {"factor": "sma", "window": 30}
}`

func TestExpr_Build(t *testing.T) {
	var e Expr
	require.NoError(t, json.Unmarshal([]byte(percentDifferenceJSON), &e))

	f, err := e.Build()
	require.NoError(t, err)
	assert.Equal(t, "div(sub(sma(close,10),sma(close,30)),sma(close,30))", f.String())
	assert.Equal(t, 30, f.WindowLength())
}

func TestExpr_BuildErrors(t *testing.T) {
	two := 2.0
	tests := []struct {
		name string
		expr Expr
		want error
	}{
		{"empty", Expr{}, ErrInvalidExpr},
		{"unknown factor", Expr{Factor: "ema", Window: 3}, ErrInvalidExpr},
		{"unknown op", Expr{Op: "pow", Left: &Expr{Factor: "latest"}, Right: &Expr{Factor: "latest"}}, ErrInvalidExpr},
		{"missing right", Expr{Op: "add", Left: &Expr{Factor: "latest"}}, ErrInvalidExpr},
		{"const without value", Expr{Factor: "const"}, ErrInvalidExpr},
		{"bad column", Expr{Factor: "sma", Column: "bid", Window: 3}, ErrUnknownColumn},
		{"bad window", Expr{Op: "mul", Left: &Expr{Factor: "sma", Window: 0}, Right: &Expr{Factor: "const", Value: &two}}, ErrInvalidWindow},
		{"window too long", Expr{Factor: "sma", Column: "close", Window: 1 << 40}, ErrInvalidWindow},
		{"neg with two operands", Expr{Op: "neg", Left: &Expr{Factor: "latest"}, Right: &Expr{Factor: "latest"}}, ErrInvalidExpr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.expr.Build()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, src := range []string{
		"div(sub(sma(close,10),sma(close,30)),sma(close,30))",
		"div(add(sma(close,10),sma(open,5)),2)",
		"neg(returns(20))",
		"mul(vwap(5),adv(20))",
		"sub(volatility(30),-0.25)",
		"latest(volume)",
	} {
		t.Run(src, func(t *testing.T) {
			f, err := Parse(src)
			require.NoError(t, err)
			assert.Equal(t, src, f.String())
		})
	}
}

func TestParse_Whitespace(t *testing.T) {
	f, err := Parse(" div( sma(close, 10) , 2 ) ")
	require.NoError(t, err)
	assert.Equal(t, "div(sma(close,10),2)", f.String())
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"sma(close)",
		"sma(bid,3)",
		"ema(close,3)",
		"add(1,2",
		"returns(1)",
		"latest(close) extra",
		"foo",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}
