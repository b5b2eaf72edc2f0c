package pipeline

import (
	"testing"

	"FactorPipe/internal/services/factors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakePercentDifference(t *testing.T) {
	p := MakePercentDifference(10, 30)

	assert.Equal(t, []string{PercentDifferenceColumn}, p.Columns())
	assert.Equal(t, 30, p.MaxWindowLength())
	require.NoError(t, p.Validate())

	f, ok := p.Factor(PercentDifferenceColumn)
	require.True(t, ok)
	assert.Equal(t, "div(sub(sma(close,10),sma(close,30)),sma(close,30))", f.String())
}

func TestMakePercentDifference_SwappedWindows(t *testing.T) {
	a := MakePercentDifference(10, 30)
	b := MakePercentDifference(30, 10)

	assert.Equal(t, a.Columns(), b.Columns())
	assert.Equal(t, a.MaxWindowLength(), b.MaxWindowLength())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestPipeline_AddRemove(t *testing.T) {
	p := New(nil)
	require.NoError(t, p.Add("b", factors.NewReturns(5)))
	require.NoError(t, p.Add("a", factors.NewLatest(factors.Close)))

	assert.ErrorIs(t, p.Add("a", factors.Const(1)), ErrDuplicateColumn)
	assert.ErrorIs(t, p.Add(" ", factors.Const(1)), ErrEmptyName)
	assert.ErrorIs(t, p.Add("c", nil), ErrNilFactor)

	assert.Equal(t, []string{"a", "b"}, p.Columns())
	assert.Equal(t, 5, p.MaxWindowLength())

	_, ok := p.Remove("b")
	assert.True(t, ok)
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 1, p.MaxWindowLength())
}

func TestPipeline_Validate(t *testing.T) {
	p := New(map[string]factors.Factor{"bad": factors.NewSimpleMovingAverage(factors.Close, 0)})
	err := p.Validate()
	assert.ErrorIs(t, err, factors.ErrInvalidWindow)
	assert.Contains(t, err.Error(), "column bad")
}

func TestPipeline_FingerprintStable(t *testing.T) {
	a := New(map[string]factors.Factor{"x": factors.NewVWAP(5), "y": factors.NewReturns(2)})
	b := New(nil)
	require.NoError(t, b.Add("y", factors.NewReturns(2)))
	require.NoError(t, b.Add("x", factors.NewVWAP(5)))

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 32)
}

func TestFromStrings(t *testing.T) {
	p, err := FromStrings(map[string]string{
		PercentDifferenceColumn: "div(sub(sma(close,10),sma(close,30)),sma(close,30))",
	})
	require.NoError(t, err)
	assert.Equal(t, MakePercentDifference(10, 30).Fingerprint(), p.Fingerprint())

	_, err = FromStrings(map[string]string{"x": "sma(close,0)"})
	assert.ErrorIs(t, err, factors.ErrInvalidWindow)
}

func TestFromExprs(t *testing.T) {
	p, err := FromExprs(map[string]factors.Expr{
		"momentum": {Factor: "returns", Window: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, p.MaxWindowLength())
}
