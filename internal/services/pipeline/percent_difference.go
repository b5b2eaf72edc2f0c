package pipeline

import "FactorPipe/internal/services/factors"

// PercentDifferenceColumn is the only output of MakePercentDifference.
const PercentDifferenceColumn = "percent_difference"

// MakePercentDifference builds the pipeline
//
//	percent_difference = (SMA(close, short) - SMA(close, long)) / SMA(close, long)
//
// The two averages are intermediates and are not output columns.
func MakePercentDifference(short, long int) *Pipeline {
	shortMean := factors.NewSimpleMovingAverage(factors.USEquityPricing.Close, short)
	longMean := factors.NewSimpleMovingAverage(factors.USEquityPricing.Close, long)

	return New(map[string]factors.Factor{
		PercentDifferenceColumn: factors.Div(factors.Sub(shortMean, longMean), longMean),
	})
}

// FromExprs builds a pipeline from serialised column expressions.
func FromExprs(columns map[string]factors.Expr) (*Pipeline, error) {
	p := New(nil)
	for name, e := range columns {
		f, err := e.Build()
		if err != nil {
			return nil, err
		}
		if err := p.Add(name, f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FromStrings builds a pipeline from canonical expression strings.
func FromStrings(columns map[string]string) (*Pipeline, error) {
	p := New(nil)
	for name, src := range columns {
		f, err := factors.Parse(src)
		if err != nil {
			return nil, err
		}
		if err := p.Add(name, f); err != nil {
			return nil, err
		}
	}
	return p, nil
}
