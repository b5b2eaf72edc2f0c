package models

import (
	"encoding/json"
	"math"
	"time"
)

// PipelineResult is the tabular output of a pipeline run.
// Rows are (session, asset) pairs; Values in each row align with Columns.
type PipelineResult struct {
	RunID    string      `json:"run_id"`
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Columns  []string    `json:"columns"`
	Sessions []time.Time `json:"sessions"`
	Rows     []ResultRow `json:"rows"`
}

type ResultRow struct {
	Session time.Time `json:"session"`
	Symbol  string    `json:"symbol"`
	Values  []float64 `json:"-"`
}

// Value returns the named column for the row, NaN if the column is unknown.
func (r *PipelineResult) Value(row int, column string) float64 {
	for i, c := range r.Columns {
		if c == column {
			return r.Rows[row].Values[i]
		}
	}
	return math.NaN()
}

// RowsFor returns the rows of a single session.
func (r *PipelineResult) RowsFor(session time.Time) []ResultRow {
	var out []ResultRow
	for _, row := range r.Rows {
		if row.Session.Equal(session) {
			out = append(out, row)
		}
	}
	return out
}

type resultRowJSON struct {
	Session time.Time  `json:"session"`
	Symbol  string     `json:"symbol"`
	Values  []*float64 `json:"values"`
}

// MarshalJSON writes NaN values as null; encoding/json rejects NaN.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	out := resultRowJSON{Session: r.Session, Symbol: r.Symbol, Values: make([]*float64, len(r.Values))}
	for i, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v := v
		out.Values[i] = &v
	}
	return json.Marshal(out)
}

func (r *ResultRow) UnmarshalJSON(b []byte) error {
	var in resultRowJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Session = in.Session
	r.Symbol = in.Symbol
	r.Values = make([]float64, len(in.Values))
	for i, v := range in.Values {
		if v == nil {
			r.Values[i] = math.NaN()
			continue
		}
		r.Values[i] = *v
	}
	return nil
}
