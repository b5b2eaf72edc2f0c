package api

import "FactorPipe/internal/services/factors"

type RunPipelineRequest struct {
	Columns map[string]factors.Expr `json:"columns" validate:"required,min=1,max=32"`
	Start   string                  `json:"start" validate:"required,session"`
	End     string                  `json:"end" validate:"required,session"`
}

type PercentDifferenceRequest struct {
	Start string `query:"start" json:"start" validate:"required,session"`
	End   string `query:"end" json:"end" validate:"required,session"`
	Short int    `query:"short" json:"short" default:"10" validate:"gte=1,lte=2520"`
	Long  int    `query:"long" json:"long" default:"30" validate:"gte=1,lte=2520"`
}

type SessionsRequest struct {
	From string `query:"from" json:"from" validate:"required,session"`
	To   string `query:"to" json:"to" validate:"required,session"`
}

// PipelineResponse is a result table with one value map per row.
type PipelineResponse struct {
	RunID   string        `json:"run_id"`
	Start   string        `json:"start"`
	End     string        `json:"end"`
	Columns []string      `json:"columns"`
	Rows    []RowResponse `json:"rows"`
}

// RowResponse holds one asset on one session. Undefined values are null.
type RowResponse struct {
	Session string              `json:"session"`
	Symbol  string              `json:"symbol"`
	Values  map[string]*float64 `json:"values"`
}

type SessionsResponse struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Sessions []string `json:"sessions"`
}
