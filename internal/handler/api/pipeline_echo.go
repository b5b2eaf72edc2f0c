package api

import (
	"context"
	"errors"
	"math"

	"github.com/labstack/echo/v4"

	"FactorPipe/internal/domain/models"
	"FactorPipe/internal/services/factors"
	"FactorPipe/internal/services/pipeline"
	"FactorPipe/internal/usecase"
	xhttp "FactorPipe/pkg/http"
	applogger "FactorPipe/pkg/logger"
	"FactorPipe/pkg/util"
)

// PipelineEchoHandler serves pipeline runs and session listings.
type PipelineEchoHandler struct {
	logger  *applogger.Logger
	uc      *usecase.PipelineUseCase
	limiter xhttp.Allower
}

// NewPipelineEchoHandler creates the pipeline HTTP handler. limiter may be nil.
func NewPipelineEchoHandler(logger *applogger.Logger, uc *usecase.PipelineUseCase, limiter xhttp.Allower) *PipelineEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &PipelineEchoHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/sessions", h.Sessions)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, xhttp.RateLimit(h.limiter))
	}
	p := g.Group("/pipeline")
	p.POST("/run", h.Run, mw...)
	p.GET("/percent-difference", h.PercentDifference, mw...)
}

func (h *PipelineEchoHandler) Run(c echo.Context) error {
	req := &RunPipelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, end, err := util.ParseSessionRange(req.Start, req.End)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.uc.Run(c.Request().Context(), usecase.RunParams{Columns: req.Columns, Start: start, End: end})
	if err != nil {
		return h.fail(c, "pipeline run", err)
	}
	return xhttp.SuccessResponse(c, toPipelineResponse(res))
}

func (h *PipelineEchoHandler) PercentDifference(c echo.Context) error {
	req := &PercentDifferenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, end, err := util.ParseSessionRange(req.Start, req.End)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	res, err := h.uc.PercentDifference(c.Request().Context(), req.Short, req.Long, start, end)
	if err != nil {
		return h.fail(c, "percent difference", err)
	}
	return xhttp.SuccessResponse(c, toPipelineResponse(res))
}

func (h *PipelineEchoHandler) Sessions(c echo.Context) error {
	req := &SessionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := util.ParseSessionRange(req.From, req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	sessions, err := h.uc.Sessions(c.Request().Context(), from, to)
	if err != nil {
		return h.fail(c, "list sessions", err)
	}
	out := SessionsResponse{From: req.From, To: req.To, Sessions: make([]string, len(sessions))}
	for i, s := range sessions {
		out.Sessions[i] = util.FormatSession(s)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, out)
}

func (h *PipelineEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" usecase error", applogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrInvalidRange), errors.Is(err, usecase.ErrEmptyPipeline):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNoSessions):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, factors.ErrInvalidWindow),
		errors.Is(err, factors.ErrUnknownColumn),
		errors.Is(err, factors.ErrInvalidExpr),
		errors.Is(err, pipeline.ErrEmptyName),
		errors.Is(err, pipeline.ErrDuplicateColumn),
		errors.Is(err, pipeline.ErrNilFactor):
		return xhttp.UnprocessableError("columns", err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("pipeline run timed out").WithError(err)
	default:
		return xhttp.InternalError("pipeline run failed").WithError(err)
	}
}

func toPipelineResponse(res *models.PipelineResult) PipelineResponse {
	out := PipelineResponse{
		RunID:   res.RunID,
		Start:   util.FormatSession(res.Start),
		End:     util.FormatSession(res.End),
		Columns: res.Columns,
		Rows:    make([]RowResponse, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		values := make(map[string]*float64, len(res.Columns))
		for i, col := range res.Columns {
			v := row.Values[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				values[col] = nil
				continue
			}
			values[col] = &v
		}
		out.Rows = append(out.Rows, RowResponse{
			Session: util.FormatSession(row.Session),
			Symbol:  row.Symbol,
			Values:  values,
		})
	}
	return out
}
