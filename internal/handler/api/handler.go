package api

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/usecase"
	xhttp "FinFusion/pkg/http"
	xlogger "FinFusion/pkg/logger"
)

const serviceName = "finfusion"

// Engine is the read side of the decision runtime.
type Engine interface {
	Health() usecase.HealthStatus
	Signals() []models.SignalView
	Signal(symbol string) (models.SignalView, bool)
	RecentDecisions(ctx context.Context, symbol string, limit int) ([]*models.TradingDecision, error)
	LatestReflection() (models.BatchReflection, bool)
	DecisionCount() int
}

var _ Engine = (*usecase.Runtime)(nil)

// Handler serves health checks and read-only views of signals, decisions
// and reflections.
type Handler struct {
	logger *xlogger.Logger
	engine Engine
	now    func() time.Time
}

var _ xhttp.Handler = (*Handler)(nil)

func NewHandler(logger *xlogger.Logger, engine Engine) *Handler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &Handler{logger: logger, engine: engine, now: func() time.Time { return time.Now().UTC() }}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)

	g := e.Group("/api")
	g.GET("/signals", h.ListSignals)
	g.GET("/signals/:symbol", h.GetSignal)
	g.GET("/decisions", h.ListDecisions)
	g.GET("/reflections/latest", h.LatestReflection)
}

type healthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Service         string    `json:"service"`
	ActiveSignals   int       `json:"active_signals"`
	DecisionHistory int       `json:"decision_history"`
}

// Health is liveness only; it never consults dependencies.
func (h *Handler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, healthResponse{
		Status:          "healthy",
		Timestamp:       h.now(),
		Service:         serviceName,
		ActiveSignals:   len(h.engine.Signals()),
		DecisionHistory: h.engine.DecisionCount(),
	})
}

// Ready reports the last health-loop result, 503 until a check has passed.
func (h *Handler) Ready(c echo.Context) error {
	status := h.engine.Health()
	if !status.Ready {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *Handler) ListSignals(c echo.Context) error {
	signals := h.engine.Signals()
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}

func (h *Handler) GetSignal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normalizeSymbol(req.Symbol)

	view, ok := h.engine.Signal(symbol)
	if !ok && strings.Contains(symbol, "-") {
		// BTC-USD is accepted for BTC/USD since a raw slash cannot be a path segment.
		view, ok = h.engine.Signal(strings.ReplaceAll(symbol, "-", "/"))
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no signal for %s", symbol))
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *Handler) ListDecisions(c echo.Context) error {
	req := &models.DecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbol := normalizeSymbol(req.Symbol)

	decisions, err := h.engine.RecentDecisions(c.Request().Context(), symbol, req.Limit)
	if err != nil {
		h.logger.Error("recent decisions failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("recent decisions unavailable").WithError(err))
	}
	if decisions == nil {
		decisions = []*models.TradingDecision{}
	}
	return xhttp.ListResponse(c, decisions, int64(len(decisions)))
}

func (h *Handler) LatestReflection(c echo.Context) error {
	batch, ok := h.engine.LatestReflection()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no batch reflection yet"))
	}
	return xhttp.SuccessResponse(c, batch)
}

// normalizeSymbol decodes an escaped symbol and folds it the same way ingest does.
func normalizeSymbol(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		s = u
	}
	return models.NormalizeSymbol(s)
}
