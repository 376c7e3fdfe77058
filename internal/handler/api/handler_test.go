package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/usecase"
)

type fakeEngine struct {
	health     usecase.HealthStatus
	signals    []models.SignalView
	decisions  []*models.TradingDecision
	reflection *models.BatchReflection
	err        error

	gotSymbol string
	gotLimit  int
}

func (f *fakeEngine) Health() usecase.HealthStatus { return f.health }
func (f *fakeEngine) Signals() []models.SignalView { return f.signals }
func (f *fakeEngine) DecisionCount() int           { return len(f.decisions) }

func (f *fakeEngine) Signal(symbol string) (models.SignalView, bool) {
	for _, s := range f.signals {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return models.SignalView{}, false
}

func (f *fakeEngine) RecentDecisions(_ context.Context, symbol string, limit int) ([]*models.TradingDecision, error) {
	f.gotSymbol, f.gotLimit = symbol, limit
	return f.decisions, f.err
}

func (f *fakeEngine) LatestReflection() (models.BatchReflection, bool) {
	if f.reflection == nil {
		return models.BatchReflection{}, false
	}
	return *f.reflection, true
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, engine Engine, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	NewHandler(nil, engine).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func btcView() models.SignalView {
	return models.SignalView{
		MarketSignal: models.MarketSignal{Symbol: "BTC/USD", Price: 80, Volume: 5000, SentimentScore: 0.5, Timestamp: now},
		Ready:        true,
	}
}

func TestHealth(t *testing.T) {
	engine := &fakeEngine{signals: []models.SignalView{btcView()}, decisions: []*models.TradingDecision{{DecisionID: "d1"}}}
	rec, env := serve(t, engine, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "finfusion", body.Service)
	assert.Equal(t, 1, body.ActiveSignals)
	assert.Equal(t, 1, body.DecisionHistory)
}

func TestReady(t *testing.T) {
	engine := &fakeEngine{}
	rec, env := serve(t, engine, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)

	engine.health = usecase.HealthStatus{
		Ready:        true,
		CheckedAt:    now,
		Dependencies: []usecase.DependencyStatus{{Name: "kafka", Healthy: true}},
	}
	rec, env = serve(t, engine, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	var status usecase.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Ready)
	assert.Equal(t, "kafka", status.Dependencies[0].Name)
}

func TestSignals(t *testing.T) {
	engine := &fakeEngine{signals: []models.SignalView{btcView()}}

	rec, env := serve(t, engine, "/api/signals")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[{"symbol":"BTC/USD","price":80,"volume":5000,"sentiment_score":0.5,"on_chain_activity":null,"timestamp":"2026-03-01T12:00:00Z","source":"","ready":true}],"total":1}`, string(env.Data))

	for _, target := range []string{"/api/signals/BTC%2FUSD", "/api/signals/btc-usd"} {
		rec, env = serve(t, engine, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		var view models.SignalView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, "BTC/USD", view.Symbol)
		assert.True(t, view.Ready)
	}

	rec, _ = serve(t, engine, "/api/signals/DOGE-USD")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDecisions(t *testing.T) {
	engine := &fakeEngine{decisions: []*models.TradingDecision{{DecisionID: "d1", Symbol: "BTC/USD", Action: models.ActionBuy}}}

	rec, env := serve(t, engine, "/api/decisions?symbol=BTC/USD")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC/USD", engine.gotSymbol)
	assert.Equal(t, 50, engine.gotLimit)
	var list struct {
		Rows  []models.TradingDecision `json:"rows"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, "d1", list.Rows[0].DecisionID)

	serve(t, engine, "/api/decisions?limit=500")
	assert.Equal(t, 500, engine.gotLimit)
	assert.Empty(t, engine.gotSymbol)
}

func TestListDecisionsNormalizesSymbol(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"btcusdt", "BTC/USD"},
		{"btc-usd", "BTC/USD"},
		{"BTC%2FUSD", "BTC/USD"},
		{"eth/usd", "ETH/USD"},
		{"SOLUSDT", "SOL/USD"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			engine := &fakeEngine{}
			rec, _ := serve(t, engine, "/api/decisions?symbol="+tt.query)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, engine.gotSymbol)
		})
	}
}

func TestListDecisionsValidation(t *testing.T) {
	for _, target := range []string{"/api/decisions?limit=501", "/api/decisions?limit=-1", "/api/decisions?limit=ten"} {
		rec, env := serve(t, &fakeEngine{}, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, http.StatusBadRequest, env.Status)
	}
}

func TestListDecisionsEmptyAndFailure(t *testing.T) {
	rec, env := serve(t, &fakeEngine{}, "/api/decisions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[],"total":0}`, string(env.Data))

	rec, _ = serve(t, &fakeEngine{err: errors.New("boom")}, "/api/decisions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLatestReflection(t *testing.T) {
	engine := &fakeEngine{}
	rec, _ := serve(t, engine, "/api/reflections/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	engine.reflection = &models.BatchReflection{BatchID: "batch_1", DecisionCount: 3}
	rec, env := serve(t, engine, "/api/reflections/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	var batch models.BatchReflection
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Equal(t, "batch_1", batch.BatchID)
}
