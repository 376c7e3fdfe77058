package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	"FinFusion/pkg/cache"
	"FinFusion/pkg/queue"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func decision(id, symbol string) *models.TradingDecision {
	return &models.TradingDecision{
		DecisionID:  id,
		Symbol:      symbol,
		Action:      models.ActionBuy,
		Confidence:  0.82,
		Quantity:    0.01,
		PriceTarget: 81.8,
		Reasoning:   map[string]interface{}{models.ReasoningFact: []string{"up"}},
		RiskAssessment: models.RiskAssessment{
			OverallRisk:    models.RiskMedium,
			RiskScore:      0.5,
			SharpeEstimate: 2,
		},
		Timestamp: ts,
	}
}

type recordingWriter struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (w *recordingWriter) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	w.topic, w.key, w.value = topic, key, value
	return w.err
}
func (w *recordingWriter) Ping(context.Context) error { return w.err }
func (w *recordingWriter) Close() error               { return nil }

func TestKafkaDecisionPublisherKeysBySymbol(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaDecisionPublisher(w, "trading.decisions")

	d := decision("d-1", "BTC/USD")
	require.NoError(t, p.Publish(context.Background(), d))
	assert.Equal(t, "trading.decisions", w.topic)
	assert.Equal(t, []byte("BTC/USD"), w.key)
	assert.Same(t, d, w.value)

	w.err = errors.New("broker down")
	err := p.Publish(context.Background(), d)
	assert.ErrorIs(t, err, w.err)
	assert.Contains(t, err.Error(), "d-1")

	assert.Error(t, p.Publish(context.Background(), nil))
}

func TestCacheSignalStoreKeys(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCacheSignalStore(mc, 0, 0)
	assert.Equal(t, DefaultSignalTTL, s.signalTTL)
	assert.Equal(t, DefaultInsightTTL, s.insightTTL)

	sig := models.MarketSignal{
		Symbol:          "ETH/USD",
		Price:           3000,
		SentimentScore:  0.4,
		OnChainActivity: models.OnChainActivity{models.OnChainVolatility: 0.01},
		Timestamp:       ts,
	}
	require.NoError(t, s.PutSignal(ctx, sig))
	got, err := s.GetSignal(ctx, "ETH/USD")
	require.NoError(t, err)
	assert.Equal(t, sig.Price, got.Price)
	assert.Equal(t, 0.01, got.OnChainActivity.Volatility())

	require.NoError(t, s.PutInsights(ctx, models.BatchReflection{BatchID: "1", Timestamp: ts}))
	ok, err := mc.Exists(ctx, "insights:2026-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "signal:BTC/USD", SignalKey("BTC/USD"))
	assert.NoError(t, s.Ping(ctx))
}

type sliceQueue struct {
	msgs []queue.Message
}

func (q *sliceQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.msgs = append(q.msgs, queue.Message{Type: msgType, Payload: b})
	return nil
}

func (q *sliceQueue) Drain(ctx context.Context, max int, fn queue.HandlerFunc) (int, error) {
	n := 0
	for len(q.msgs) > 0 && n < max {
		if err := fn(ctx, q.msgs[0]); err != nil {
			return n, err
		}
		q.msgs = q.msgs[1:]
		n++
	}
	return n, nil
}

func (q *sliceQueue) Len(context.Context) (int64, error) { return int64(len(q.msgs)), nil }

func TestDecisionOutboxReplays(t *testing.T) {
	ctx := context.Background()
	q := &sliceQueue{}
	o := NewDecisionOutbox(q)

	require.NoError(t, o.Enqueue(ctx, decision("d-1", "BTC/USD")))
	require.NoError(t, o.Enqueue(ctx, decision("d-2", "ETH/USD")))
	assert.Equal(t, decisionMessageType, q.msgs[0].Type)

	var ids []string
	n, err := o.Drain(ctx, 10, func(_ context.Context, d *models.TradingDecision) error {
		ids = append(ids, d.DecisionID)
		assert.Equal(t, 81.8, d.PriceTarget)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"d-1", "d-2"}, ids)

	left, _ := o.Len(ctx)
	assert.Zero(t, left)
}

func TestDecisionOutboxStopsOnFailure(t *testing.T) {
	ctx := context.Background()
	q := &sliceQueue{}
	o := NewDecisionOutbox(q)
	require.NoError(t, o.Enqueue(ctx, decision("d-1", "BTC/USD")))

	boom := errors.New("still down")
	n, err := o.Drain(ctx, 10, func(context.Context, *models.TradingDecision) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
	left, _ := o.Len(ctx)
	assert.Equal(t, int64(1), left)
}

func TestDecisionRow(t *testing.T) {
	row, err := newDecisionRow(decision("d-1", "BTC/USD"))
	require.NoError(t, err)
	assert.Equal(t, "buy", row.action)
	assert.Equal(t, 0.5, row.riskScore)
	assert.Equal(t, 2.0, row.sharpe)
	assert.Len(t, row.args(), 10)

	var back models.TradingDecision
	require.NoError(t, json.Unmarshal([]byte(row.payload), &back))
	assert.Equal(t, "d-1", back.DecisionID)

	_, err = newDecisionRow(nil)
	assert.Error(t, err)
}

func TestDecisionSchema(t *testing.T) {
	stmts := DecisionSchema("decisions")
	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS decisions"))
	assert.Contains(t, stmts[0], "ORDER BY (symbol, ts)")
}
