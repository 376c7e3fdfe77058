package repository

import (
	"context"

	"FinFusion/internal/domain/models"
)

// MarketStream is a live tick source feeding the market data ingest path.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MarketTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// DecisionPublisher delivers accepted decisions downstream.
type DecisionPublisher interface {
	Publish(ctx context.Context, d *models.TradingDecision) error
	Close() error
}

// DecisionStore keeps an audit trail of emitted decisions.
type DecisionStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, d *models.TradingDecision) error
	Recent(ctx context.Context, symbol string, limit int) ([]*models.TradingDecision, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalCache mirrors the latest signals and batch insights for other services.
type SignalCache interface {
	PutSignal(ctx context.Context, s models.MarketSignal) error
	PutInsights(ctx context.Context, b models.BatchReflection) error
	Ping(ctx context.Context) error
}

// Outbox holds decisions whose publish failed until they can be replayed.
type Outbox interface {
	Enqueue(ctx context.Context, d *models.TradingDecision) error
	Drain(ctx context.Context, max int, fn func(context.Context, *models.TradingDecision) error) (int, error)
	Len(ctx context.Context) (int64, error)
}

// HealthChecker is a dependency pinged by the health loop.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

type Metrics interface {
	RecordMessageProcessed(agent string)
	RecordDecisionLatency(agent string, seconds float64)
	SetActiveDecisions(n int)
	RecordReflectionDepth(depth int)
	RecordGateRejection(gate string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	SetActiveSignals(n int)
}
