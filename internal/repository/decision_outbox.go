package repository

import (
	"context"
	"fmt"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/pkg/queue"
)

const decisionMessageType = "trading_decision"

type messageQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
	Drain(ctx context.Context, max int, fn queue.HandlerFunc) (int, error)
	Len(ctx context.Context) (int64, error)
}

// DecisionOutbox parks decisions whose publish failed on a Redis list.
type DecisionOutbox struct {
	q messageQueue
}

var _ repository.Outbox = (*DecisionOutbox)(nil)

func NewDecisionOutbox(q messageQueue) *DecisionOutbox {
	return &DecisionOutbox{q: q}
}

func (o *DecisionOutbox) Enqueue(ctx context.Context, d *models.TradingDecision) error {
	if err := o.q.Enqueue(ctx, decisionMessageType, d); err != nil {
		return fmt.Errorf("outbox enqueue %s: %w", d.DecisionID, err)
	}
	return nil
}

// Drain replays queued decisions oldest first and stops at the first failure.
func (o *DecisionOutbox) Drain(ctx context.Context, max int, fn func(context.Context, *models.TradingDecision) error) (int, error) {
	return o.q.Drain(ctx, max, func(ctx context.Context, msg queue.Message) error {
		d, err := queue.ParsePayload[models.TradingDecision](msg)
		if err != nil {
			return err
		}
		return fn(ctx, d)
	})
}

func (o *DecisionOutbox) Len(ctx context.Context) (int64, error) {
	return o.q.Len(ctx)
}
