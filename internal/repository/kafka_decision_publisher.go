package repository

import (
	"context"
	"fmt"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
)

// messageWriter is the subset of pkg/kafka.Producer the publisher needs.
type messageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Ping(ctx context.Context) error
	Close() error
}

// KafkaDecisionPublisher writes decisions as JSON, keyed by symbol so a
// symbol's decisions stay ordered within one partition.
type KafkaDecisionPublisher struct {
	producer messageWriter
	topic    string
}

var _ repository.DecisionPublisher = (*KafkaDecisionPublisher)(nil)

func NewKafkaDecisionPublisher(producer messageWriter, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, d *models.TradingDecision) error {
	if d == nil {
		return fmt.Errorf("publish: nil decision")
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(d.Symbol), d); err != nil {
		return fmt.Errorf("publish %s: %w", d.DecisionID, err)
	}
	return nil
}

// Name and Ping let the health loop check the broker.
func (p *KafkaDecisionPublisher) Name() string { return "kafka" }

func (p *KafkaDecisionPublisher) Ping(ctx context.Context) error {
	return p.producer.Ping(ctx)
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
