package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"FinFusion/pkg/logger"
)

// RedisQueue is a FIFO list in Redis drained on demand. Messages that keep
// failing move to a dead-letter list after Config.RetryLimit attempts.
type RedisQueue struct {
	logger    *logger.Logger
	config    *Config
	client    redis.Cmdable
	keyPrefix string
	now       func() time.Time
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config *Config, client redis.Cmdable, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.NewNop()
	}
	if config == nil {
		config = &Config{}
	}
	if config.RetryLimit <= 0 {
		config.RetryLimit = 10
	}

	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		keyPrefix: "finfusion:queue",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// Enqueue appends a message to the queue.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := r.now()
	msg := Message{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		Type:      msgType,
		Payload:   body,
		Timestamp: now,
	}
	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, r.getQueueKey(), msgData).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Drain hands up to max messages to fn, oldest first. It stops at the first
// failure and puts the failed message back at the head of the queue.
func (r *RedisQueue) Drain(ctx context.Context, max int, fn HandlerFunc) (int, error) {
	handled := 0
	for handled < max {
		raw, err := r.client.RPop(ctx, r.getQueueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return handled, nil
			}
			return handled, fmt.Errorf("rpop: %w", err)
		}

		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			r.logger.Error("unmarshal message", logger.Error(err))
			r.moveToDeadLetterQueue(ctx, []byte(raw))
			continue
		}

		if err := fn(ctx, msg); err != nil {
			r.handleProcessingError(ctx, msg, err)
			return handled, err
		}
		handled++
	}
	return handled, nil
}

// Len returns the number of queued messages.
func (r *RedisQueue) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.getQueueKey()).Result()
}

// DeadLetterLen returns the number of abandoned messages.
func (r *RedisQueue) DeadLetterLen(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.getDeadLetterKey()).Result()
}

func (r *RedisQueue) handleProcessingError(ctx context.Context, msg Message, err error) {
	msg.Attempts++
	r.logger.Warn("message processing error",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))

	msgData, mErr := json.Marshal(msg)
	if mErr != nil {
		r.logger.Error("marshal retry", logger.Error(mErr))
		return
	}

	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type))
		r.moveToDeadLetterQueue(ctx, msgData)
		return
	}

	if err := r.client.RPush(ctx, r.getQueueKey(), msgData).Err(); err != nil {
		r.logger.Error("requeue message", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) moveToDeadLetterQueue(ctx context.Context, msgData []byte) {
	if err := r.client.LPush(ctx, r.getDeadLetterKey(), msgData).Err(); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) getQueueKey() string {
	return fmt.Sprintf("%s:messages", r.keyPrefix)
}

func (r *RedisQueue) getDeadLetterKey() string {
	return fmt.Sprintf("%s:dlq", r.keyPrefix)
}
