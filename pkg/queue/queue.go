package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Config contains the configuration for the queue.
type Config struct {
	RetryLimit int // drain attempts before a message moves to the dead-letter list
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// HandlerFunc processes one drained message. A nil error acknowledges it.
type HandlerFunc func(ctx context.Context, msg Message) error

// ParsePayload decodes the message payload into T.
func ParsePayload[T any](msg Message) (*T, error) {
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return &result, nil
}
