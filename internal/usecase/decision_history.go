package usecase

import (
	"sync"

	"FinFusion/internal/domain/models"
)

// DecisionHistory is the append-only record of emitted decisions. Once it
// holds capacity entries the oldest is dropped on append.
type DecisionHistory struct {
	mu       sync.RWMutex
	items    []*models.TradingDecision
	capacity int
	appended int
}

func NewDecisionHistory(capacity int) *DecisionHistory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &DecisionHistory{capacity: capacity}
}

func (h *DecisionHistory) Append(d *models.TradingDecision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, d)
	if len(h.items) > h.capacity {
		h.items = append(h.items[:0:0], h.items[len(h.items)-h.capacity:]...)
	}
	h.appended++
}

func (h *DecisionHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Total counts every append, including dropped entries.
func (h *DecisionHistory) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.appended
}

// Last returns up to n most recent decisions, oldest first.
func (h *DecisionHistory) Last(n int) []*models.TradingDecision {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.items) || n < 0 {
		n = len(h.items)
	}
	out := make([]*models.TradingDecision, n)
	copy(out, h.items[len(h.items)-n:])
	return out
}

// Recent returns up to limit decisions newest first. An empty symbol matches all.
func (h *DecisionHistory) Recent(symbol string, limit int) []*models.TradingDecision {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*models.TradingDecision, 0, min(limit, len(h.items)))
	for i := len(h.items) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || h.items[i].Symbol == symbol {
			out = append(out, h.items[i])
		}
	}
	return out
}
