package usecase

import (
	"context"
	"errors"
	"sync"

	"FinFusion/internal/domain/models"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*models.TradingDecision
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, d *models.TradingDecision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, d)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type memOutbox struct {
	items []*models.TradingDecision
}

func (o *memOutbox) Enqueue(_ context.Context, d *models.TradingDecision) error {
	o.items = append(o.items, d)
	return nil
}

func (o *memOutbox) Drain(ctx context.Context, max int, fn func(context.Context, *models.TradingDecision) error) (int, error) {
	n := 0
	for len(o.items) > 0 && n < max {
		if err := fn(ctx, o.items[0]); err != nil {
			return n, err
		}
		o.items = o.items[1:]
		n++
	}
	return n, nil
}

func (o *memOutbox) Len(context.Context) (int64, error) { return int64(len(o.items)), nil }

type memStore struct {
	stored    []*models.TradingDecision
	recentErr error
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Store(_ context.Context, d *models.TradingDecision) error {
	s.stored = append(s.stored, d)
	return nil
}

func (s *memStore) Recent(_ context.Context, symbol string, limit int) ([]*models.TradingDecision, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []*models.TradingDecision
	for i := len(s.stored) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || s.stored[i].Symbol == symbol {
			out = append(out, s.stored[i])
		}
	}
	return out, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

type memSignalCache struct {
	mu       sync.Mutex
	signals  map[string]models.MarketSignal
	insights []models.BatchReflection
	err      error
}

func newMemSignalCache() *memSignalCache {
	return &memSignalCache{signals: make(map[string]models.MarketSignal)}
}

func (c *memSignalCache) PutSignal(_ context.Context, s models.MarketSignal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.signals[s.Symbol] = s
	return nil
}

func (c *memSignalCache) PutInsights(_ context.Context, b models.BatchReflection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.insights = append(c.insights, b)
	return nil
}

func (c *memSignalCache) Ping(context.Context) error { return c.err }

type staticChecker struct {
	name string
	err  error
}

func (c staticChecker) Name() string               { return c.name }
func (c staticChecker) Ping(context.Context) error { return c.err }

// countingMetrics records error labels and gate rejections.
type countingMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	processed map[string]int
	gates     map[string]int
	depth     []int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}, processed: map[string]int{}, gates: map[string]int{}}
}

func (m *countingMetrics) RecordMessageProcessed(agent string) {
	m.mu.Lock()
	m.processed[agent]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordDecisionLatency(string, float64) {}
func (m *countingMetrics) SetActiveDecisions(int)                {}
func (m *countingMetrics) RecordReflectionDepth(depth int) {
	m.mu.Lock()
	m.depth = append(m.depth, depth)
	m.mu.Unlock()
}
func (m *countingMetrics) RecordGateRejection(gate string) {
	m.mu.Lock()
	m.gates[gate]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) SetActiveSignals(int)            {}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

var errBrokerDown = errors.New("broker down")
