package usecase

import (
	"sort"
	"sync"

	"FinFusion/internal/domain/models"
)

type signalEntry struct {
	mu     sync.Mutex
	signal models.MarketSignal
}

// SignalTable holds the latest merged signal per symbol. Each entry has its
// own lock, so updates to different symbols never contend; the table lock
// only guards insertion.
type SignalTable struct {
	mu      sync.RWMutex
	entries map[string]*signalEntry
}

func NewSignalTable() *SignalTable {
	return &SignalTable{entries: make(map[string]*signalEntry)}
}

func (t *SignalTable) entry(symbol string) (*signalEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[symbol]
	return e, ok
}

// ApplyTick replaces the symbol's signal with s, keeping the sentiment and
// on-chain values already present. It returns the merged snapshot.
func (t *SignalTable) ApplyTick(s models.MarketSignal) models.MarketSignal {
	e, ok := t.entry(s.Symbol)
	if !ok {
		t.mu.Lock()
		if e, ok = t.entries[s.Symbol]; !ok {
			e = &signalEntry{}
			t.entries[s.Symbol] = e
		}
		t.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ok {
		s.SentimentScore = e.signal.SentimentScore
		s.OnChainActivity = e.signal.OnChainActivity
	}
	e.signal = s.Clone()
	return e.signal.Clone()
}

// ApplySentiment sets the sentiment of an existing entry. It reports false
// and changes nothing when the symbol has no entry yet.
func (t *SignalTable) ApplySentiment(symbol string, score float64) (models.MarketSignal, bool) {
	return t.update(symbol, func(s *models.MarketSignal) { s.SentimentScore = score })
}

// ApplyOnChain replaces the on-chain activity of an existing entry.
func (t *SignalTable) ApplyOnChain(symbol string, activity models.OnChainActivity) (models.MarketSignal, bool) {
	activity = activity.Clone()
	return t.update(symbol, func(s *models.MarketSignal) { s.OnChainActivity = activity })
}

func (t *SignalTable) update(symbol string, fn func(*models.MarketSignal)) (models.MarketSignal, bool) {
	e, ok := t.entry(symbol)
	if !ok {
		return models.MarketSignal{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.signal)
	return e.signal.Clone(), true
}

// Snapshot returns an independent copy of the symbol's signal.
func (t *SignalTable) Snapshot(symbol string) (models.MarketSignal, bool) {
	e, ok := t.entry(symbol)
	if !ok {
		return models.MarketSignal{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signal.Clone(), true
}

// Symbols returns the tracked symbols in sorted order.
func (t *SignalTable) Symbols() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.entries))
	for s := range t.entries {
		out = append(out, s)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Snapshots copies every signal, ordered by symbol.
func (t *SignalTable) Snapshots() []models.MarketSignal {
	symbols := t.Symbols()
	out := make([]models.MarketSignal, 0, len(symbols))
	for _, s := range symbols {
		if sig, ok := t.Snapshot(s); ok {
			out = append(out, sig)
		}
	}
	return out
}

func (t *SignalTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
