package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSignalTableTickKeepsSentimentAndOnChain(t *testing.T) {
	table := NewSignalTable()

	_, ok := table.ApplySentiment("BTC/USD", 0.4)
	assert.False(t, ok, "sentiment before the first tick is dropped")

	table.ApplyTick(models.MarketSignal{Symbol: "BTC/USD", Price: 100, Volume: 5, Timestamp: t0, Source: "x"})
	_, ok = table.ApplySentiment("BTC/USD", 0.4)
	require.True(t, ok)
	_, ok = table.ApplyOnChain("BTC/USD", models.OnChainActivity{models.OnChainVolatility: 0.02})
	require.True(t, ok)

	merged := table.ApplyTick(models.MarketSignal{Symbol: "BTC/USD", Price: 101, Volume: 7, Timestamp: t0.Add(time.Second), Source: "y"})
	assert.Equal(t, 101.0, merged.Price)
	assert.Equal(t, 7.0, merged.Volume)
	assert.Equal(t, "y", merged.Source)
	assert.Equal(t, 0.4, merged.SentimentScore)
	assert.Equal(t, 0.02, merged.OnChainActivity.Volatility())
}

func TestSignalTableTickIgnoresIncomingSentiment(t *testing.T) {
	table := NewSignalTable()
	table.ApplyTick(models.MarketSignal{Symbol: "ETH/USD", Price: 1, Timestamp: t0})

	got := table.ApplyTick(models.MarketSignal{Symbol: "ETH/USD", Price: 2, SentimentScore: 0.9, Timestamp: t0})
	assert.Zero(t, got.SentimentScore)
}

func TestSignalTableSnapshotIsIndependent(t *testing.T) {
	table := NewSignalTable()
	table.ApplyTick(models.MarketSignal{Symbol: "SOL/USD", Price: 1, Timestamp: t0})
	activity := models.OnChainActivity{models.OnChainLargeTransfers: 3}
	table.ApplyOnChain("SOL/USD", activity)

	activity[models.OnChainLargeTransfers] = 99
	snap, ok := table.Snapshot("SOL/USD")
	require.True(t, ok)
	assert.Equal(t, 3.0, snap.OnChainActivity.LargeTransfers())

	snap.OnChainActivity[models.OnChainLargeTransfers] = 42
	again, _ := table.Snapshot("SOL/USD")
	assert.Equal(t, 3.0, again.OnChainActivity.LargeTransfers())

	_, ok = table.Snapshot("DOGE/USD")
	assert.False(t, ok)
}

func TestSignalTableSymbolsSorted(t *testing.T) {
	table := NewSignalTable()
	for _, s := range []string{"SOL/USD", "BTC/USD", "ETH/USD"} {
		table.ApplyTick(models.MarketSignal{Symbol: s, Price: 1, Timestamp: t0})
	}
	assert.Equal(t, []string{"BTC/USD", "ETH/USD", "SOL/USD"}, table.Symbols())
	assert.Equal(t, 3, table.Len())
	assert.Len(t, table.Snapshots(), 3)
}

func TestSignalTableConcurrentUpdates(t *testing.T) {
	table := NewSignalTable()
	symbols := []string{"A", "B", "C", "D"}
	for _, s := range symbols {
		table.ApplyTick(models.MarketSignal{Symbol: s, Price: 1, Timestamp: t0})
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(3)
		sym := symbols[i%len(symbols)]
		price := float64(i + 1)
		go func() {
			defer wg.Done()
			table.ApplyTick(models.MarketSignal{Symbol: sym, Price: price, Timestamp: t0})
		}()
		go func() {
			defer wg.Done()
			table.ApplySentiment(sym, 0.5)
		}()
		go func() {
			defer wg.Done()
			table.ApplyOnChain(sym, models.OnChainActivity{"n": price})
			_, _ = table.Snapshot(sym)
		}()
	}
	wg.Wait()

	for _, s := range symbols {
		snap, ok := table.Snapshot(s)
		require.True(t, ok)
		assert.Equal(t, 0.5, snap.SentimentScore)
		assert.Len(t, snap.OnChainActivity, 1)
	}
}

func TestDecisionHistory(t *testing.T) {
	h := NewDecisionHistory(3)
	for i := 1; i <= 5; i++ {
		sym := "BTC/USD"
		if i%2 == 0 {
			sym = "ETH/USD"
		}
		h.Append(&models.TradingDecision{DecisionID: fmt.Sprint(i), Symbol: sym})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 5, h.Total())

	last := h.Last(10)
	require.Len(t, last, 3)
	assert.Equal(t, "3", last[0].DecisionID)
	assert.Equal(t, "5", last[2].DecisionID)

	recent := h.Recent("BTC/USD", 10)
	require.Len(t, recent, 2)
	assert.Equal(t, "5", recent[0].DecisionID)
	assert.Equal(t, "3", recent[1].DecisionID)

	assert.Len(t, h.Recent("", 2), 2)
}
