package models

import (
	"strings"
	"time"
)

// OnChainActivity holds numeric on-chain metrics for a symbol. Known keys
// have typed accessors; unknown keys are kept as delivered.
type OnChainActivity map[string]float64

const (
	OnChainTransactionCount = "transaction_count"
	OnChainLargeTransfers   = "large_transfers"
	OnChainExchangeInflow   = "exchange_inflow"
	OnChainExchangeOutflow  = "exchange_outflow"
	OnChainVolatility       = "volatility"
)

func (a OnChainActivity) get(key string) float64 {
	if a == nil {
		return 0
	}
	return a[key]
}

func (a OnChainActivity) TransactionCount() float64 { return a.get(OnChainTransactionCount) }
func (a OnChainActivity) LargeTransfers() float64 { return a.get(OnChainLargeTransfers) }
func (a OnChainActivity) ExchangeInflow() float64 { return a.get(OnChainExchangeInflow) }
func (a OnChainActivity) ExchangeOutflow() float64 { return a.get(OnChainExchangeOutflow) }
func (a OnChainActivity) Volatility() float64 { return a.get(OnChainVolatility) }

// Clone returns an independent copy. A nil map clones to nil.
func (a OnChainActivity) Clone() OnChainActivity {
	if a == nil {
		return nil
	}
	out := make(OnChainActivity, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// symbolAliases maps exchange spellings onto the canonical BASE/QUOTE form.
var symbolAliases = map[string]string{
	"BTCUSDT": "BTC/USD",
	"BTC-USD": "BTC/USD",
	"ETHUSDT": "ETH/USD",
	"ETH-USD": "ETH/USD",
	"SOLUSDT": "SOL/USD",
	"SOL-USD": "SOL/USD",
}

// NormalizeSymbol upper-cases s and folds known exchange aliases, so
// BTCUSDT, btc-usd and BTC/USD all key the same signal.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if canonical, ok := symbolAliases[s]; ok {
		return canonical
	}
	return s
}

// MarketSignal is the latest merged view of one symbol. A price tick
// replaces it; sentiment and on-chain updates merge into it.
type MarketSignal struct {
	Symbol          string          `json:"symbol"`
	Price           float64         `json:"price"`
	Volume          float64         `json:"volume"`
	SentimentScore  float64         `json:"sentiment_score"`
	OnChainActivity OnChainActivity `json:"on_chain_activity"`
	Timestamp       time.Time       `json:"timestamp"`
	Source          string          `json:"source"`
}

// IsReady reports whether the signal may enter a decision cycle: sentiment
// has been set, on-chain data is present and the tick is younger than freshness.
// A sentiment of exactly zero reads as "not set".
func (s MarketSignal) IsReady(now time.Time, freshness time.Duration) bool {
	return s.SentimentScore != 0 &&
		len(s.OnChainActivity) > 0 &&
		now.Sub(s.Timestamp) < freshness
}

// Clone returns a copy that shares no mutable state with s.
func (s MarketSignal) Clone() MarketSignal {
	s.OnChainActivity = s.OnChainActivity.Clone()
	return s
}
