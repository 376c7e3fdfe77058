package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
)

// zigzag rises 10 and falls 5 alternately from 20, ending at 80.
func zigzag() []float64 {
	prices := []float64{20}
	for i := 0; i < 24; i++ {
		step := 10.0
		if i%2 == 1 {
			step = -5
		}
		prices = append(prices, prices[len(prices)-1]+step)
	}
	return prices
}

func feed(e *Engine, symbol string, prices, volumes []float64) models.MarketSignal {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range prices {
		e.Observe(symbol, prices[i], volumes[i], t0.Add(time.Duration(i)*time.Second))
	}
	last := len(prices) - 1
	return models.MarketSignal{
		Symbol:    symbol,
		Price:     prices[last],
		Volume:    volumes[last],
		Timestamp: t0.Add(time.Duration(last) * time.Second),
	}
}

func flatVolumes(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAnalyzeBullishWithSpike(t *testing.T) {
	e := NewEngine(200, nil)
	volumes := append(flatVolumes(24, 100), 5000)
	signal := feed(e, "BTC/USD", zigzag(), volumes)

	fa := e.Analyze(signal)

	assert.Equal(t, models.TrendBullish, fa.PriceTrend)
	assert.True(t, fa.VolumeAnalysis.VolumeSpike)
	assert.InDelta(t, 296, fa.VolumeAnalysis.AverageVolume, 1e-9)
	assert.InDelta(t, 5000.0/296, fa.VolumeAnalysis.VolumeRatio, 1e-9)
	assert.InDelta(t, 66.6667, fa.TechnicalIndicators["rsi"], 1e-3)
	assert.InDelta(t, 0.842997, fa.TechnicalIndicators["bb_position"], 1e-5)
	assert.InDelta(t, 60, fa.TechnicalIndicators["bb_middle"], 1e-9)
	assert.Contains(t, fa.TechnicalIndicators, "sma_20")
	assert.NotContains(t, fa.TechnicalIndicators, "sma_50")
	assert.NotContains(t, fa.TechnicalIndicators, "macd", "macd needs 26 points")
	assert.InDelta(t, 0.9, fa.Confidence, 1e-9)
	assert.Equal(t, []string{
		"Price trend analysis shows bullish momentum",
		"Significant volume spike detected, indicating strong interest",
		"RSI at 66.7 shows neutral momentum",
		"Price near upper Bollinger Band, potential resistance",
	}, fa.Reasoning)
}

func TestAnalyzeSteadyRiseIsNotEnoughForBullish(t *testing.T) {
	e := NewEngine(200, nil)
	var prices []float64
	for p := 100.0; p < 125; p++ {
		prices = append(prices, p)
	}
	fa := e.Analyze(feed(e, "ETH/USD", prices, flatVolumes(25, 1500)))

	assert.Equal(t, models.TrendNeutral, fa.PriceTrend)
	assert.Equal(t, 100.0, fa.TechnicalIndicators["rsi"])
	assert.Contains(t, fa.Reasoning, "RSI at 100.0 indicates overbought conditions")
	assert.InDelta(t, 0.5, fa.Confidence, 1e-9)
}

func TestAnalyzeShortHistory(t *testing.T) {
	e := NewEngine(200, nil)
	prices := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18}
	fa := e.Analyze(feed(e, "SOL/USD", prices, flatVolumes(9, 2000)))

	assert.Equal(t, models.TrendNeutral, fa.PriceTrend)
	assert.Empty(t, fa.TechnicalIndicators)
	assert.Equal(t, 0.0, fa.MarketStructure["volatility"])
	assert.Equal(t, 1.0, fa.MarketStructure["liquidity_score"])
	assert.Equal(t, 2000.0, fa.MarketStructure["market_depth"])
	assert.False(t, fa.VolumeAnalysis.VolumeSpike)
	assert.Equal(t, []string{"Price trend analysis shows neutral momentum"}, fa.Reasoning)
}

func TestAnalyzeVolumeNeedsFivePoints(t *testing.T) {
	e := NewEngine(200, nil)
	fa := e.Analyze(feed(e, "SOL/USD", []float64{1, 2, 3, 4}, []float64{10, 10, 10, 900}))

	assert.Equal(t, models.VolumeAnalysis{}, fa.VolumeAnalysis)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	e := NewEngine(200, nil)
	signal := feed(e, "BTC/USD", zigzag(), append(flatVolumes(24, 100), 5000))

	first := e.Analyze(signal)
	second := e.Analyze(signal)

	assert.Equal(t, first, second)
	assert.Equal(t, 25, e.HistoryLen("BTC/USD"))
}

func TestAnalyzeRichHistoryBonus(t *testing.T) {
	e := NewEngine(200, nil)
	prices := make([]float64, 0, 60)
	for i := 0; i < 60; i++ {
		prices = append(prices, 100)
	}
	fa := e.Analyze(feed(e, "BTC/USD", prices, flatVolumes(60, 1000)))

	assert.Equal(t, models.TrendNeutral, fa.PriceTrend)
	assert.InDelta(t, 0.6, fa.Confidence, 1e-9)
	assert.Contains(t, fa.TechnicalIndicators, "sma_50")
	assert.Contains(t, fa.TechnicalIndicators, "macd")
	assert.Equal(t, 0.5, fa.TechnicalIndicators["bb_position"])
}

func TestAnalyzeRecoversToDefault(t *testing.T) {
	e := NewEngine(200, nil)
	e.beforeAnalyze = func(models.MarketSignal) { panic("boom") }

	fa := e.Analyze(models.MarketSignal{Symbol: "BTC/USD"})

	require.Equal(t, DefaultFactAnalysis(), fa)
	assert.Equal(t, 0.1, fa.Confidence)
	assert.Equal(t, []string{"Analysis failed, using default neutral stance"}, fa.Reasoning)
}

func TestTrendScoreBearish(t *testing.T) {
	prices := zigzag()
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	assert.Equal(t, models.TrendBearish, priceTrend(prices))
}

func TestSeriesStayAlignedUnderConcurrentObserve(t *testing.T) {
	e := NewEngine(200, nil)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= 2000; i++ {
			v := float64(i)
			e.Observe("BTC/USD", v, v, t0.Add(time.Duration(i)*time.Second))
		}
	}()

	for {
		prices, volumes := e.series("BTC/USD")
		require.Equal(t, len(prices), len(volumes))
		if n := len(prices); n > 0 {
			require.Equal(t, prices[n-1], volumes[n-1])
			require.Equal(t, prices[0], volumes[0])
		}
		select {
		case <-done:
			prices, volumes = e.series("BTC/USD")
			assert.Len(t, prices, 200)
			assert.Equal(t, prices, volumes)
			return
		default:
		}
	}
}
