package analysis

import (
	"fmt"
	"math"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/services/features"
	"FinFusion/internal/services/history"
	"FinFusion/pkg/logger"
)

const (
	minTrendPoints      = 10
	minVolumePoints     = 5
	minIndicatorPoints  = 20
	richHistoryPoints   = 50
	trendThreshold      = 0.02
	volumeSpikeMultiple = 2.0
	liquidityUnit       = 1000.0
)

// Engine is the technical analysis agent. It owns per-symbol price and
// volume history; Analyze reads only that history and the signal.
type Engine struct {
	// mu keeps the price and volume series of a symbol in step.
	mu      sync.RWMutex
	prices  *history.Store
	volumes *history.Store
	log     *logger.Logger

	// beforeAnalyze runs at the start of Analyze. Tests use it to force failures.
	beforeAnalyze func(models.MarketSignal)
}

var _ service.FactAnalyzer = (*Engine)(nil)

// NewEngine keeps up to capacity price and volume points per symbol.
func NewEngine(capacity int, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		prices:  history.NewStore(capacity),
		volumes: history.NewStore(capacity),
		log:     log.With(logger.String("agent", "fact")),
	}
}

// Observe records one tick.
func (e *Engine) Observe(symbol string, price, volume float64, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices.Record(symbol, price, ts)
	e.volumes.Record(symbol, volume, ts)
}

// series returns equal-length price and volume copies for symbol.
func (e *Engine) series(symbol string) (prices, volumes []float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.Values(symbol, 0), e.volumes.Values(symbol, 0)
}

// HistoryLen returns the number of recorded prices for symbol.
func (e *Engine) HistoryLen(symbol string) int {
	return e.prices.Len(symbol)
}

// Analyze never fails. A panic anywhere in the computation yields DefaultFactAnalysis.
func (e *Engine) Analyze(signal models.MarketSignal) (out models.FactAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("fact analysis failed",
				logger.String("symbol", signal.Symbol),
				logger.Any("panic", r),
			)
			out = DefaultFactAnalysis()
		}
	}()
	if e.beforeAnalyze != nil {
		e.beforeAnalyze(signal)
	}

	prices, volumes := e.series(signal.Symbol)

	trend := priceTrend(prices)
	vol := volumeAnalysis(volumes)
	indicators := technicalIndicators(prices)

	out = models.FactAnalysis{
		PriceTrend:          trend,
		VolumeAnalysis:      vol,
		TechnicalIndicators: indicators,
		MarketStructure:     marketStructure(signal, prices),
		Confidence:          confidence(trend, vol, indicators, len(prices)),
		Reasoning:           reasoning(trend, vol, indicators),
	}

	e.log.Debug("fact analysis completed",
		logger.String("symbol", signal.Symbol),
		logger.String("price_trend", string(trend)),
		logger.Float64("confidence", out.Confidence),
		logger.Int("history", len(prices)),
	)
	return out
}

// DefaultFactAnalysis is the low-confidence neutral stance used on failure.
func DefaultFactAnalysis() models.FactAnalysis {
	return models.FactAnalysis{
		PriceTrend:          models.TrendNeutral,
		VolumeAnalysis:      models.VolumeAnalysis{},
		TechnicalIndicators: map[string]float64{},
		MarketStructure:     map[string]float64{},
		Confidence:          0.1,
		Reasoning:           []string{"Analysis failed, using default neutral stance"},
	}
}

// TrendScore weights normalised regression slopes over the last 5, 20 and
// 50 prices. Longer windows count only once enough history exists.
func TrendScore(prices []float64) float64 {
	short := features.TrailingSlope(prices, 5)
	var medium, long float64
	if len(prices) >= 20 {
		medium = features.TrailingSlope(prices, 20)
	}
	if len(prices) >= 50 {
		long = features.TrailingSlope(prices, 50)
	}
	return short*0.5 + medium*0.3 + long*0.2
}

func priceTrend(prices []float64) models.Trend {
	if len(prices) < minTrendPoints {
		return models.TrendNeutral
	}
	score := TrendScore(prices)
	switch {
	case score > trendThreshold:
		return models.TrendBullish
	case score < -trendThreshold:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}

func volumeAnalysis(volumes []float64) models.VolumeAnalysis {
	if len(volumes) < minVolumePoints {
		return models.VolumeAnalysis{}
	}
	avg := features.Mean(volumes)
	current := volumes[len(volumes)-1]

	va := models.VolumeAnalysis{
		AverageVolume: avg,
		CurrentVolume: current,
		VolumeRatio:   1.0,
	}
	if len(volumes) >= 10 {
		va.VolumeTrend = features.TrailingSlope(volumes, 10)
	}
	if avg > 0 {
		va.VolumeSpike = current > avg*volumeSpikeMultiple
		va.VolumeRatio = current / avg
	}
	return va
}

func technicalIndicators(prices []float64) map[string]float64 {
	out := map[string]float64{}
	if len(prices) < minIndicatorPoints {
		return out
	}

	for _, period := range features.SMAPeriods {
		if v, ok := features.SMA(prices, period); ok {
			out[fmt.Sprintf("sma_%d", period)] = v
		}
	}

	if len(prices) >= features.RSIPeriod {
		out[models.IndicatorRSI] = features.RSI(prices, features.RSIPeriod)
	}

	if b, ok := features.Bollinger(prices, features.BollingerPeriod, features.BollingerWidth); ok {
		out[models.IndicatorBBUpper] = b.Upper
		out[models.IndicatorBBMiddle] = b.Middle
		out[models.IndicatorBBLower] = b.Lower
		out[models.IndicatorBBPosition] = b.Position
	}

	if line, signal, hist, ok := features.MACD(prices); ok {
		out[models.IndicatorMACD] = line
		out[models.IndicatorMACDSignal] = signal
		out[models.IndicatorMACDHistogram] = hist
	}
	return out
}

func marketStructure(signal models.MarketSignal, prices []float64) map[string]float64 {
	return map[string]float64{
		"bid_ask_spread":  0.001,
		"market_depth":    signal.Volume,
		"price_impact":    0.0001,
		"liquidity_score": math.Min(signal.Volume/liquidityUnit, 1.0),
		"volatility":      features.RealizedVolatility(prices),
	}
}

func confidence(trend models.Trend, vol models.VolumeAnalysis, indicators map[string]float64, points int) float64 {
	c := 0.5
	if trend != models.TrendNeutral {
		c += 0.2
	}
	if vol.VolumeSpike {
		c += 0.1
	}
	rsi := 50.0
	if v, ok := indicators[models.IndicatorRSI]; ok {
		rsi = v
	}
	if (trend == models.TrendBullish && rsi < 70) || (trend == models.TrendBearish && rsi > 30) {
		c += 0.1
	}
	if points >= richHistoryPoints {
		c += 0.1
	}
	return math.Min(c, 1.0)
}

func reasoning(trend models.Trend, vol models.VolumeAnalysis, indicators map[string]float64) []string {
	lines := []string{fmt.Sprintf("Price trend analysis shows %s momentum", trend)}

	if vol.VolumeSpike {
		lines = append(lines, "Significant volume spike detected, indicating strong interest")
	}

	if rsi, ok := indicators[models.IndicatorRSI]; ok {
		switch {
		case rsi > 70:
			lines = append(lines, fmt.Sprintf("RSI at %.1f indicates overbought conditions", rsi))
		case rsi < 30:
			lines = append(lines, fmt.Sprintf("RSI at %.1f indicates oversold conditions", rsi))
		default:
			lines = append(lines, fmt.Sprintf("RSI at %.1f shows neutral momentum", rsi))
		}
	}

	if pos, ok := indicators[models.IndicatorBBPosition]; ok {
		switch {
		case pos > 0.8:
			lines = append(lines, "Price near upper Bollinger Band, potential resistance")
		case pos < 0.2:
			lines = append(lines, "Price near lower Bollinger Band, potential support")
		}
	}
	return lines
}
