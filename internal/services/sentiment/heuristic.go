package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/services/features"
	"FinFusion/internal/services/history"
	"FinFusion/pkg/logger"
)

// emotionOrder fixes iteration order so ties resolve the same way every time.
var emotionOrder = []string{"fear", "greed", "optimism", "pessimism", "uncertainty"}

// HeuristicAgent derives a sentiment view locally from the raw sentiment
// score, on-chain flows and recent sentiment history.
type HeuristicAgent struct {
	history *history.Store
	log     *logger.Logger

	mu     sync.Mutex
	prices map[string]pricePair

	beforeAnalyze func(models.MarketSignal)
}

// pricePair tracks the last two distinct prices seen per symbol.
type pricePair struct {
	last, prev float64
}

var _ service.SubjectivityAgent = (*HeuristicAgent)(nil)

func NewHeuristicAgent(capacity int, log *logger.Logger) *HeuristicAgent {
	if log == nil {
		log = logger.NewNop()
	}
	return &HeuristicAgent{
		history: history.NewStore(capacity),
		log:     log.With(logger.String("agent", "subjectivity")),
		prices:  make(map[string]pricePair),
	}
}

// Observe records a sentiment sample for symbol.
func (a *HeuristicAgent) Observe(symbol string, score float64, ts time.Time) {
	a.history.Record(symbol, score, ts)
}

func (a *HeuristicAgent) Analyze(_ context.Context, signal models.MarketSignal) (out models.SubjectivityAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("subjectivity analysis failed",
				logger.String("symbol", signal.Symbol),
				logger.Any("panic", r),
			)
			out = DefaultAnalysis()
		}
	}()
	if a.beforeAnalyze != nil {
		a.beforeAnalyze(signal)
	}

	score := a.combinedSentiment(signal)
	emotions := emotionAnalysis(signal.SentimentScore)
	themes := narrativeThemes(signal)
	social := socialSignals(signal.SentimentScore)

	out = models.SubjectivityAnalysis{
		SentimentScore:   score,
		EmotionAnalysis:  emotions,
		NarrativeThemes:  themes,
		SocialSignals:    social,
		MarketPsychology: marketPsychology(signal),
		Confidence:       confidence(score, emotions, social),
		Reasoning:        reasoning(signal, score, emotions, themes),
	}

	a.log.Debug("subjectivity analysis completed",
		logger.String("symbol", signal.Symbol),
		logger.Float64("sentiment_score", score),
		logger.Float64("confidence", out.Confidence),
	)
	return out
}

// DefaultAnalysis is the neutral stance used when analysis is unavailable.
func DefaultAnalysis() models.SubjectivityAnalysis {
	return models.SubjectivityAnalysis{
		SentimentScore:   0,
		EmotionAnalysis:  map[string]float64{"neutral": 1.0},
		NarrativeThemes:  []string{"uncertainty"},
		SocialSignals:    map[string]float64{},
		MarketPsychology: map[string]float64{"fear_greed_index": 50},
		Confidence:       0.1,
		Reasoning:        []string{"Analysis failed, using default neutral stance"},
	}
}

func (a *HeuristicAgent) combinedSentiment(signal models.MarketSignal) float64 {
	combined := signal.SentimentScore*0.4 +
		OnChainSentiment(signal.OnChainActivity)*0.3 +
		a.priceSentiment(signal)*0.3
	return clamp(combined, -1, 1)
}

// OnChainSentiment scores transaction activity, whale transfers and exchange flows.
func OnChainSentiment(activity models.OnChainActivity) float64 {
	if len(activity) == 0 {
		return 0
	}
	var s float64
	switch tx := activity.TransactionCount(); {
	case tx > 1000:
		s += 0.2
	case tx < 100:
		s -= 0.1
	}
	if activity.LargeTransfers() > 10 {
		s -= 0.3
	}
	in, out := activity.ExchangeInflow(), activity.ExchangeOutflow()
	switch {
	case out > in:
		s += 0.2
	case in > out:
		s -= 0.2
	}
	return s
}

// priceSentiment blends the mean of the last five sentiment samples with
// the direction of the last price change. Needs five samples.
func (a *HeuristicAgent) priceSentiment(signal models.MarketSignal) float64 {
	momentum := a.momentum(signal.Symbol, signal.Price)
	recent := a.history.Values(signal.Symbol, 5)
	if len(recent) < 5 {
		return 0
	}
	return features.Mean(recent)*0.7 + momentum*0.3
}

func (a *HeuristicAgent) momentum(symbol string, price float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	pp, seen := a.prices[symbol]
	if !seen {
		a.prices[symbol] = pricePair{last: price}
		return 0
	}
	if price != pp.last {
		pp = pricePair{last: price, prev: pp.last}
		a.prices[symbol] = pp
	}
	switch {
	case pp.prev == 0:
		return 0
	case pp.last > pp.prev:
		return 0.1
	case pp.last < pp.prev:
		return -0.1
	default:
		return 0
	}
}

func emotionAnalysis(raw float64) map[string]float64 {
	e := map[string]float64{
		"fear":        0.1,
		"greed":       0.2,
		"optimism":    0.3,
		"pessimism":   0.2,
		"uncertainty": 0.2,
	}
	switch {
	case raw > 0.5:
		e["greed"] += 0.2
		e["optimism"] += 0.2
		e["fear"] -= 0.1
	case raw < -0.5:
		e["fear"] += 0.3
		e["pessimism"] += 0.2
		e["greed"] -= 0.1
	}

	var total float64
	for _, v := range e {
		total += v
	}
	if total > 0 {
		for k, v := range e {
			e[k] = v / total
		}
	}
	return e
}

func narrativeThemes(signal models.MarketSignal) []string {
	var themes []string
	switch s := signal.SentimentScore; {
	case s > 0.3:
		themes = append(themes, "bullish_momentum", "institutional_adoption", "technological_progress")
	case s < -0.3:
		themes = append(themes, "market_correction", "regulatory_concerns", "profit_taking")
	default:
		themes = append(themes, "consolidation", "uncertainty", "range_bound")
	}

	if len(signal.OnChainActivity) > 0 {
		if netOutflow(signal.OnChainActivity) {
			themes = append(themes, "hodling_behavior")
		} else {
			themes = append(themes, "selling_pressure")
		}
	}
	if len(themes) > 5 {
		themes = themes[:5]
	}
	return themes
}

// socialSignals are fixed placeholders scaled by the raw score until a
// social feed is wired in.
func socialSignals(raw float64) map[string]float64 {
	return map[string]float64{
		"twitter_mentions":     1000,
		"reddit_sentiment":     raw,
		"discord_activity":     0.5,
		"influencer_sentiment": raw * 0.8,
		"community_engagement": 0.6,
		"viral_potential":      0.3,
	}
}

func marketPsychology(signal models.MarketSignal) map[string]float64 {
	p := map[string]float64{
		"fear_greed_index":  50,
		"fomo_level":        0.3,
		"panic_level":       0.2,
		"euphoria_level":    0.1,
		"capitulation_risk": 0.1,
	}
	switch s := signal.SentimentScore; {
	case s > 0.5:
		p["fear_greed_index"] = 70
		p["fomo_level"] = 0.6
		p["euphoria_level"] = 0.4
	case s < -0.5:
		p["fear_greed_index"] = 30
		p["panic_level"] = 0.5
		p["capitulation_risk"] = 0.3
	}
	if signal.OnChainActivity.Volatility() > 0.5 {
		p["panic_level"] += 0.2
		p["fear_greed_index"] -= 10
	}
	return p
}

func confidence(score float64, emotions, social map[string]float64) float64 {
	c := 0.5 + math.Abs(score)*0.3
	if _, v := dominantEmotion(emotions); v > 0.5 {
		c += 0.1
	}
	c += social["community_engagement"] * 0.2
	return math.Min(c, 1.0)
}

func reasoning(signal models.MarketSignal, score float64, emotions map[string]float64, themes []string) []string {
	var lines []string
	switch {
	case score > 0.3:
		lines = append(lines, fmt.Sprintf("Strong positive sentiment detected (score: %.2f)", score))
	case score < -0.3:
		lines = append(lines, fmt.Sprintf("Strong negative sentiment detected (score: %.2f)", score))
	default:
		lines = append(lines, fmt.Sprintf("Neutral sentiment observed (score: %.2f)", score))
	}

	if name, v := dominantEmotion(emotions); name != "" {
		lines = append(lines, fmt.Sprintf("Dominant market emotion: %s (%.2f)", name, v))
	}

	if len(themes) > 0 {
		lines = append(lines, "Key narrative themes: "+strings.Join(themes[:min(3, len(themes))], ", "))
	}

	if len(signal.OnChainActivity) > 0 {
		if netOutflow(signal.OnChainActivity) {
			lines = append(lines, "On-chain data shows net outflow from exchanges (bullish)")
		} else {
			lines = append(lines, "On-chain data shows net inflow to exchanges (bearish)")
		}
	}
	return lines
}

func dominantEmotion(emotions map[string]float64) (string, float64) {
	best, bestV := "", math.Inf(-1)
	for _, name := range emotionOrder {
		if v, ok := emotions[name]; ok && v > bestV {
			best, bestV = name, v
		}
	}
	if best == "" {
		for name, v := range emotions {
			if v > bestV {
				best, bestV = name, v
			}
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestV
}

func netOutflow(a models.OnChainActivity) bool {
	return a.ExchangeOutflow() > a.ExchangeInflow()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
