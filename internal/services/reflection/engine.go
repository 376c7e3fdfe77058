package reflection

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/logger"
)

const DefaultBatchSize = 10

// Engine explains decision cycles. It reads its inputs and never mutates them.
type Engine struct {
	batchSize int
	now       func() time.Time
	log       *logger.Logger
}

var _ service.Reflector = (*Engine)(nil)

type Option func(*Engine)

func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		batchSize: DefaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With(logger.String("component", "reflection")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reflect builds the explanation for one cycle. decision is nil when the
// cycle was rejected.
func (e *Engine) Reflect(signal models.MarketSignal, fact models.FactAnalysis, subj models.SubjectivityAnalysis, decision *models.TradingDecision) models.Reflection {
	now := e.now()
	r := models.Reflection{
		DecisionID:           models.NoDecisionID,
		Symbol:               signal.Symbol,
		Timestamp:            now,
		ChainOfThought:       chainOfThought(signal, fact, subj, decision),
		Insights:             insights(fact, subj, decision, now),
		ConfidenceAnalysis:   confidenceAnalysis(fact, subj, decision),
		AlternativeScenarios: scenarios(fact, subj),
		LearningPoints:       learningPoints(fact, subj, decision),
	}
	if decision != nil {
		r.DecisionID = decision.DecisionID
		r.RiskReasoning = riskReasoning(decision)
	}
	r.Summary = summary(r, decision)

	e.log.Debug("reflection completed",
		logger.String("symbol", signal.Symbol),
		logger.Int("insights", len(r.Insights)),
		logger.Int("chain_length", len(r.ChainOfThought)),
	)
	return r
}

func chainOfThought(signal models.MarketSignal, fact models.FactAnalysis, subj models.SubjectivityAnalysis, d *models.TradingDecision) []models.ReasoningStep {
	chain := []models.ReasoningStep{
		{
			Step:        1,
			Type:        "signal_processing",
			Description: "Received market signal for " + signal.Symbol,
			Data: map[string]interface{}{
				"price":           signal.Price,
				"volume":          signal.Volume,
				"sentiment_score": signal.SentimentScore,
				"timestamp":       signal.Timestamp.Format(time.RFC3339Nano),
			},
			Reasoning: "Processing incoming market data and sentiment signals",
		},
		{
			Step:        2,
			Type:        "fact_analysis",
			Description: fmt.Sprintf("Technical analysis shows %s trend", fact.PriceTrend),
			Data: map[string]interface{}{
				"price_trend":    fact.PriceTrend,
				"confidence":     fact.Confidence,
				"key_indicators": keyIndicators(fact.TechnicalIndicators, 3),
			},
			Reasoning: "Technical indicators: " + strings.Join(head(fact.Reasoning, 2), ", "),
		},
		{
			Step:        3,
			Type:        "subjectivity_analysis",
			Description: fmt.Sprintf("Sentiment analysis reveals %.2f sentiment score", subj.SentimentScore),
			Data: map[string]interface{}{
				"sentiment_score": subj.SentimentScore,
				"confidence":      subj.Confidence,
				"dominant_themes": head(subj.NarrativeThemes, 3),
			},
			Reasoning: "Sentiment factors: " + strings.Join(head(subj.Reasoning, 2), ", "),
		},
	}

	if d == nil {
		return append(chain, models.ReasoningStep{
			Step:        5,
			Type:        "no_decision",
			Description: "No trading action taken",
			Data:        map[string]interface{}{"reason": "Failed risk gates or insufficient confidence"},
			Reasoning:   "Risk management prevented trade execution",
		})
	}

	return append(chain,
		models.ReasoningStep{
			Step:        4,
			Type:        "risk_assessment",
			Description: fmt.Sprintf("Risk analysis for %s decision", d.Action),
			Data: map[string]interface{}{
				"risk_score":      d.RiskAssessment.RiskScore,
				"sharpe_estimate": d.RiskAssessment.SharpeEstimate,
				"risk_factors":    d.RiskAssessment.RiskFactors,
			},
			Reasoning: fmt.Sprintf("Risk considerations led to %s with %.2f confidence", d.Action, d.Confidence),
		},
		models.ReasoningStep{
			Step:        5,
			Type:        "final_decision",
			Description: fmt.Sprintf("Decision: %s %.4f at target %.2f", strings.ToUpper(string(d.Action)), d.Quantity, d.PriceTarget),
			Data: map[string]interface{}{
				"action":       d.Action,
				"quantity":     d.Quantity,
				"price_target": d.PriceTarget,
				"confidence":   d.Confidence,
			},
			Reasoning: "Bayesian voting combined with risk gates produced final trading decision",
		},
	)
}

func insights(fact models.FactAnalysis, subj models.SubjectivityAnalysis, d *models.TradingDecision, now time.Time) []models.Insight {
	trendEvidence := []string{
		fmt.Sprintf("Technical trend: %s", fact.PriceTrend),
		fmt.Sprintf("Sentiment score: %.2f", subj.SentimentScore),
	}

	var out []models.Insight
	if (fact.PriceTrend == models.TrendBullish) == (subj.SentimentScore > 0.1) {
		out = append(out, models.Insight{
			Type:       "alignment",
			Desc:       "Technical analysis and sentiment are aligned",
			Confidence: 0.8,
			Evidence:   trendEvidence,
			Timestamp:  now,
		})
	} else {
		out = append(out, models.Insight{
			Type:       "divergence",
			Desc:       "Technical analysis and sentiment are diverging",
			Confidence: 0.7,
			Evidence:   trendEvidence,
			Timestamp:  now,
		})
	}

	if fact.VolumeAnalysis.VolumeSpike {
		out = append(out, models.Insight{
			Type:       "volume_confirmation",
			Desc:       "Volume spike confirms price movement",
			Confidence: 0.9,
			Evidence: []string{
				fmt.Sprintf("Volume ratio: %.2f", fact.VolumeAnalysis.VolumeRatio),
				"Significant increase in trading activity",
			},
			Timestamp: now,
		})
	}

	switch fg := subj.FearGreed(); {
	case fg > 75:
		out = append(out, models.Insight{
			Type:       "market_psychology",
			Desc:       "Market showing extreme greed - potential reversal risk",
			Confidence: 0.6,
			Evidence:   []string{fmt.Sprintf("Fear & Greed Index: %g", fg), "Contrarian signals may be emerging"},
			Timestamp:  now,
		})
	case fg < 25:
		out = append(out, models.Insight{
			Type:       "market_psychology",
			Desc:       "Market showing extreme fear - potential buying opportunity",
			Confidence: 0.6,
			Evidence:   []string{fmt.Sprintf("Fear & Greed Index: %g", fg), "Oversold conditions may present value"},
			Timestamp:  now,
		})
	}

	if d != nil && d.Confidence > 0.8 {
		out = append(out, models.Insight{
			Type:       "decision_quality",
			Desc:       "High confidence decision with strong signal alignment",
			Confidence: d.Confidence,
			Evidence: []string{
				fmt.Sprintf("Decision confidence: %.2f", d.Confidence),
				fmt.Sprintf("Action: %s", d.Action),
				"Multiple indicators supporting decision",
			},
			Timestamp: now,
		})
	}
	return out
}

func confidenceAnalysis(fact models.FactAnalysis, subj models.SubjectivityAnalysis, d *models.TradingDecision) models.ConfidenceAnalysis {
	ca := models.ConfidenceAnalysis{
		FactConfidence:         fact.Confidence,
		SubjectivityConfidence: subj.Confidence,
		Factors:                []string{},
		Risks:                  []string{},
	}
	if d != nil {
		ca.OverallConfidence = d.Confidence
	}

	if fact.Confidence > 0.7 {
		ca.Factors = append(ca.Factors, "Strong technical signals")
	}
	if subj.Confidence > 0.7 {
		ca.Factors = append(ca.Factors, "Clear sentiment direction")
	}
	if len(fact.TechnicalIndicators) > 5 {
		ca.Factors = append(ca.Factors, "Multiple technical indicators available")
	}

	if math.Abs(fact.Confidence-subj.Confidence) > 0.3 {
		ca.Risks = append(ca.Risks, "Large confidence gap between agents")
	}
	if fact.Confidence < 0.5 || subj.Confidence < 0.5 {
		ca.Risks = append(ca.Risks, "Low confidence from one or more agents")
	}
	return ca
}

func riskReasoning(d *models.TradingDecision) *models.RiskReasoning {
	return &models.RiskReasoning{
		RiskScore:       d.RiskAssessment.RiskScore,
		RiskFactors:     d.RiskAssessment.RiskFactors,
		RiskMitigation:  d.RiskAssessment.RiskMitigation,
		SizingRationale: fmt.Sprintf("Position sized at %.4f based on risk tolerance", d.Quantity),
		SharpeAnalysis:  fmt.Sprintf("Estimated Sharpe ratio: %.2f", d.RiskAssessment.SharpeEstimate),
	}
}

func scenarios(fact models.FactAnalysis, subj models.SubjectivityAnalysis) []models.Scenario {
	opposite := -subj.SentimentScore
	oppositeOutcome := models.ActionSell
	if opposite > 0.1 {
		oppositeOutcome = models.ActionBuy
	}

	altTrend, altOutcome := models.TrendBullish, models.ActionBuy
	if fact.PriceTrend == models.TrendBullish {
		altTrend, altOutcome = models.TrendBearish, models.ActionSell
	}

	return []models.Scenario{
		{
			Name:          "opposite_sentiment",
			Description:   fmt.Sprintf("If sentiment was %.2f instead of %.2f", opposite, subj.SentimentScore),
			LikelyOutcome: oppositeOutcome,
			Probability:   0.3,
			Implications:  "Would likely reverse the trading decision",
		},
		{
			Name:          "alternative_technical_trend",
			Description:   fmt.Sprintf("If technical analysis showed %s instead of %s", altTrend, fact.PriceTrend),
			LikelyOutcome: altOutcome,
			Probability:   0.2,
			Implications:  "Would create conflict between technical and sentiment signals",
		},
		{
			Name:          "high_volatility",
			Description:   "If market volatility suddenly increased significantly",
			LikelyOutcome: models.ActionHold,
			Probability:   0.4,
			Implications:  "Would trigger risk management protocols and reduce position sizes",
		},
	}
}

func learningPoints(fact models.FactAnalysis, subj models.SubjectivityAnalysis, d *models.TradingDecision) []string {
	points := []string{}
	if len(fact.TechnicalIndicators) < 3 {
		points = append(points, "Need more technical indicators for better analysis")
	}
	if d != nil && d.Confidence < 0.6 {
		points = append(points, "Low confidence decisions should be avoided or position sizes reduced")
	}
	if math.Abs(fact.Confidence-subj.Confidence) > 0.4 {
		points = append(points, "Large confidence gaps between agents indicate uncertainty")
	}
	if fact.VolumeAnalysis.VolumeSpike {
		points = append(points, "Volume spikes provide important confirmation signals")
	}
	if math.Abs(subj.SentimentScore) > 0.8 {
		points = append(points, "Extreme sentiment levels may indicate reversal opportunities")
	}
	return points
}

func summary(r models.Reflection, d *models.TradingDecision) string {
	var s string
	if d != nil {
		s = fmt.Sprintf("Decision %s: %s %s with %.1f%% confidence. Generated %d insights through %d reasoning steps.",
			r.DecisionID, strings.ToUpper(string(d.Action)), r.Symbol, d.Confidence*100, len(r.Insights), len(r.ChainOfThought))
	} else {
		s = fmt.Sprintf("Decision %s: No action taken for %s. Risk management prevented execution. Generated %d insights.",
			r.DecisionID, r.Symbol, len(r.Insights))
	}
	if len(r.Insights) > 0 {
		s += " Key insight: " + r.Insights[0].Desc
	}
	return s
}

// ReflectBatch summarises the most recent decisions, at most the configured batch size.
func (e *Engine) ReflectBatch(decisions []*models.TradingDecision) models.BatchReflection {
	now := e.now()
	b := models.BatchReflection{
		BatchID:                strconv.FormatInt(now.Unix(), 10),
		Timestamp:              now,
		PerformanceInsights:    []string{},
		ImprovementSuggestions: []string{},
	}
	if len(decisions) > e.batchSize {
		decisions = decisions[len(decisions)-e.batchSize:]
	}
	b.DecisionCount = len(decisions)
	if len(decisions) == 0 {
		return b
	}

	dist := make(map[models.Action]int)
	var total float64
	for _, d := range decisions {
		dist[d.Action]++
		total += d.Confidence
	}
	avg := total / float64(len(decisions))
	b.Patterns = models.BatchPatterns{ActionDistribution: dist, AverageConfidence: avg}

	if avg < 0.6 {
		b.PerformanceInsights = append(b.PerformanceInsights, "Average confidence is low - may need better signal quality")
	}
	if float64(dist[models.ActionHold]) > float64(len(decisions))*0.7 {
		b.PerformanceInsights = append(b.PerformanceInsights, "High percentage of hold decisions - may be too conservative")
	}
	b.ImprovementSuggestions = []string{
		"Consider adjusting agent weights based on recent performance",
		"Monitor correlation between confidence levels and actual outcomes",
		"Evaluate risk gate effectiveness",
	}

	e.log.Info("batch reflection completed",
		logger.String("batch_id", b.BatchID),
		logger.Int("decisions", b.DecisionCount),
		logger.Float64("average_confidence", avg),
	)
	return b
}

// keyIndicators returns the first n indicators in key order.
func keyIndicators(indicators map[string]float64, n int) map[string]float64 {
	keys := make([]string, 0, len(indicators))
	for k := range indicators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, n)
	for _, k := range head(keys, n) {
		out[k] = indicators[k]
	}
	return out
}

func head(xs []string, n int) []string {
	if len(xs) <= n {
		return xs
	}
	return xs[:n]
}
