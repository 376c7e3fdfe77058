package reflection

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(nil, append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
}

func fixture() (models.MarketSignal, models.FactAnalysis, models.SubjectivityAnalysis) {
	signal := models.MarketSignal{Symbol: "BTC/USD", Price: 80, Volume: 5000, SentimentScore: 0.5, Timestamp: now}
	fact := models.FactAnalysis{
		PriceTrend:     models.TrendBullish,
		VolumeAnalysis: models.VolumeAnalysis{VolumeSpike: true, VolumeRatio: 16.8919},
		TechnicalIndicators: map[string]float64{
			"rsi": 66.7, "bb_upper": 90, "bb_middle": 60, "bb_lower": 30, "bb_position": 0.84, "sma_5": 75, "sma_10": 70,
		},
		Confidence: 0.9,
		Reasoning:  []string{"trend up", "volume spike", "rsi neutral"},
	}
	subj := models.SubjectivityAnalysis{
		SentimentScore:   0.5,
		NarrativeThemes:  []string{"a", "b", "c", "d"},
		MarketPsychology: map[string]float64{"fear_greed_index": 40},
		Confidence:       0.7,
		Reasoning:        []string{"positive"},
	}
	return signal, fact, subj
}

func decision() *models.TradingDecision {
	return &models.TradingDecision{
		DecisionID:  "dec-1",
		Symbol:      "BTC/USD",
		Action:      models.ActionBuy,
		Confidence:  0.82,
		Quantity:    0.01,
		PriceTarget: 81.8,
		RiskAssessment: models.RiskAssessment{
			RiskScore:      0.5,
			SharpeEstimate: 2,
			RiskFactors:    []string{},
			RiskMitigation: []string{},
		},
	}
}

func TestReflectWithDecision(t *testing.T) {
	signal, fact, subj := fixture()
	d := decision()

	r := newTestEngine().Reflect(signal, fact, subj, d)

	assert.Equal(t, "dec-1", r.DecisionID)
	require.Len(t, r.ChainOfThought, 5)
	types := make([]string, 0, 5)
	for _, s := range r.ChainOfThought {
		types = append(types, s.Type)
	}
	assert.Equal(t, []string{"signal_processing", "fact_analysis", "subjectivity_analysis", "risk_assessment", "final_decision"}, types)

	step2 := r.ChainOfThought[1]
	assert.Equal(t, map[string]float64{"bb_lower": 30, "bb_middle": 60, "bb_position": 0.84}, step2.Data["key_indicators"])
	assert.Equal(t, "Technical indicators: trend up, volume spike", step2.Reasoning)
	assert.Equal(t, []string{"a", "b", "c"}, r.ChainOfThought[2].Data["dominant_themes"])
	assert.Equal(t, "Decision: BUY 0.0100 at target 81.80", r.ChainOfThought[4].Description)

	insightTypes := make([]string, 0, len(r.Insights))
	for _, in := range r.Insights {
		insightTypes = append(insightTypes, in.Type)
	}
	assert.Equal(t, []string{"alignment", "volume_confirmation", "decision_quality"}, insightTypes)
	assert.Equal(t, []string{"Volume ratio: 16.89", "Significant increase in trading activity"}, r.Insights[1].Evidence)

	assert.Equal(t, 0.82, r.ConfidenceAnalysis.OverallConfidence)
	assert.Equal(t, []string{"Strong technical signals", "Multiple technical indicators available"}, r.ConfidenceAnalysis.Factors)
	assert.Empty(t, r.ConfidenceAnalysis.Risks)

	require.NotNil(t, r.RiskReasoning)
	assert.Equal(t, "Position sized at 0.0100 based on risk tolerance", r.RiskReasoning.SizingRationale)
	assert.Equal(t, "Estimated Sharpe ratio: 2.00", r.RiskReasoning.SharpeAnalysis)

	require.Len(t, r.AlternativeScenarios, 3)
	assert.Equal(t, "If sentiment was -0.50 instead of 0.50", r.AlternativeScenarios[0].Description)
	assert.Equal(t, models.ActionSell, r.AlternativeScenarios[0].LikelyOutcome)
	assert.Equal(t, "If technical analysis showed bearish instead of bullish", r.AlternativeScenarios[1].Description)
	assert.Equal(t, models.ActionSell, r.AlternativeScenarios[1].LikelyOutcome)
	assert.Equal(t, models.ActionHold, r.AlternativeScenarios[2].LikelyOutcome)

	assert.Equal(t, []string{"Volume spikes provide important confirmation signals"}, r.LearningPoints)
	assert.Equal(t,
		"Decision dec-1: BUY BTC/USD with 82.0% confidence. Generated 3 insights through 5 reasoning steps. "+
			"Key insight: Technical analysis and sentiment are aligned",
		r.Summary)
}

func TestReflectWithoutDecision(t *testing.T) {
	signal, fact, subj := fixture()
	fact.PriceTrend = models.TrendNeutral
	fact.VolumeAnalysis = models.VolumeAnalysis{}
	fact.TechnicalIndicators = map[string]float64{}
	fact.Confidence = 0.3
	subj.MarketPsychology["fear_greed_index"] = 80

	r := newTestEngine().Reflect(signal, fact, subj, nil)

	assert.Equal(t, models.NoDecisionID, r.DecisionID)
	require.Len(t, r.ChainOfThought, 4)
	last := r.ChainOfThought[3]
	assert.Equal(t, "no_decision", last.Type)
	assert.Equal(t, 5, last.Step)
	assert.Nil(t, r.RiskReasoning)
	assert.Equal(t, 0.0, r.ConfidenceAnalysis.OverallConfidence)
	assert.Equal(t, []string{"Large confidence gap between agents", "Low confidence from one or more agents"}, r.ConfidenceAnalysis.Risks)

	require.Len(t, r.Insights, 2)
	assert.Equal(t, "divergence", r.Insights[0].Type)
	assert.Equal(t, []string{"Fear & Greed Index: 80", "Contrarian signals may be emerging"}, r.Insights[1].Evidence)

	assert.Equal(t, models.ActionBuy, r.AlternativeScenarios[1].LikelyOutcome)
	assert.Equal(t, []string{"Need more technical indicators for better analysis"}, r.LearningPoints)
	assert.True(t, strings.HasPrefix(r.Summary,
		"Decision no_decision: No action taken for BTC/USD. Risk management prevented execution. Generated 2 insights."))
}

func TestReflectDoesNotMutateInputs(t *testing.T) {
	signal, fact, subj := fixture()
	d := decision()
	before := *d

	newTestEngine().Reflect(signal, fact, subj, d)

	assert.Equal(t, before, *d)
	assert.NotContains(t, d.Reasoning, models.ReasoningReflection)
	assert.Equal(t, []string{"a", "b", "c", "d"}, subj.NarrativeThemes)
}

func TestReflectLearningPoints(t *testing.T) {
	signal, fact, subj := fixture()
	fact.VolumeAnalysis.VolumeSpike = false
	fact.Confidence = 0.2
	subj.SentimentScore = -0.9
	d := decision()
	d.Confidence = 0.55

	r := newTestEngine().Reflect(signal, fact, subj, d)

	assert.Equal(t, []string{
		"Low confidence decisions should be avoided or position sizes reduced",
		"Large confidence gaps between agents indicate uncertainty",
		"Extreme sentiment levels may indicate reversal opportunities",
	}, r.LearningPoints)
	assert.Equal(t, "If sentiment was 0.90 instead of -0.90", r.AlternativeScenarios[0].Description)
	assert.Equal(t, models.ActionBuy, r.AlternativeScenarios[0].LikelyOutcome)
}

func TestReflectBatch(t *testing.T) {
	e := newTestEngine()

	empty := e.ReflectBatch(nil)
	assert.Equal(t, 0, empty.DecisionCount)
	assert.Empty(t, empty.ImprovementSuggestions)
	assert.Equal(t, "1772366400", empty.BatchID)

	var ds []*models.TradingDecision
	for i := 0; i < 12; i++ {
		action := models.ActionBuy
		if i%3 == 0 {
			action = models.ActionSell
		}
		ds = append(ds, &models.TradingDecision{Action: action, Confidence: 0.5})
	}

	b := e.ReflectBatch(ds)

	assert.Equal(t, 10, b.DecisionCount)
	assert.Equal(t, map[models.Action]int{models.ActionBuy: 7, models.ActionSell: 3}, b.Patterns.ActionDistribution)
	assert.InDelta(t, 0.5, b.Patterns.AverageConfidence, 1e-12)
	assert.Equal(t, []string{"Average confidence is low - may need better signal quality"}, b.PerformanceInsights)
	assert.Len(t, b.ImprovementSuggestions, 3)
}

func TestReflectBatchHoldHeavy(t *testing.T) {
	e := newTestEngine(WithBatchSize(4))
	ds := []*models.TradingDecision{
		{Action: models.ActionBuy, Confidence: 0.9},
		{Action: models.ActionHold, Confidence: 0.9},
		{Action: models.ActionHold, Confidence: 0.9},
		{Action: models.ActionHold, Confidence: 0.9},
		{Action: models.ActionHold, Confidence: 0.9},
	}

	b := e.ReflectBatch(ds)

	assert.Equal(t, 4, b.DecisionCount)
	assert.Equal(t, []string{"High percentage of hold decisions - may be too conservative"}, b.PerformanceInsights)
}
