package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"FinFusion/internal/domain/models"
)

func bullishFact() models.FactAnalysis {
	return models.FactAnalysis{
		PriceTrend:     models.TrendBullish,
		VolumeAnalysis: models.VolumeAnalysis{VolumeSpike: true, VolumeRatio: 16.9},
		TechnicalIndicators: map[string]float64{
			models.IndicatorRSI:        66.67,
			models.IndicatorBBPosition: 0.843,
		},
		Confidence: 0.9,
		Reasoning:  []string{"Price trend analysis shows bullish momentum"},
	}
}

func positiveSubj() models.SubjectivityAnalysis {
	return models.SubjectivityAnalysis{
		SentimentScore:   0.5,
		EmotionAnalysis:  map[string]float64{"fear": 0.1, "greed": 0.3},
		MarketPsychology: map[string]float64{"fear_greed_index": 40},
		Confidence:       0.7,
		Reasoning:        []string{"Static sentiment stance (score: 0.50)"},
	}
}

func TestFuseBullishAgreement(t *testing.T) {
	v := NewVoter(0.6, 0.4, nil)

	cs := v.Fuse(bullishFact(), positiveSubj())

	assert.Equal(t, models.ActionBuy, cs.Action)
	assert.InDelta(t, 0.6*0.8/1.1+0.4*0.6, cs.ActionProbabilities.Buy, 1e-9)
	assert.InDelta(t, 1.0, cs.ActionProbabilities.Sum(), 1e-9)
	assert.InDelta(t, 0.82, cs.Confidence, 1e-9)
	assert.InDelta(t, 0.4, cs.FactSignal.TechnicalScore, 1e-9)
	assert.Equal(t, 0.9, cs.FactSignal.Strength)
	assert.Equal(t, 0.5, cs.SubjectivitySignal.SentimentScore)
	assert.Equal(t, []string{"Price trend analysis shows bullish momentum"}, cs.Reasoning.FactReasoning)
}

func TestFactProbabilities(t *testing.T) {
	tests := []struct {
		name string
		fact models.FactAnalysis
		want models.ActionProbabilities
	}{
		{
			name: "neutral defaults",
			fact: models.FactAnalysis{PriceTrend: models.TrendNeutral},
			want: models.ActionProbabilities{Buy: 0.3, Hold: 0.4, Sell: 0.3},
		},
		{
			name: "bearish overbought with spike",
			fact: models.FactAnalysis{
				PriceTrend:          models.TrendBearish,
				VolumeAnalysis:      models.VolumeAnalysis{VolumeSpike: true},
				TechnicalIndicators: map[string]float64{models.IndicatorRSI: 80},
			},
			want: models.ActionProbabilities{Buy: 0, Hold: 0.2 / 1.1, Sell: 0.9 / 1.1},
		},
		{
			name: "bullish oversold",
			fact: models.FactAnalysis{
				PriceTrend:          models.TrendBullish,
				TechnicalIndicators: map[string]float64{models.IndicatorRSI: 20},
			},
			want: models.ActionProbabilities{Buy: 0.8, Hold: 0.2, Sell: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FactProbabilities(tt.fact)
			assert.InDelta(t, tt.want.Buy, got.Buy, 1e-9)
			assert.InDelta(t, tt.want.Hold, got.Hold, 1e-9)
			assert.InDelta(t, tt.want.Sell, got.Sell, 1e-9)
		})
	}
}

func TestSubjectivityProbabilitiesContrarian(t *testing.T) {
	greedy := models.SubjectivityAnalysis{
		SentimentScore:   0.6,
		MarketPsychology: map[string]float64{"fear_greed_index": 80},
		EmotionAnalysis:  map[string]float64{"greed": 0.6},
	}
	p := SubjectivityProbabilities(greedy)
	assert.InDelta(t, 0.5/1.1, p.Buy, 1e-9)
	assert.InDelta(t, 0.3/1.1, p.Sell, 1e-9)

	fearful := models.SubjectivityAnalysis{
		SentimentScore:   -0.6,
		MarketPsychology: map[string]float64{"fear_greed_index": 10},
		EmotionAnalysis:  map[string]float64{"fear": 0.7, "greed": 0.9},
	}
	p = SubjectivityProbabilities(fearful)
	assert.InDelta(t, 0.3/1.1, p.Buy, 1e-9)
	assert.InDelta(t, 0.5/1.1, p.Sell, 1e-9, "fear takes precedence over greed")

	assert.Equal(t, models.ActionProbabilities{Buy: 0.3, Hold: 0.4, Sell: 0.3},
		SubjectivityProbabilities(models.SubjectivityAnalysis{}), "missing fear/greed reads as 50")
}

func TestFuseProbabilitiesAlwaysNormalized(t *testing.T) {
	v := NewVoter(0.6, 0.4, nil)
	trends := []models.Trend{models.TrendBullish, models.TrendBearish, models.TrendNeutral}
	for _, trend := range trends {
		for _, rsi := range []float64{0, 20, 50, 80, 100} {
			for _, s := range []float64{-1, -0.5, 0, 0.5, 1} {
				for _, fg := range []float64{0, 10, 50, 90, 100} {
					fact := models.FactAnalysis{
						PriceTrend:          trend,
						VolumeAnalysis:      models.VolumeAnalysis{VolumeSpike: rsi > 50},
						TechnicalIndicators: map[string]float64{models.IndicatorRSI: rsi},
						Confidence:          0.5,
					}
					subj := models.SubjectivityAnalysis{
						SentimentScore:   s,
						MarketPsychology: map[string]float64{"fear_greed_index": fg},
						EmotionAnalysis:  map[string]float64{"fear": 0.6},
						Confidence:       0.5,
					}
					cs := v.Fuse(fact, subj)
					for _, p := range []models.ActionProbabilities{cs.ActionProbabilities, cs.FactSignal.Probabilities, cs.SubjectivitySignal.Probabilities} {
						assert.GreaterOrEqual(t, p.Buy, 0.0)
						assert.GreaterOrEqual(t, p.Sell, 0.0)
						assert.GreaterOrEqual(t, p.Hold, 0.0)
						assert.InDelta(t, 1.0, p.Sum(), 1e-9)
					}
					score := cs.FactSignal.TechnicalScore
					assert.True(t, score >= -1 && score <= 1)
				}
			}
		}
	}
}

func TestFuseDominantAction(t *testing.T) {
	v := NewVoter(0.5, 0.5, nil)
	fact := models.FactAnalysis{
		PriceTrend:          models.TrendNeutral,
		TechnicalIndicators: map[string]float64{models.IndicatorRSI: 20},
	}
	subj := models.SubjectivityAnalysis{SentimentScore: 0}

	cs := v.Fuse(fact, subj)

	// fact {buy 0.4, hold 0.4, sell 0.2} against subj {0.3, 0.4, 0.3}.
	assert.InDelta(t, 0.35, cs.ActionProbabilities.Buy, 1e-9)
	assert.InDelta(t, 0.4, cs.ActionProbabilities.Hold, 1e-9)
	assert.Equal(t, models.ActionHold, cs.Action)

	tied := models.ActionProbabilities{Buy: 0.4, Sell: 0.4, Hold: 0.2}
	assert.Equal(t, models.ActionBuy, tied.Dominant())
}

func TestTechnicalScore(t *testing.T) {
	tests := []struct {
		name string
		fact models.FactAnalysis
		want float64
	}{
		{"empty neutral", models.FactAnalysis{PriceTrend: models.TrendNeutral}, 0.1},
		{"rsi exactly 70 adds nothing", models.FactAnalysis{
			PriceTrend:          models.TrendNeutral,
			TechnicalIndicators: map[string]float64{models.IndicatorRSI: 70},
		}, 0},
		{"rsi exactly 30 adds nothing", models.FactAnalysis{
			PriceTrend:          models.TrendBearish,
			TechnicalIndicators: map[string]float64{models.IndicatorRSI: 30},
		}, -0.3},
		{"bearish oversold near lower band", models.FactAnalysis{
			PriceTrend:          models.TrendBearish,
			TechnicalIndicators: map[string]float64{models.IndicatorRSI: 25, models.IndicatorBBPosition: 0.1},
		}, 0},
		{"bullish zigzag", bullishFact(), 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TechnicalScore(tt.fact), 1e-9)
		})
	}
}

func TestHoldSignal(t *testing.T) {
	hs := HoldSignal()
	assert.Equal(t, models.ActionHold, hs.Action)
	assert.Equal(t, 0.0, hs.Confidence)
	assert.InDelta(t, 1.0/3, hs.ActionProbabilities.Buy, 1e-12)
}
