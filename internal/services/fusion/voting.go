package fusion

import (
	"math"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/logger"
)

// Voter fuses the technical and sentiment views into one action distribution
// with fixed per-agent weights.
type Voter struct {
	factWeight float64
	subjWeight float64
	log        *logger.Logger
}

var _ service.SignalFuser = (*Voter)(nil)

func NewVoter(factWeight, subjWeight float64, log *logger.Logger) *Voter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Voter{
		factWeight: factWeight,
		subjWeight: subjWeight,
		log:        log.With(logger.String("component", "fusion")),
	}
}

func (v *Voter) Fuse(fact models.FactAnalysis, subj models.SubjectivityAnalysis) (out models.CombinedSignal) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("signal fusion failed", logger.Any("panic", r))
			out = HoldSignal()
		}
	}()

	fp := FactProbabilities(fact)
	sp := SubjectivityProbabilities(subj)

	combined := models.ActionProbabilities{
		Buy:  fp.Buy*v.factWeight + sp.Buy*v.subjWeight,
		Sell: fp.Sell*v.factWeight + sp.Sell*v.subjWeight,
		Hold: fp.Hold*v.factWeight + sp.Hold*v.subjWeight,
	}.Normalize()

	return models.CombinedSignal{
		Action:              combined.Dominant(),
		ActionProbabilities: combined,
		Confidence:          fact.Confidence*v.factWeight + subj.Confidence*v.subjWeight,
		FactSignal: models.FactSignal{
			Probabilities:  fp,
			Strength:       fact.Confidence,
			TechnicalScore: TechnicalScore(fact),
		},
		SubjectivitySignal: models.SubjectivitySignal{
			Probabilities:  sp,
			Strength:       subj.Confidence,
			SentimentScore: subj.SentimentScore,
		},
		Reasoning: models.SignalReasoning{
			FactReasoning:         fact.Reasoning,
			SubjectivityReasoning: subj.Reasoning,
		},
	}
}

// HoldSignal is the uniform, zero-confidence signal produced when fusion fails.
func HoldSignal() models.CombinedSignal {
	return models.CombinedSignal{
		Action:              models.ActionHold,
		ActionProbabilities: models.ActionProbabilities{}.Normalize(),
		Reasoning: models.SignalReasoning{
			FactReasoning:         []string{},
			SubjectivityReasoning: []string{},
		},
	}
}

// FactProbabilities maps trend, RSI and volume spikes to an action distribution.
func FactProbabilities(fact models.FactAnalysis) models.ActionProbabilities {
	var p models.ActionProbabilities
	switch fact.PriceTrend {
	case models.TrendBullish:
		p = models.ActionProbabilities{Buy: 0.7, Hold: 0.2, Sell: 0.1}
	case models.TrendBearish:
		p = models.ActionProbabilities{Buy: 0.1, Hold: 0.2, Sell: 0.7}
	default:
		p = models.ActionProbabilities{Buy: 0.3, Hold: 0.4, Sell: 0.3}
	}

	switch rsi := fact.Indicator(models.IndicatorRSI, 50); {
	case rsi > 70:
		p.Sell += 0.1
		p.Buy -= 0.1
	case rsi < 30:
		p.Buy += 0.1
		p.Sell -= 0.1
	}

	if fact.VolumeAnalysis.VolumeSpike {
		switch fact.PriceTrend {
		case models.TrendBullish:
			p.Buy += 0.1
		case models.TrendBearish:
			p.Sell += 0.1
		}
	}
	return p.Normalize()
}

// SubjectivityProbabilities maps sentiment, the fear/greed index and
// dominant emotions to an action distribution. Extreme fear/greed readings
// are treated as contrarian.
func SubjectivityProbabilities(subj models.SubjectivityAnalysis) models.ActionProbabilities {
	var p models.ActionProbabilities
	switch s := subj.SentimentScore; {
	case s > 0.3:
		p = models.ActionProbabilities{Buy: 0.6, Hold: 0.3, Sell: 0.1}
	case s < -0.3:
		p = models.ActionProbabilities{Buy: 0.1, Hold: 0.3, Sell: 0.6}
	default:
		p = models.ActionProbabilities{Buy: 0.3, Hold: 0.4, Sell: 0.3}
	}

	switch fg := subj.FearGreed(); {
	case fg > 75:
		p.Sell += 0.2
		p.Buy -= 0.2
	case fg < 25:
		p.Buy += 0.2
		p.Sell -= 0.2
	}

	if subj.Emotion("fear") > 0.5 {
		p.Sell += 0.1
	} else if subj.Emotion("greed") > 0.5 {
		p.Buy += 0.1
	}
	return p.Normalize()
}

// TechnicalScore condenses the technical view into [-1, 1].
func TechnicalScore(fact models.FactAnalysis) float64 {
	var score float64
	switch fact.PriceTrend {
	case models.TrendBullish:
		score += 0.3
	case models.TrendBearish:
		score -= 0.3
	}

	switch rsi := fact.Indicator(models.IndicatorRSI, 50); {
	case rsi < 30:
		score += 0.2
	case rsi > 70:
		score -= 0.2
	case rsi > 30 && rsi < 70:
		score += 0.1
	}

	if fact.VolumeAnalysis.VolumeSpike {
		score += 0.1
	}

	if pos, ok := fact.TechnicalIndicators[models.IndicatorBBPosition]; ok {
		switch {
		case pos < 0.2:
			score += 0.1
		case pos > 0.8:
			score -= 0.1
		}
	}
	return math.Max(-1, math.Min(1, score))
}
