package models

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

type VolumeAnalysis struct {
	AverageVolume float64 `json:"average_volume"`
	CurrentVolume float64 `json:"current_volume"`
	VolumeTrend   float64 `json:"volume_trend"`
	VolumeSpike   bool    `json:"volume_spike"`
	VolumeRatio   float64 `json:"volume_ratio"`
}

// Indicator keys.
const (
	IndicatorRSI           = "rsi"
	IndicatorBBUpper       = "bb_upper"
	IndicatorBBMiddle      = "bb_middle"
	IndicatorBBLower       = "bb_lower"
	IndicatorBBPosition    = "bb_position"
	IndicatorMACD          = "macd"
	IndicatorMACDSignal    = "macd_signal"
	IndicatorMACDHistogram = "macd_histogram"
)

// FactAnalysis is the technical view of one symbol for one decision cycle.
// Indicators absent for lack of history are omitted, never zero.
type FactAnalysis struct {
	PriceTrend          Trend              `json:"price_trend"`
	VolumeAnalysis      VolumeAnalysis     `json:"volume_analysis"`
	TechnicalIndicators map[string]float64 `json:"technical_indicators"`
	MarketStructure     map[string]float64 `json:"market_structure"`
	Confidence          float64            `json:"confidence"`
	Reasoning           []string           `json:"reasoning"`
}

// Indicator returns the named indicator or def when it was not computed.
func (f FactAnalysis) Indicator(key string, def float64) float64 {
	if v, ok := f.TechnicalIndicators[key]; ok {
		return v
	}
	return def
}

// SubjectivityAnalysis is the sentiment view supplied by the sentiment collaborator.
type SubjectivityAnalysis struct {
	SentimentScore   float64            `json:"sentiment_score"`
	EmotionAnalysis  map[string]float64 `json:"emotion_analysis"`
	NarrativeThemes  []string           `json:"narrative_themes"`
	SocialSignals    map[string]float64 `json:"social_signals"`
	MarketPsychology map[string]float64 `json:"market_psychology"`
	Confidence       float64            `json:"confidence"`
	Reasoning        []string           `json:"reasoning"`
}

// FearGreed returns market_psychology.fear_greed_index, 50 when absent.
func (s SubjectivityAnalysis) FearGreed() float64 {
	if v, ok := s.MarketPsychology["fear_greed_index"]; ok {
		return v
	}
	return 50
}

func (s SubjectivityAnalysis) Emotion(name string) float64 {
	return s.EmotionAnalysis[name]
}

// ActionProbabilities is a distribution over buy, sell and hold.
type ActionProbabilities struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
	Hold float64 `json:"hold"`
}

func (p ActionProbabilities) Sum() float64 { return p.Buy + p.Sell + p.Hold }

func (p ActionProbabilities) Get(a Action) float64 {
	switch a {
	case ActionBuy:
		return p.Buy
	case ActionSell:
		return p.Sell
	default:
		return p.Hold
	}
}

// Normalize clamps negatives to zero and rescales to sum to 1.
// An all-zero vector becomes uniform.
func (p ActionProbabilities) Normalize() ActionProbabilities {
	p.Buy = max(p.Buy, 0)
	p.Sell = max(p.Sell, 0)
	p.Hold = max(p.Hold, 0)
	total := p.Sum()
	if total <= 0 {
		return ActionProbabilities{Buy: 1.0 / 3, Sell: 1.0 / 3, Hold: 1.0 / 3}
	}
	return ActionProbabilities{Buy: p.Buy / total, Sell: p.Sell / total, Hold: p.Hold / total}
}

// Dominant scans buy, sell, hold and returns the first maximum.
func (p ActionProbabilities) Dominant() Action {
	best, bestP := ActionBuy, p.Buy
	if p.Sell > bestP {
		best, bestP = ActionSell, p.Sell
	}
	if p.Hold > bestP {
		best = ActionHold
	}
	return best
}

type FactSignal struct {
	Probabilities  ActionProbabilities `json:"probabilities"`
	Strength       float64             `json:"strength"`
	TechnicalScore float64             `json:"technical_score"`
}

type SubjectivitySignal struct {
	Probabilities  ActionProbabilities `json:"probabilities"`
	Strength       float64             `json:"strength"`
	SentimentScore float64             `json:"sentiment_score"`
}

type SignalReasoning struct {
	FactReasoning         []string `json:"fact_reasoning"`
	SubjectivityReasoning []string `json:"subjectivity_reasoning"`
}

// CombinedSignal is the fused action for one decision cycle.
type CombinedSignal struct {
	Action              Action              `json:"action"`
	ActionProbabilities ActionProbabilities `json:"action_probabilities"`
	Confidence          float64             `json:"confidence"`
	FactSignal          FactSignal          `json:"fact_signal"`
	SubjectivitySignal  SubjectivitySignal  `json:"subjectivity_signal"`
	Reasoning           SignalReasoning     `json:"reasoning"`
}
