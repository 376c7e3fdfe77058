package risk

import (
	"math"
	"time"

	"github.com/google/uuid"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/config"
	"FinFusion/pkg/logger"
)

const (
	baseRiskScore      = 0.5
	riskFreeRate       = 0.02
	returnPerTechScore = 0.1
	minVolatility      = 0.01
	lowLiquidityVolume = 1000
	targetMoveScale    = 0.05
)

// Params are the trading limits the engine enforces.
type Params struct {
	MaxPositionSize float64
	PositionLimits  map[string]float64
	SharpeThreshold float64
	Kelly           Kelly
}

// ParamsFromConfig extracts the trading section of cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		MaxPositionSize: cfg.Trading.MaxPositionSize,
		PositionLimits:  cfg.Trading.PositionLimits,
		SharpeThreshold: cfg.Trading.SharpeThreshold,
		Kelly: Kelly{
			WinProbability: cfg.Trading.Kelly.WinProbability,
			AverageWin:     cfg.Trading.Kelly.AverageWin,
			AverageLoss:    cfg.Trading.Kelly.AverageLoss,
		},
	}
}

func (p Params) limit(symbol string) float64 {
	if v, ok := p.PositionLimits[symbol]; ok && v > 0 {
		return v
	}
	return p.MaxPositionSize
}

// GateRecorder counts rejections per gate.
type GateRecorder interface {
	RecordGateRejection(gate string)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func WithGateRecorder(r GateRecorder) Option {
	return func(e *Engine) { e.gates = r }
}

// Engine assesses risk, sizes the position and gates the fused signal into
// at most one TradingDecision.
type Engine struct {
	params Params
	log    *logger.Logger
	now    func() time.Time
	newID  func() string
	gates  GateRecorder

	beforeEvaluate func(models.MarketSignal)
}

var _ service.RiskEvaluator = (*Engine)(nil)

func NewEngine(params Params, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		params: params,
		log:    log.With(logger.String("agent", "risk")),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate never panics. A failure anywhere yields a verdict rejected by
// models.GateFailure.
func (e *Engine) Evaluate(signal models.MarketSignal, combined models.CombinedSignal) (v models.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("risk evaluation failed",
				logger.String("symbol", signal.Symbol),
				logger.Any("panic", r),
			)
			v = models.Verdict{RejectedBy: models.GateFailure}
			e.recordRejection(models.GateFailure)
		}
	}()
	if e.beforeEvaluate != nil {
		e.beforeEvaluate(signal)
	}

	assessment := Assess(signal, combined)
	size := PositionSize(signal.Price, e.params.MaxPositionSize, e.params.limit(signal.Symbol), e.params.Kelly, assessment)
	v = models.Verdict{Assessment: assessment, PositionSize: size}

	if gate := checkGates(assessment, combined, e.params.SharpeThreshold); gate != models.GateNone {
		e.log.Info("trade rejected by risk gates",
			logger.String("symbol", signal.Symbol),
			logger.String("gate", string(gate)),
			logger.String("action", string(combined.Action)),
			logger.Float64("risk_score", assessment.RiskScore),
			logger.Float64("confidence", combined.Confidence),
			logger.Float64("sharpe", assessment.SharpeEstimate),
		)
		v.RejectedBy = gate
		e.recordRejection(gate)
		return v
	}

	v.Decision = &models.TradingDecision{
		DecisionID:  e.newID(),
		Symbol:      signal.Symbol,
		Action:      combined.Action,
		Confidence:  combined.Confidence,
		Quantity:    size / signal.Price,
		PriceTarget: PriceTarget(signal.Price, combined),
		Reasoning: map[string]interface{}{
			models.ReasoningFact:          combined.Reasoning.FactReasoning,
			models.ReasoningSubjectivity:  combined.Reasoning.SubjectivityReasoning,
			models.ReasoningProbabilities: combined.ActionProbabilities,
		},
		RiskAssessment: assessment,
		Timestamp:      e.now(),
	}

	e.log.Info("risk agent decision made",
		logger.String("symbol", signal.Symbol),
		logger.String("action", string(v.Decision.Action)),
		logger.Float64("confidence", v.Decision.Confidence),
		logger.Float64("quantity", v.Decision.Quantity),
	)
	return v
}

func (e *Engine) recordRejection(g models.Gate) {
	if e.gates != nil {
		e.gates.RecordGateRejection(string(g))
	}
}

// Assess scores the risk of acting on combined for signal.
func Assess(signal models.MarketSignal, combined models.CombinedSignal) models.RiskAssessment {
	a := models.RiskAssessment{
		OverallRisk:    models.RiskMedium,
		RiskScore:      baseRiskScore,
		RiskFactors:    []string{},
		RiskMitigation: []string{},
	}

	volatility := signal.OnChainActivity.Volatility()
	technical := combined.FactSignal.TechnicalScore
	sentiment := combined.SubjectivitySignal.SentimentScore

	if volatility > 0.5 {
		a.RiskFactors = append(a.RiskFactors, "High market volatility")
		a.RiskScore += 0.2
	}
	if signal.Volume < lowLiquidityVolume {
		a.RiskFactors = append(a.RiskFactors, "Low liquidity")
		a.RiskScore += 0.1
	}
	if math.Abs(sentiment) > 0.8 {
		a.RiskFactors = append(a.RiskFactors, "Extreme sentiment levels")
		a.RiskScore += 0.1
	}
	if math.Abs(technical) < 0.1 {
		a.RiskFactors = append(a.RiskFactors, "Weak technical signals")
		a.RiskScore += 0.1
	}
	if combined.Confidence < 0.5 {
		a.RiskFactors = append(a.RiskFactors, "Low confidence in analysis")
		a.RiskScore += 0.2
	}

	expected := math.Abs(technical) * returnPerTechScore
	a.SharpeEstimate = (expected - riskFreeRate) / math.Max(volatility, minVolatility)

	switch {
	case a.RiskScore > 0.7:
		a.OverallRisk = models.RiskHigh
	case a.RiskScore < 0.3:
		a.OverallRisk = models.RiskLow
	}

	if volatility > 0.5 {
		a.RiskMitigation = append(a.RiskMitigation, "Reduce position size due to volatility")
	}
	if signal.Volume < lowLiquidityVolume {
		a.RiskMitigation = append(a.RiskMitigation, "Use limit orders for better execution")
	}
	return a
}

// PriceTarget moves price in the direction of the action by an amount
// proportional to the technical and sentiment conviction.
func PriceTarget(price float64, combined models.CombinedSignal) float64 {
	move := (math.Abs(combined.FactSignal.TechnicalScore) + math.Abs(combined.SubjectivitySignal.SentimentScore)) / 2 * targetMoveScale
	switch combined.Action {
	case models.ActionBuy:
		return price * (1 + move)
	case models.ActionSell:
		return price * (1 - move)
	default:
		return price
	}
}
