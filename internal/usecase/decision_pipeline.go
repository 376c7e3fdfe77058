package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/logger"
)

// Agent labels used for the processed-messages metric.
const (
	AgentFact         = "fact_agent"
	AgentSubjectivity = "subjectivity_agent"
	AgentRisk         = "risk_agent"
	AgentCombined     = "combined"
)

// Outcome is everything one decision cycle produced for a symbol.
type Outcome struct {
	Signal       models.MarketSignal
	Fact         models.FactAnalysis
	Subjectivity models.SubjectivityAnalysis
	Combined     models.CombinedSignal
	Verdict      models.Verdict
	Reflection   models.Reflection
}

// Decision returns the emitted decision, nil when the cycle was rejected.
func (o Outcome) Decision() *models.TradingDecision { return o.Verdict.Decision }

// DecisionPipeline runs analyze, sentiment, fuse, risk and reflect for one signal.
type DecisionPipeline struct {
	fact      service.FactAnalyzer
	subj      service.SubjectivityAgent
	fuser     service.SignalFuser
	risk      service.RiskEvaluator
	reflector service.Reflector
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewDecisionPipeline(
	fact service.FactAnalyzer,
	subj service.SubjectivityAgent,
	fuser service.SignalFuser,
	risk service.RiskEvaluator,
	reflector service.Reflector,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *DecisionPipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &DecisionPipeline{
		fact:      fact,
		subj:      subj,
		fuser:     fuser,
		risk:      risk,
		reflector: reflector,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Run never lets a panic escape; it is reported as an error and the cycle
// for this symbol is abandoned.
func (p *DecisionPipeline) Run(ctx context.Context, signal models.MarketSignal) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decision cycle for %s: panic: %v", signal.Symbol, r)
			out = Outcome{Signal: signal}
		}
	}()

	start := p.now()
	out.Signal = signal

	out.Fact = p.fact.Analyze(signal)
	p.metrics.RecordMessageProcessed(AgentFact)

	out.Subjectivity = p.subj.Analyze(ctx, signal)
	p.metrics.RecordMessageProcessed(AgentSubjectivity)

	out.Combined = p.fuser.Fuse(out.Fact, out.Subjectivity)
	out.Verdict = p.risk.Evaluate(signal, out.Combined)
	p.metrics.RecordMessageProcessed(AgentRisk)

	d := out.Verdict.Decision
	out.Reflection = p.reflector.Reflect(signal, out.Fact, out.Subjectivity, d)
	if d == nil {
		return out, nil
	}

	if d.Reasoning == nil {
		d.Reasoning = map[string]interface{}{}
	}
	d.Reasoning[models.ReasoningReflection] = out.Reflection
	p.metrics.RecordDecisionLatency(AgentCombined, p.now().Sub(start).Seconds())
	p.log.Info("trading decision made",
		logger.String("symbol", d.Symbol),
		logger.String("decision_id", d.DecisionID),
		logger.String("action", string(d.Action)),
		logger.Float64("confidence", d.Confidence),
		logger.String("summary", out.Reflection.Summary),
	)
	return out, nil
}
