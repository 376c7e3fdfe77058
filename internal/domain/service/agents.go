package service

import (
	"context"
	"time"

	"FinFusion/internal/domain/models"
)

// FactAnalyzer produces the technical view from its own price and volume history.
type FactAnalyzer interface {
	Observe(symbol string, price, volume float64, ts time.Time)
	Analyze(signal models.MarketSignal) models.FactAnalysis
}

// SubjectivityAgent produces the sentiment view. Implementations never fail;
// they fall back to a low-confidence neutral analysis.
type SubjectivityAgent interface {
	Observe(symbol string, score float64, ts time.Time)
	Analyze(ctx context.Context, signal models.MarketSignal) models.SubjectivityAnalysis
}

type SignalFuser interface {
	Fuse(fact models.FactAnalysis, subj models.SubjectivityAnalysis) models.CombinedSignal
}

type RiskEvaluator interface {
	Evaluate(signal models.MarketSignal, combined models.CombinedSignal) models.Verdict
}

type Reflector interface {
	Reflect(signal models.MarketSignal, fact models.FactAnalysis, subj models.SubjectivityAnalysis, decision *models.TradingDecision) models.Reflection
	ReflectBatch(decisions []*models.TradingDecision) models.BatchReflection
}
