package risk

import "FinFusion/internal/domain/models"

const (
	maxRiskScore       = 0.8
	minConfidence      = 0.5
	sharpeFloor        = 0.5
	minTradeConfidence = 0.6
)

// checkGates applies the gates in order and returns the first that fails,
// or models.GateNone when the trade may proceed.
func checkGates(a models.RiskAssessment, combined models.CombinedSignal, sharpeThreshold float64) models.Gate {
	switch {
	case a.RiskScore > maxRiskScore:
		return models.GateRiskScore
	case combined.Confidence < minConfidence:
		return models.GateConfidence
	case a.SharpeEstimate < sharpeFloor:
		return models.GateSharpeFloor
	case a.SharpeEstimate < sharpeThreshold:
		return models.GateSharpeThreshold
	case combined.Action == models.ActionHold || combined.Confidence < minTradeConfidence:
		return models.GateHoldOrWeak
	default:
		return models.GateNone
	}
}
