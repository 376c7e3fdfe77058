package models

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RiskAssessment struct {
	OverallRisk     RiskLevel `json:"overall_risk"`
	RiskScore       float64   `json:"risk_score"`
	RiskFactors     []string  `json:"risk_factors"`
	RiskMitigation  []string  `json:"risk_mitigation"`
	SharpeEstimate  float64   `json:"sharpe_estimate"`
	VarEstimate     float64   `json:"var_estimate"`
	MaxLossEstimate float64   `json:"max_loss_estimate"`
}

// Reasoning keys carried by a TradingDecision.
const (
	ReasoningFact          = "fact_reasoning"
	ReasoningSubjectivity  = "subjectivity_reasoning"
	ReasoningProbabilities = "action_probabilities"
	ReasoningReflection    = "reflection"
)

// TradingDecision is the only output of the engine. Action is never hold.
// After creation only Reasoning[ReasoningReflection] may be set.
type TradingDecision struct {
	DecisionID     string                 `json:"decision_id"`
	Symbol         string                 `json:"symbol"`
	Action         Action                 `json:"action"`
	Confidence     float64                `json:"confidence"`
	Quantity       float64                `json:"quantity"`
	PriceTarget    float64                `json:"price_target"`
	Reasoning      map[string]interface{} `json:"reasoning"`
	RiskAssessment RiskAssessment         `json:"risk_assessment"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Gate names a risk gate that rejected a decision.
type Gate string

const (
	GateNone            Gate = ""
	GateRiskScore       Gate = "risk_score"
	GateConfidence      Gate = "confidence"
	GateSharpeFloor     Gate = "sharpe_floor"
	GateSharpeThreshold Gate = "sharpe_threshold"
	GateHoldOrWeak      Gate = "hold_or_weak"
	GateFailure         Gate = "failure"
)

// Verdict is the outcome of a risk evaluation. Decision is nil iff RejectedBy is set.
type Verdict struct {
	Assessment   RiskAssessment   `json:"risk_assessment"`
	PositionSize float64          `json:"position_size"`
	Decision     *TradingDecision `json:"decision,omitempty"`
	RejectedBy   Gate             `json:"rejected_by,omitempty"`
}

// Accepted reports whether the verdict carries a decision.
func (v Verdict) Accepted() bool { return v.Decision != nil }
