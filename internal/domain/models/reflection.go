package models

import "time"

// NoDecisionID stands in for the decision id when every gate rejected the cycle.
const NoDecisionID = "no_decision"

type ReasoningStep struct {
	Step        int                    `json:"step"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data"`
	Reasoning   string                 `json:"reasoning"`
}

type Insight struct {
	Type       string    `json:"insight_type"`
	Desc       string    `json:"description"`
	Confidence float64   `json:"confidence"`
	Evidence   []string  `json:"supporting_evidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type ConfidenceAnalysis struct {
	FactConfidence         float64  `json:"fact_confidence"`
	SubjectivityConfidence float64  `json:"subjectivity_confidence"`
	OverallConfidence      float64  `json:"overall_confidence"`
	Factors                []string `json:"confidence_factors"`
	Risks                  []string `json:"confidence_risks"`
}

type RiskReasoning struct {
	RiskScore       float64  `json:"risk_score"`
	RiskFactors     []string `json:"risk_factors"`
	RiskMitigation  []string `json:"risk_mitigation"`
	SizingRationale string   `json:"position_sizing_rationale"`
	SharpeAnalysis  string   `json:"sharpe_analysis"`
}

type Scenario struct {
	Name          string  `json:"scenario"`
	Description   string  `json:"description"`
	LikelyOutcome Action  `json:"likely_outcome"`
	Probability   float64 `json:"probability"`
	Implications  string  `json:"implications"`
}

// Reflection explains one decision cycle, whether or not it produced a decision.
type Reflection struct {
	DecisionID           string             `json:"decision_id"`
	Symbol               string             `json:"symbol"`
	Timestamp            time.Time          `json:"timestamp"`
	ChainOfThought       []ReasoningStep    `json:"chain_of_thought"`
	Insights             []Insight          `json:"insights"`
	ConfidenceAnalysis   ConfidenceAnalysis `json:"confidence_analysis"`
	RiskReasoning        *RiskReasoning     `json:"risk_reasoning,omitempty"`
	AlternativeScenarios []Scenario         `json:"alternative_scenarios"`
	LearningPoints       []string           `json:"learning_points"`
	Summary              string             `json:"summary"`
}

type BatchPatterns struct {
	ActionDistribution map[Action]int `json:"action_distribution,omitempty"`
	AverageConfidence  float64        `json:"average_confidence"`
}

// BatchReflection summarises a window of recent decisions.
type BatchReflection struct {
	BatchID                string        `json:"batch_id"`
	DecisionCount          int           `json:"decision_count"`
	Timestamp              time.Time     `json:"timestamp"`
	Patterns               BatchPatterns `json:"patterns"`
	PerformanceInsights    []string      `json:"performance_insights"`
	ImprovementSuggestions []string      `json:"improvement_suggestions"`
}
