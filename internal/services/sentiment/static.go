package sentiment

import (
	"context"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/config"
	"FinFusion/pkg/logger"
)

// StaticAgent returns the same analysis for every signal.
type StaticAgent struct {
	analysis models.SubjectivityAnalysis
}

var _ service.SubjectivityAgent = (*StaticAgent)(nil)

func NewStaticAgent(a models.SubjectivityAnalysis) *StaticAgent {
	return &StaticAgent{analysis: a}
}

// StaticAnalysis builds a minimal analysis from a score, fear/greed index and confidence.
func StaticAnalysis(score, fearGreed, confidence float64) models.SubjectivityAnalysis {
	return models.SubjectivityAnalysis{
		SentimentScore:   score,
		EmotionAnalysis:  map[string]float64{},
		NarrativeThemes:  []string{},
		SocialSignals:    map[string]float64{},
		MarketPsychology: map[string]float64{"fear_greed_index": fearGreed},
		Confidence:       confidence,
		Reasoning:        []string{fmt.Sprintf("Static sentiment stance (score: %.2f)", score)},
	}
}

func (a *StaticAgent) Observe(string, float64, time.Time) {}

func (a *StaticAgent) Analyze(context.Context, models.MarketSignal) models.SubjectivityAnalysis {
	out := a.analysis
	out.EmotionAnalysis = copyMap(a.analysis.EmotionAnalysis)
	out.SocialSignals = copyMap(a.analysis.SocialSignals)
	out.MarketPsychology = copyMap(a.analysis.MarketPsychology)
	out.NarrativeThemes = append([]string(nil), a.analysis.NarrativeThemes...)
	out.Reasoning = append([]string(nil), a.analysis.Reasoning...)
	return out
}

// New selects the sentiment agent named by cfg.Sentiment.Mode.
func New(cfg *config.Config, log *logger.Logger) (service.SubjectivityAgent, error) {
	capacity := cfg.Processing.SentimentHistory
	switch cfg.Sentiment.Mode {
	case "", "heuristic":
		return NewHeuristicAgent(capacity, log), nil
	case "remote":
		return NewRemoteAgent(cfg.Sentiment.Remote.URL, cfg.Sentiment.Remote.Timeout, capacity, log), nil
	case "static":
		s := cfg.Sentiment.Static
		return NewStaticAgent(StaticAnalysis(s.Score, s.FearGreed, s.Confidence)), nil
	default:
		return nil, fmt.Errorf("unknown sentiment mode %q", cfg.Sentiment.Mode)
	}
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
