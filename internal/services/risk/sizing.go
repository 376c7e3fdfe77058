package risk

import (
	"math"

	"FinFusion/internal/domain/models"
)

const (
	basePriceFraction = 0.1
	minPriceFraction  = 0.001
	maxKellyFraction  = 0.25
	fallbackKelly     = 0.1
)

// Kelly holds the win/loss statistics used for fractional Kelly sizing.
type Kelly struct {
	WinProbability float64
	AverageWin     float64
	AverageLoss    float64
}

// Fraction returns the Kelly fraction capped to [0, 0.25]. Without a
// positive average loss the fraction is a flat 0.1.
func (k Kelly) Fraction() float64 {
	if k.AverageLoss <= 0 || k.AverageWin <= 0 {
		return fallbackKelly
	}
	p := k.WinProbability
	f := (p*k.AverageWin - (1-p)*k.AverageLoss) / k.AverageWin
	return math.Max(0, math.Min(maxKellyFraction, f))
}

// PositionSize sizes a position in quote currency. The result is capped at
// limit and floored at 0.1% of price, in that order.
func PositionSize(price, maxPosition, limit float64, k Kelly, a models.RiskAssessment) float64 {
	base := math.Min(maxPosition, price*basePriceFraction)
	multiplier := math.Max(1-a.RiskScore, 0)

	size := base * k.Fraction() * multiplier
	size = math.Min(size, limit)
	return math.Max(size, price*minPriceFraction)
}
