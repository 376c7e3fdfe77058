package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HoursPerYear annualises hourly-sampled return dispersion.
const HoursPerYear = 24 * 365

// VolatilityWindow is how many trailing prices feed RealizedVolatility.
const VolatilityWindow = 20

// LogReturns computes r_t = ln(p_t / p_{t-1}). Non-positive prices yield 0
// for the affected return. It returns nil for fewer than two prices.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the population standard deviation of log returns
// over the last VolatilityWindow prices, annualised by sqrt(HoursPerYear).
// Fewer than 10 prices yields 0.
func RealizedVolatility(prices []float64) float64 {
	if len(prices) < 10 {
		return 0
	}
	returns := LogReturns(tail(prices, VolatilityWindow))
	_, std := stat.PopMeanStdDev(returns, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std * math.Sqrt(HoursPerYear)
}

// tail returns the last n elements of xs without copying.
func tail(xs []float64, n int) []float64 {
	if n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}
