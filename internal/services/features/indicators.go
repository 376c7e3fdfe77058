package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	BollingerWidth  = 2.0
	MACDFast        = 12
	MACDSlow        = 26

	// MACDSignalRatio approximates the signal line as a fixed fraction of
	// MACD instead of a 9-period EMA over a MACD series.
	MACDSignalRatio = 0.9
)

// SMAPeriods are the moving average windows reported as sma_<period>.
var SMAPeriods = []int{5, 10, 20, 50}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// NormalizedSlope fits an ordinary least-squares line through xs against
// their index and divides the slope by the mean. It returns 0 for fewer
// than two points or a non-positive mean.
func NormalizedSlope(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	index := make([]float64, len(xs))
	for i := range index {
		index[i] = float64(i)
	}
	_, slope := stat.LinearRegression(index, xs, nil, false)
	avg := Mean(xs)
	if avg <= 0 || math.IsNaN(slope) {
		return 0
	}
	return slope / avg
}

// TrailingSlope is NormalizedSlope over the last n values.
func TrailingSlope(xs []float64, n int) float64 {
	return NormalizedSlope(tail(xs, n))
}

// SMA is the mean of the last period values. ok is false when there are fewer.
func SMA(xs []float64, period int) (v float64, ok bool) {
	if period <= 0 || len(xs) < period {
		return 0, false
	}
	return Mean(tail(xs, period)), true
}

// EMA seeds with the first value and folds every later one in with
// multiplier 2/(period+1). Fewer than period values yields their mean.
func EMA(xs []float64, period int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if len(xs) < period {
		return Mean(xs)
	}
	k := 2.0 / float64(period+1)
	ema := xs[0]
	for _, x := range xs[1:] {
		ema = x*k + ema*(1-k)
	}
	return ema
}

// RSI uses the plain mean of gains and losses over the last period deltas.
// It returns 50 when fewer than period+1 values exist and 100 when the mean loss is zero.
func RSI(xs []float64, period int) float64 {
	if len(xs) < period+1 {
		return 50
	}
	recent := tail(xs, period+1)
	var gain, loss float64
	for i := 1; i < len(recent); i++ {
		d := recent[i] - recent[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

type Bands struct {
	Upper, Middle, Lower float64
	// Position is where the last value sits between Lower (0) and Upper (1).
	Position float64
}

// Bollinger computes bands over the last period values with population
// standard deviation. ok is false when there are fewer values.
func Bollinger(xs []float64, period int, width float64) (b Bands, ok bool) {
	if period <= 0 || len(xs) < period {
		return Bands{}, false
	}
	window := tail(xs, period)
	mean, std := stat.PopMeanStdDev(window, nil)
	b = Bands{
		Upper:    mean + width*std,
		Middle:   mean,
		Lower:    mean - width*std,
		Position: 0.5,
	}
	if b.Upper != b.Lower {
		b.Position = (xs[len(xs)-1] - b.Lower) / (b.Upper - b.Lower)
	}
	return b, true
}

// MACD returns the line, the approximated signal and the histogram.
// ok is false with fewer than MACDSlow values.
func MACD(xs []float64) (line, signal, histogram float64, ok bool) {
	if len(xs) < MACDSlow {
		return 0, 0, 0, false
	}
	line = EMA(xs, MACDFast) - EMA(xs, MACDSlow)
	signal = line * MACDSignalRatio
	return line, signal, line - signal, true
}
