// Package indicator derives secondary numeric series from an ordered bar sequence.
//
// Every function works on the full bar array on each call, keeps no state between
// calls and returns an empty sequence, never an error, when the input is too short.
package indicator

import (
	"github.com/markcheno/go-talib"
	"github.com/raykavin/nsechart/pkg/core"
)

// MACD periods
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// Seed selects how the first EMA value is initialized
type Seed int

const (
	// SeedFirstClose starts the recursion at the first close and emits one point per bar
	SeedFirstClose Seed = iota
	// SeedSMA starts at the mean of the first period closes and drops the warm-up
	SeedSMA
)

// SMA calculates the Simple Moving Average of the close prices.
// The first point is timestamped at bars[period-1].
func SMA(bars []core.Bar, period int) []core.IndicatorPoint {
	if period <= 0 || len(bars) < period {
		return []core.IndicatorPoint{}
	}

	return align(bars, talib.Sma(core.Closes(bars), period), period-1)
}

// EMA calculates the Exponential Moving Average seeded with the first close.
// It produces one point per bar; callers wanting a warm-up trimmed series drop the
// first period-1 points themselves.
func EMA(bars []core.Bar, period int) []core.IndicatorPoint {
	return EMASeeded(bars, period, SeedFirstClose)
}

// EMASeeded calculates the Exponential Moving Average with the given seed
func EMASeeded(bars []core.Bar, period int, seed Seed) []core.IndicatorPoint {
	if period <= 0 || len(bars) == 0 {
		return []core.IndicatorPoint{}
	}

	if seed == SeedSMA {
		if len(bars) < period {
			return []core.IndicatorPoint{}
		}
		return align(bars, talib.Ema(core.Closes(bars), period), period-1)
	}

	return align(bars, ema(core.Closes(bars), period), 0)
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
// It emits one point per bar from index period+1 to the end.
func RSI(bars []core.Bar, period int) []core.IndicatorPoint {
	if period <= 0 || len(bars) <= period {
		return []core.IndicatorPoint{}
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := change(bars[i-1].Close, bars[i].Close)
		avgGain += gain
		avgLoss += loss
	}

	p := float64(period)
	avgGain /= p
	avgLoss /= p

	points := make([]core.IndicatorPoint, 0, len(bars)-period-1)
	for i := period + 1; i < len(bars); i++ {
		gain, loss := change(bars[i-1].Close, bars[i].Close)
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p

		points = append(points, core.IndicatorPoint{
			Time:  bars[i].Time,
			Value: rsiValue(avgGain, avgLoss),
		})
	}

	return points
}

// MACD calculates the MACD line (EMA12 - EMA26), its 9 period signal line and the
// histogram between them. Both EMAs and the signal are seeded with their first input,
// and all three outputs drop the first 26 entries.
func MACD(bars []core.Bar) (macd, signal []core.IndicatorPoint, histogram []core.HistogramPoint) {
	if len(bars) < MACDSlow {
		return []core.IndicatorPoint{}, []core.IndicatorPoint{}, []core.HistogramPoint{}
	}

	closes := core.Closes(bars)
	fast, slow := ema(closes, MACDFast), ema(closes, MACDSlow)

	line := make([]float64, len(closes))
	for i := range line {
		line[i] = fast[i] - slow[i]
	}
	signalLine := ema(line, MACDSignal)

	size := len(bars) - MACDSlow
	macd = make([]core.IndicatorPoint, 0, size)
	signal = make([]core.IndicatorPoint, 0, size)
	histogram = make([]core.HistogramPoint, 0, size)

	for i := MACDSlow; i < len(bars); i++ {
		t := bars[i].Time
		diff := line[i] - signalLine[i]

		macd = append(macd, core.IndicatorPoint{Time: t, Value: line[i]})
		signal = append(signal, core.IndicatorPoint{Time: t, Value: signalLine[i]})
		histogram = append(histogram, core.HistogramPoint{
			IndicatorPoint: core.IndicatorPoint{Time: t, Value: diff},
			Color:          core.DirectionOf(diff),
		})
	}

	return macd, signal, histogram
}

// ema runs the recursive update starting from values[0]
func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	k := 2 / float64(period+1)
	prev := values[0]
	for i, v := range values {
		prev = (v-prev)*k + prev
		out[i] = prev
	}
	return out
}

// change splits a one-step difference into gain and loss
func change(prev, curr float64) (gain, loss float64) {
	delta := curr - prev
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// rsiValue maps the smoothed averages to 0..100. A zero average loss has no finite
// ratio and is pinned to 100.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// align pairs values[from:] with the bar times at the same index
func align(bars []core.Bar, values []float64, from int) []core.IndicatorPoint {
	points := make([]core.IndicatorPoint, 0, len(values)-from)
	for i := from; i < len(values); i++ {
		points = append(points, core.IndicatorPoint{Time: bars[i].Time, Value: values[i]})
	}
	return points
}
