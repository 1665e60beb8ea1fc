package plot

import (
	"fmt"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/indicator"
)

// IndicatorKind enumerates the fixed set of derived series a chart can carry
type IndicatorKind int

const (
	IndicatorSMA20 IndicatorKind = iota
	IndicatorSMA50
	IndicatorEMA9
	IndicatorEMA21
	IndicatorRSI14
	IndicatorMACD
	IndicatorVolume
	IndicatorCompare
)

// buildInput is what a kind needs to compute its series
type buildInput struct {
	bars    []core.Bar
	toggles core.ToggleSet
	seed    indicator.Seed
}

// indicatorSpec pairs a kind with its toggle, compute function and target scale
type indicatorSpec struct {
	kind    IndicatorKind
	scale   ScaleID
	enabled func(core.ToggleSet) bool
	compute func(in buildInput) []Series
}

var indicatorSpecs = []indicatorSpec{
	{IndicatorSMA20, ScalePrice, func(t core.ToggleSet) bool { return t.SMA20 }, smaSeries(20, colorSMA20)},
	{IndicatorSMA50, ScalePrice, func(t core.ToggleSet) bool { return t.SMA50 }, smaSeries(50, colorSMA50)},
	{IndicatorEMA9, ScalePrice, func(t core.ToggleSet) bool { return t.EMA9 }, emaSeries(9, colorEMA9)},
	{IndicatorEMA21, ScalePrice, func(t core.ToggleSet) bool { return t.EMA21 }, emaSeries(21, colorEMA21)},
	{IndicatorRSI14, ScaleRSI, func(t core.ToggleSet) bool { return t.RSI14 }, rsiSeries(14)},
	{IndicatorMACD, ScaleMACD, func(t core.ToggleSet) bool { return t.MACD }, macdSeries},
	{IndicatorVolume, ScaleVolume, func(t core.ToggleSet) bool { return t.Volume }, volumeSeries},
	{IndicatorCompare, ScaleCompare, core.ToggleSet.HasComparison, compareSeries},
}

func smaSeries(period int, color string) func(buildInput) []Series {
	return func(in buildInput) []Series {
		return []Series{{
			ID:     fmt.Sprintf("sma%d", period),
			Title:  fmt.Sprintf("SMA(%d)", period),
			Kind:   KindLine,
			Color:  color,
			Points: indicator.SMA(in.bars, period),
		}}
	}
}

func emaSeries(period int, color string) func(buildInput) []Series {
	return func(in buildInput) []Series {
		return []Series{{
			ID:     fmt.Sprintf("ema%d", period),
			Title:  fmt.Sprintf("EMA(%d)", period),
			Kind:   KindLine,
			Color:  color,
			Points: indicator.EMASeeded(in.bars, period, in.seed),
		}}
	}
}

func rsiSeries(period int) func(buildInput) []Series {
	return func(in buildInput) []Series {
		return []Series{{
			ID:     fmt.Sprintf("rsi%d", period),
			Title:  fmt.Sprintf("RSI(%d)", period),
			Kind:   KindLine,
			Color:  colorRSI,
			Points: indicator.RSI(in.bars, period),
		}}
	}
}

func macdSeries(in buildInput) []Series {
	macd, signal, hist := indicator.MACD(in.bars)
	name := fmt.Sprintf("MACD(%d, %d, %d)", indicator.MACDFast, indicator.MACDSlow, indicator.MACDSignal)

	return []Series{
		{ID: "macd", Title: name, Kind: KindLine, Color: colorMACD, Points: macd},
		{ID: "macd_signal", Title: "Signal", Kind: KindLine, Color: colorMACDSignal, Points: signal},
		{ID: "macd_hist", Title: "Histogram", Kind: KindHistogram, Histogram: hist},
	}
}

// volumeSeries tags each volume bar with the direction of its price bar.
// Bars without any volume attach nothing.
func volumeSeries(in buildInput) []Series {
	if !core.HasVolume(in.bars) {
		return nil
	}

	hist := make([]core.HistogramPoint, len(in.bars))
	for i, bar := range in.bars {
		direction := core.DirectionDown
		if bar.Up() {
			direction = core.DirectionUp
		}
		hist[i] = core.HistogramPoint{
			IndicatorPoint: core.IndicatorPoint{Time: bar.Time, Value: float64(bar.Volume)},
			Color:          direction,
		}
	}

	return []Series{{ID: "volume", Title: "Volume", Kind: KindHistogram, Histogram: hist}}
}

func compareSeries(in buildInput) []Series {
	cmp := in.toggles.Comparison
	points := make([]core.IndicatorPoint, len(cmp.Points))
	for i, bar := range cmp.Points {
		points[i] = core.IndicatorPoint{Time: bar.Time, Value: bar.Close}
	}

	return []Series{{
		ID:     "compare",
		Title:  cmp.Symbol,
		Kind:   KindLine,
		Color:  colorCompare,
		Points: points,
	}}
}
