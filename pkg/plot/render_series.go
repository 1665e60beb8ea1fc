package plot

import (
	"errors"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/samber/lo"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	_ chart.Series = candleSeries{}
	_ chart.Series = histogramSeries{}
)

var errEmptySeries = errors.New("series has no values")

// candleSeries draws OHLC bars as a wick plus a body colored by direction
type candleSeries struct {
	name     string
	bars     []core.Bar
	up, down drawing.Color
}

func (cs candleSeries) GetName() string           { return cs.name }
func (cs candleSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (cs candleSeries) GetStyle() chart.Style     { return chart.Style{StrokeWidth: 1} }

func (cs candleSeries) Validate() error {
	if len(cs.bars) == 0 {
		return errEmptySeries
	}
	return nil
}

func (cs candleSeries) Render(r chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	half := barHalfWidth(xrange, len(cs.bars))

	for _, b := range cs.bars {
		color := lo.Ternary(b.Up(), cs.up, cs.down)
		x := box.Left + xrange.Translate(chart.TimeToFloat64(b.Time))

		chart.Style{StrokeColor: color, StrokeWidth: 1}.GetStrokeOptions().WriteToRenderer(r)
		r.MoveTo(x, box.Bottom-yrange.Translate(b.High))
		r.LineTo(x, box.Bottom-yrange.Translate(b.Low))
		r.Stroke()
		r.ResetStyle()

		top := box.Bottom - yrange.Translate(max(b.Open, b.Close))
		bottom := box.Bottom - yrange.Translate(min(b.Open, b.Close))
		if bottom <= top {
			bottom = top + 1
		}

		chart.Draw.Box(r, chart.Box{Top: top, Left: x - half, Right: x + half, Bottom: bottom},
			chart.Style{StrokeColor: color, FillColor: color, StrokeWidth: 1})
	}
}

// histogramSeries draws one bar per point from zero, colored by its direction tag
type histogramSeries struct {
	name    string
	points  []core.HistogramPoint
	palette Palette
}

func (hs histogramSeries) GetName() string           { return hs.name }
func (hs histogramSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (hs histogramSeries) GetStyle() chart.Style     { return chart.Style{StrokeWidth: 1} }

func (hs histogramSeries) Validate() error {
	if len(hs.points) == 0 {
		return errEmptySeries
	}
	return nil
}

func (hs histogramSeries) Render(r chart.Renderer, box chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	half := barHalfWidth(xrange, len(hs.points))
	zero := box.Bottom - yrange.Translate(0)

	for _, p := range hs.points {
		color := drawingColor(hs.palette.directionColor(p.Color))
		x := box.Left + xrange.Translate(chart.TimeToFloat64(p.Time))
		y := box.Bottom - yrange.Translate(p.Value)

		chart.Draw.Box(r, chart.Box{Top: min(y, zero), Left: x - half, Right: x + half, Bottom: max(y, zero)},
			chart.Style{StrokeColor: color, FillColor: color, StrokeWidth: 1})
	}
}

// barHalfWidth is half the pixel width of one bar when n bars share the x range
func barHalfWidth(xrange chart.Range, n int) int {
	if n == 0 {
		return 0
	}
	return int(float64(xrange.GetDomain()) / float64(n) * 0.35)
}
