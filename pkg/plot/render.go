package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrNothingToRender = errors.New("nothing to render")
	ErrInvalidSize     = errors.New("invalid image size")
)

const (
	// minBandHeight is the smallest band, in pixels, worth drawing
	minBandHeight = 24

	// MaxWidth bounds the width of a rendered image
	MaxWidth = 4096
)

// RenderPNG draws an instance as a PNG image. Every scale becomes a transparent
// go-chart band positioned by its margins and composited onto one canvas, so
// overlapping scales share the surface the same way the browser client draws them.
// Widths above MaxWidth are rejected with ErrInvalidSize.
func RenderPNG(w io.Writer, instance *Instance) error {
	if instance == nil || instance.Removed() {
		return ErrNothingToRender
	}

	width, height := instance.Width(), instance.Height()
	if width <= 0 || width > MaxWidth || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	palette := instance.Palette()

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: hexColor(palette.Background)}, image.Point{}, draw.Src)

	start, end, ok := timeBounds(instance.Series())
	if !ok {
		return ErrNothingToRender
	}

	for _, scale := range instance.Layout().Scales {
		top := int(scale.Margins.Top * float64(height))
		bottom := height - int(scale.Margins.Bottom*float64(height))
		if bottom-top < minBandHeight {
			continue
		}

		band := bandChart(instance, scale, width, bottom-top, start, end)
		if len(band.Series) == 0 {
			continue
		}

		buffer := bytes.NewBuffer(nil)
		if err := band.Render(chart.PNG, buffer); err != nil {
			return fmt.Errorf("failed to render %s scale: %w", scale.ID, err)
		}

		img, err := png.Decode(buffer)
		if err != nil {
			return fmt.Errorf("failed to decode %s scale: %w", scale.ID, err)
		}

		draw.Draw(canvas, image.Rect(0, top, width, bottom), img, image.Point{}, draw.Over)
	}

	return png.Encode(w, canvas)
}

// bandChart builds the go-chart definition of one scale
func bandChart(instance *Instance, scale Scale, width, height int, start, end time.Time) chart.Chart {
	palette := instance.Palette()
	text := drawingColor(palette.Text)
	// go-chart treats a zero color as unset and falls back to white
	clear := drawingColor(palette.Background).WithAlpha(1)

	series := make([]chart.Series, 0)
	values := make([]float64, 0)
	for _, s := range instance.Series() {
		if s.Scale != scale.ID {
			continue
		}

		cs, ys, ok := chartSeries(s, palette)
		if !ok {
			continue
		}
		series = append(series, cs)
		values = append(values, ys...)
	}

	band := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: clear,
			Padding:   chart.Box{Top: 4, Left: 8, Right: 8, Bottom: 4},
		},
		Canvas: chart.Style{FillColor: clear},
		XAxis: chart.XAxis{
			Style:          chart.Style{Hidden: scale.ID != ScalePrice, FontColor: text},
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(start),
				Max: chart.TimeToFloat64(end),
			},
		},
		YAxis: chart.YAxis{
			Style: chart.Style{Hidden: scale.ID == ScaleCompare, FontColor: text},
			Range: valueRange(scale, values),
			GridMajorStyle: chart.Style{
				StrokeColor: drawingColor(palette.Grid),
				StrokeWidth: 1,
			},
		},
		Series: series,
	}

	return band
}

// chartSeries converts a series to its go-chart form together with the values
// that bound its y range. Series with fewer than two points are skipped.
func chartSeries(s Series, palette Palette) (chart.Series, []float64, bool) {
	if s.Len() < 2 {
		return nil, nil, false
	}

	switch s.Kind {
	case KindCandlestick:
		values := make([]float64, 0, 2*len(s.Bars))
		for _, b := range s.Bars {
			values = append(values, b.Low, b.High)
		}
		return candleSeries{
			name: s.Title,
			bars: s.Bars,
			up:   drawingColor(palette.Up),
			down: drawingColor(palette.Down),
		}, values, true
	case KindHistogram:
		values := make([]float64, len(s.Histogram))
		for i, p := range s.Histogram {
			values[i] = p.Value
		}
		return histogramSeries{
			name:    s.Title,
			points:  s.Histogram,
			palette: palette,
		}, values, true
	default:
		xs := make([]time.Time, len(s.Points))
		ys := make([]float64, len(s.Points))
		for i, p := range s.Points {
			xs[i], ys[i] = p.Time, p.Value
		}
		style := chart.Style{StrokeWidth: 1.5, StrokeColor: drawingColorOr(s.Color, palette.Text)}
		return chart.TimeSeries{Name: s.Title, Style: style, XValues: xs, YValues: ys}, ys, true
	}
}

// valueRange returns the fixed range of a scale or one fitted to its values
func valueRange(scale Scale, values []float64) chart.Range {
	if scale.Range != nil {
		return &chart.ContinuousRange{Min: scale.Range.Min, Max: scale.Range.Max}
	}
	if len(values) == 0 {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}

	low, high := floats.Min(values), floats.Max(values)
	if scale.ID == ScaleVolume || scale.ID == ScaleMACD {
		low = min(low, 0)
	}
	if high == low {
		high, low = high+1, low-1
	}
	return &chart.ContinuousRange{Min: low, Max: high}
}

// timeBounds finds the first and last timestamp across all series
func timeBounds(series []Series) (start, end time.Time, ok bool) {
	for _, s := range series {
		if s.Kind != KindCandlestick || len(s.Bars) < 2 {
			continue
		}
		return s.Bars[0].Time, s.Bars[len(s.Bars)-1].Time, true
	}
	return time.Time{}, time.Time{}, false
}

// drawingColor parses a #RGB or #RRGGBB color. Anything else is transparent.
func drawingColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 3 && len(hex) != 6 {
		return drawing.ColorTransparent
	}
	return drawing.ColorFromHex(hex)
}

// drawingColorOr parses hex, using fallback when hex is empty
func drawingColorOr(hex, fallback string) drawing.Color {
	if hex == "" {
		return drawingColor(fallback)
	}
	return drawingColor(hex)
}

func hexColor(hex string) color.RGBA {
	c := drawingColor(hex)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// RenderBars is a convenience for one-shot rendering of bars with toggles at a fixed size
func RenderBars(w io.Writer, bars []core.Bar, toggles core.ToggleSet, width, viewport int, options ...Option) error {
	if width <= 0 || width > MaxWidth {
		return fmt.Errorf("%w: width %d", ErrInvalidSize, width)
	}

	manager := NewManager(NewFixedContainer(width, viewport), options...)
	defer manager.Close()

	manager.Update(Inputs{Bars: bars, Toggles: toggles})
	return RenderPNG(w, manager.Instance())
}
