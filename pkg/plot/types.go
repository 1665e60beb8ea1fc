package plot

import (
	"github.com/raykavin/nsechart/pkg/core"
)

// SeriesKind is the drawing style of a series
type SeriesKind string

const (
	KindCandlestick SeriesKind = "candlestick"
	KindLine        SeriesKind = "line"
	KindHistogram   SeriesKind = "histogram"
)

// Series is one drawable series attached to a chart instance.
// Exactly one of Bars, Points or Histogram is populated, according to Kind.
type Series struct {
	ID        string
	Title     string
	Kind      SeriesKind
	Scale     ScaleID
	Color     string
	Bars      []core.Bar
	Points    []core.IndicatorPoint
	Histogram []core.HistogramPoint
}

// Len returns the number of data points of the series
func (s Series) Len() int {
	switch s.Kind {
	case KindCandlestick:
		return len(s.Bars)
	case KindHistogram:
		return len(s.Histogram)
	default:
		return len(s.Points)
	}
}

// candlePoint is the JSON serializable version of a bar
type candlePoint struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// valuePoint is the JSON serializable version of line and histogram points
type valuePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// seriesSnapshot is the JSON serializable version of a Series
type seriesSnapshot struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Kind    SeriesKind    `json:"kind"`
	Scale   ScaleID       `json:"scale"`
	Color   string        `json:"color,omitempty"`
	Candles []candlePoint `json:"candles,omitempty"`
	Values  []valuePoint  `json:"values,omitempty"`
}

// Snapshot is the JSON serializable state of a chart instance, shaped for a browser client
type Snapshot struct {
	ID      uint64           `json:"id"`
	Width   int              `json:"width"`
	Height  int              `json:"height"`
	Theme   core.Theme       `json:"theme"`
	Palette Palette          `json:"palette"`
	Scales  []Scale          `json:"scales"`
	Series  []seriesSnapshot `json:"series"`
}

func snapshotSeries(s Series, palette Palette) seriesSnapshot {
	out := seriesSnapshot{
		ID:    s.ID,
		Title: s.Title,
		Kind:  s.Kind,
		Scale: s.Scale,
		Color: s.Color,
	}

	switch s.Kind {
	case KindCandlestick:
		out.Candles = make([]candlePoint, len(s.Bars))
		for i, b := range s.Bars {
			out.Candles[i] = candlePoint{Time: b.Time.Unix(), Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
		}
	case KindHistogram:
		out.Values = make([]valuePoint, len(s.Histogram))
		for i, p := range s.Histogram {
			out.Values[i] = valuePoint{Time: p.Time.Unix(), Value: p.Value, Color: palette.directionColor(p.Color)}
		}
	default:
		out.Values = make([]valuePoint, len(s.Points))
		for i, p := range s.Points {
			out.Values[i] = valuePoint{Time: p.Time.Unix(), Value: p.Value}
		}
	}

	return out
}
