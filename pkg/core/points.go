package core

import "time"

// Direction is the presentation tag of a histogram bar
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// DirectionOf tags non-negative values as up and negative values as down
func DirectionOf(value float64) Direction {
	if value >= 0 {
		return DirectionUp
	}
	return DirectionDown
}

// IndicatorPoint is one value of a derived series, aligned by Time to an input bar
type IndicatorPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// HistogramPoint is an IndicatorPoint carrying a color tag.
// The tag is presentation only and never part of the numeric result.
type HistogramPoint struct {
	IndicatorPoint
	Color Direction `json:"color"`
}

// Values extracts the numeric values of a point sequence
func Values(points []IndicatorPoint) Series[float64] {
	values := make(Series[float64], len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
