package core

import (
	"golang.org/x/exp/constraints"
)

// Series is a time series of ordered values
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Closes extracts the close prices of a bar sequence
func Closes(bars []Bar) Series[float64] {
	closes := make(Series[float64], len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}

// Returns computes one-step relative changes in percent.
// Steps starting from a zero value are skipped.
func Returns(values Series[float64]) Series[float64] {
	if len(values) < 2 {
		return Series[float64]{}
	}

	returns := make(Series[float64], 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1]*100)
	}
	return returns
}
