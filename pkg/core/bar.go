package core

import (
	"fmt"
	"strconv"
	"time"
)

// Bar represents one OHLCV time step of a listed instrument.
// Bars are expected strictly ascending by Time and low <= {open, close} <= high;
// neither is validated here.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// Up reports whether the bar closed at or above its open
func (b Bar) Up() bool { return b.Close >= b.Open }

// ToSlice converts a bar to a string slice for serialization
// with the specified decimal precision
func (b Bar) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", b.Time.Unix()),
		strconv.FormatFloat(b.Open, 'f', precision, 64),
		strconv.FormatFloat(b.High, 'f', precision, 64),
		strconv.FormatFloat(b.Low, 'f', precision, 64),
		strconv.FormatFloat(b.Close, 'f', precision, 64),
		strconv.FormatInt(b.Volume, 10),
	}
}

// SameBars reports whether a and b are the same bar array, by identity rather than content.
// A rebuilt slice with equal values is a different array.
func SameBars(a, b []Bar) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// HasVolume reports whether any bar carries a traded volume
func HasVolume(bars []Bar) bool {
	for _, bar := range bars {
		if bar.Volume > 0 {
			return true
		}
	}
	return false
}
