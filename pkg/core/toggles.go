package core

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownToggle = errors.New("unknown toggle")

// Theme selects the chart color palette
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// OrDefault maps the empty theme to dark
func (t Theme) OrDefault() Theme {
	if t == "" {
		return ThemeDark
	}
	return t
}

// ParseTheme accepts "dark" or "light"; an empty string means dark
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case "", ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	default:
		return "", fmt.Errorf("invalid theme: %q", s)
	}
}

// Comparison is a second symbol drawn as a line on its own scale
type Comparison struct {
	Symbol string
	Points []Bar
}

// ToggleSet enumerates the independently settable chart options.
// A flag only decides whether a derived series is attached, never how it is computed.
type ToggleSet struct {
	SMA20  bool  `json:"sma20"`
	SMA50  bool  `json:"sma50"`
	EMA9   bool  `json:"ema9"`
	EMA21  bool  `json:"ema21"`
	RSI14  bool  `json:"rsi14"`
	MACD   bool  `json:"macd"`
	Volume bool  `json:"volume"`
	Theme  Theme `json:"theme"`

	Comparison *Comparison `json:"-"`
}

// HasPanes reports whether any oscillator or volume band is enabled
func (t ToggleSet) HasPanes() bool {
	return t.RSI14 || t.MACD || t.Volume
}

// HasComparison reports whether a comparison overlay with data is present
func (t ToggleSet) HasComparison() bool {
	return t.Comparison != nil && len(t.Comparison.Points) > 0
}

// Equal compares flags and theme by value and the comparison overlay by identity.
// An empty theme equals dark.
func (t ToggleSet) Equal(o ToggleSet) bool {
	a, b := t, o
	a.Comparison, b.Comparison = nil, nil
	a.Theme, b.Theme = a.Theme.OrDefault(), b.Theme.OrDefault()
	if a != b {
		return false
	}
	return sameComparison(t.Comparison, o.Comparison)
}

func sameComparison(a, b *Comparison) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Symbol == b.Symbol && SameBars(a.Points, b.Points)
}

// toggleFlags maps textual names to the flag they set
var toggleFlags = []struct {
	name string
	flag func(*ToggleSet) *bool
}{
	{"sma20", func(t *ToggleSet) *bool { return &t.SMA20 }},
	{"sma50", func(t *ToggleSet) *bool { return &t.SMA50 }},
	{"ema9", func(t *ToggleSet) *bool { return &t.EMA9 }},
	{"ema21", func(t *ToggleSet) *bool { return &t.EMA21 }},
	{"rsi14", func(t *ToggleSet) *bool { return &t.RSI14 }},
	{"macd", func(t *ToggleSet) *bool { return &t.MACD }},
	{"volume", func(t *ToggleSet) *bool { return &t.Volume }},
}

// ParseToggles builds a ToggleSet from a comma separated list such as "sma20,rsi14,macd".
// "all" enables every flag. The theme is left dark.
func ParseToggles(s string) (ToggleSet, error) {
	toggles := ToggleSet{Theme: ThemeDark}
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		if name == "all" {
			for _, f := range toggleFlags {
				*f.flag(&toggles) = true
			}
			continue
		}

		found := false
		for _, f := range toggleFlags {
			if f.name == name {
				*f.flag(&toggles) = true
				found = true
				break
			}
		}
		if !found {
			return ToggleSet{}, fmt.Errorf("%w: %s", ErrUnknownToggle, name)
		}
	}
	return toggles, nil
}

// String lists the enabled flags in ParseToggles format
func (t ToggleSet) String() string {
	names := make([]string, 0, len(toggleFlags))
	for _, f := range toggleFlags {
		if *f.flag(&t) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}
