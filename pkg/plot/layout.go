package plot

import "github.com/raykavin/nsechart/pkg/core"

// ScaleID names a vertical scale of the chart canvas
type ScaleID string

const (
	ScalePrice   ScaleID = "right"
	ScaleVolume  ScaleID = "volume"
	ScaleRSI     ScaleID = "rsi"
	ScaleMACD    ScaleID = "macd"
	ScaleCompare ScaleID = "compare"
)

const (
	// MobileBreakpoint is the viewport width below which the compact height tier applies
	MobileBreakpoint = 768

	heightPlain       = 400
	heightPlainMobile = 300
	heightPanes       = 550
	heightPanesMobile = 420

	bandSize      = 0.15
	pricePadding  = 0.05
	compareMargin = 0.1
)

// Margins are the empty fractions of chart height above and below a scale
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Range fixes the visible value range of a scale
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Scale is one named, independently scaled band of the canvas
type Scale struct {
	ID      ScaleID `json:"id"`
	Margins Margins `json:"margins"`
	Range   *Range  `json:"range,omitempty"`
}

// Layout is the pane and scale plan for one chart instance
type Layout struct {
	Height int     `json:"height"`
	Mobile bool    `json:"mobile"`
	Scales []Scale `json:"scales"`
}

// Scale looks up a scale by ID
func (l Layout) Scale(id ScaleID) (Scale, bool) {
	for _, s := range l.Scales {
		if s.ID == id {
			return s, true
		}
	}
	return Scale{}, false
}

// Allocate decides the chart height and the scale margins implied by the toggles.
// The price scale always exists; RSI and MACD stack as thin bands from the top,
// volume takes a bottom band and the comparison overlay spans nearly the full height.
func Allocate(toggles core.ToggleSet, viewportWidth int) Layout {
	mobile := viewportWidth > 0 && viewportWidth < MobileBreakpoint
	layout := Layout{
		Height: chartHeight(toggles.HasPanes(), mobile),
		Mobile: mobile,
		Scales: []Scale{{ID: ScalePrice}},
	}

	top := 0.0
	oscillators := []struct {
		enabled bool
		id      ScaleID
		rng     *Range
	}{
		{toggles.RSI14, ScaleRSI, &Range{Min: 0, Max: 100}},
		{toggles.MACD, ScaleMACD, nil},
	}
	for _, osc := range oscillators {
		if !osc.enabled {
			continue
		}
		layout.Scales = append(layout.Scales, Scale{
			ID:      osc.id,
			Margins: Margins{Top: top, Bottom: 1 - top - bandSize},
			Range:   osc.rng,
		})
		top += bandSize
	}

	bottom := 0.0
	if toggles.Volume {
		layout.Scales = append(layout.Scales, Scale{
			ID:      ScaleVolume,
			Margins: Margins{Top: 1 - bandSize, Bottom: 0},
		})
		bottom = bandSize
	}

	layout.Scales[0].Margins = Margins{Top: top + pricePadding, Bottom: bottom + pricePadding}

	if toggles.HasComparison() {
		layout.Scales = append(layout.Scales, Scale{
			ID:      ScaleCompare,
			Margins: Margins{Top: compareMargin, Bottom: compareMargin},
		})
	}

	return layout
}

func chartHeight(panes, mobile bool) int {
	switch {
	case panes && mobile:
		return heightPanesMobile
	case panes:
		return heightPanes
	case mobile:
		return heightPlainMobile
	default:
		return heightPlain
	}
}
