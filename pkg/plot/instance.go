package plot

import (
	"github.com/raykavin/nsechart/pkg/core"
)

// Instance is one fully constructed chart: its size, scale plan and attached series.
// It is owned by a single Manager; once removed it never changes again.
type Instance struct {
	id      uint64
	width   int
	theme   core.Theme
	palette Palette
	layout  Layout
	series  []Series
	removed bool
}

func newInstance(id uint64, width int, layout Layout, theme core.Theme) *Instance {
	theme = theme.OrDefault()
	return &Instance{
		id:      id,
		width:   width,
		theme:   theme,
		palette: PaletteFor(theme),
		layout:  layout,
	}
}

// ID returns the instance sequence number, unique per Manager
func (i *Instance) ID() uint64 { return i.id }

// Width returns the current surface width in pixels
func (i *Instance) Width() int { return i.width }

// Height returns the surface height fixed at construction
func (i *Instance) Height() int { return i.layout.Height }

// Theme returns the theme the instance was built with
func (i *Instance) Theme() core.Theme { return i.theme }

// Palette returns the colors of the instance theme
func (i *Instance) Palette() Palette { return i.palette }

// Layout returns the pane and scale plan
func (i *Instance) Layout() Layout { return i.layout }

// Removed reports whether the instance resources were released
func (i *Instance) Removed() bool { return i.removed }

// Series returns a copy of the attached series in attach order
func (i *Instance) Series() []Series {
	out := make([]Series, len(i.series))
	copy(out, i.series)
	return out
}

// SeriesByID finds an attached series
func (i *Instance) SeriesByID(id string) (Series, bool) {
	for _, s := range i.series {
		if s.ID == id {
			return s, true
		}
	}
	return Series{}, false
}

// Snapshot returns the JSON serializable state of the instance
func (i *Instance) Snapshot() Snapshot {
	snap := Snapshot{
		ID:      i.id,
		Width:   i.width,
		Height:  i.layout.Height,
		Theme:   i.theme,
		Palette: i.palette,
		Scales:  i.layout.Scales,
		Series:  make([]seriesSnapshot, 0, len(i.series)),
	}
	for _, s := range i.series {
		snap.Series = append(snap.Series, snapshotSeries(s, i.palette))
	}
	return snap
}

func (i *Instance) addSeries(s Series) {
	if i.removed {
		return
	}
	i.series = append(i.series, s)
}

func (i *Instance) applyWidth(width int) {
	if i.removed || width <= 0 {
		return
	}
	i.width = width
}

// remove releases the series data. It reports false when already removed.
func (i *Instance) remove() bool {
	if i.removed {
		return false
	}
	i.removed = true
	i.series = nil
	return true
}
