package plot

import (
	"testing"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_Heights(t *testing.T) {
	tt := []struct {
		name     string
		toggles  core.ToggleSet
		viewport int
		height   int
		mobile   bool
	}{
		{"plain desktop", core.ToggleSet{SMA20: true}, 1280, 400, false},
		{"plain mobile", core.ToggleSet{EMA9: true}, 390, 300, true},
		{"panes desktop", core.ToggleSet{RSI14: true}, 1280, 550, false},
		{"volume desktop", core.ToggleSet{Volume: true}, 1024, 550, false},
		{"panes mobile", core.ToggleSet{MACD: true}, 767, 420, true},
		{"breakpoint is desktop", core.ToggleSet{}, 768, 400, false},
		{"unknown viewport is desktop", core.ToggleSet{}, 0, 400, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			layout := Allocate(tc.toggles, tc.viewport)
			assert.Equal(t, tc.height, layout.Height)
			assert.Equal(t, tc.mobile, layout.Mobile)
		})
	}
}

func TestAllocate_PriceOnly(t *testing.T) {
	layout := Allocate(core.ToggleSet{SMA20: true, SMA50: true, EMA9: true, EMA21: true}, 1280)

	require.Len(t, layout.Scales, 1)
	assert.Equal(t, ScalePrice, layout.Scales[0].ID)
	assert.InDelta(t, 0.05, layout.Scales[0].Margins.Top, 1e-9)
	assert.InDelta(t, 0.05, layout.Scales[0].Margins.Bottom, 1e-9)
}

func TestAllocate_AllBands(t *testing.T) {
	toggles := core.ToggleSet{
		RSI14:      true,
		MACD:       true,
		Volume:     true,
		Comparison: &core.Comparison{Symbol: "TCS", Points: []core.Bar{{Close: 1}}},
	}
	layout := Allocate(toggles, 1280)

	ids := make([]ScaleID, 0, len(layout.Scales))
	for _, s := range layout.Scales {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []ScaleID{ScalePrice, ScaleRSI, ScaleMACD, ScaleVolume, ScaleCompare}, ids)

	rsi, ok := layout.Scale(ScaleRSI)
	require.True(t, ok)
	assert.InDelta(t, 0.0, rsi.Margins.Top, 1e-9)
	assert.InDelta(t, 0.85, rsi.Margins.Bottom, 1e-9)
	require.NotNil(t, rsi.Range)
	assert.Equal(t, Range{Min: 0, Max: 100}, *rsi.Range)

	macd, _ := layout.Scale(ScaleMACD)
	assert.InDelta(t, 0.15, macd.Margins.Top, 1e-9)
	assert.InDelta(t, 0.70, macd.Margins.Bottom, 1e-9)
	assert.Nil(t, macd.Range)

	volume, _ := layout.Scale(ScaleVolume)
	assert.InDelta(t, 0.85, volume.Margins.Top, 1e-9)
	assert.InDelta(t, 0.0, volume.Margins.Bottom, 1e-9)

	price, _ := layout.Scale(ScalePrice)
	assert.InDelta(t, 0.35, price.Margins.Top, 1e-9)
	assert.InDelta(t, 0.20, price.Margins.Bottom, 1e-9)

	compare, _ := layout.Scale(ScaleCompare)
	assert.Equal(t, Margins{Top: 0.1, Bottom: 0.1}, compare.Margins)
}

func TestAllocate_BandsDoNotOverlap(t *testing.T) {
	layout := Allocate(core.ToggleSet{RSI14: true, MACD: true, Volume: true}, 1280)

	type span struct{ top, bottom float64 }
	spans := make([]span, 0)
	for _, s := range layout.Scales {
		spans = append(spans, span{s.Margins.Top, 1 - s.Margins.Bottom})
	}

	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			overlap := spans[i].top < spans[j].bottom-1e-9 && spans[j].top < spans[i].bottom-1e-9
			assert.False(t, overlap, "%s overlaps %s", layout.Scales[i].ID, layout.Scales[j].ID)
		}
	}
}

func TestAllocate_EmptyComparisonHasNoScale(t *testing.T) {
	layout := Allocate(core.ToggleSet{Comparison: &core.Comparison{Symbol: "INFY"}}, 1280)
	_, ok := layout.Scale(ScaleCompare)
	assert.False(t, ok)
}
