package plot

import "github.com/raykavin/nsechart/pkg/core"

// Palette holds the colors of one theme
type Palette struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Grid       string `json:"grid"`
	Up         string `json:"up"`
	Down       string `json:"down"`
}

var palettes = map[core.Theme]Palette{
	core.ThemeDark: {
		Background: "#111827",
		Text:       "#D1D5DB",
		Grid:       "#374151",
		Up:         "#10B981",
		Down:       "#EF4444",
	},
	core.ThemeLight: {
		Background: "#FFFFFF",
		Text:       "#1F2937",
		Grid:       "#E5E7EB",
		Up:         "#10B981",
		Down:       "#EF4444",
	},
}

// PaletteFor returns the palette of a theme, falling back to dark
func PaletteFor(theme core.Theme) Palette {
	if p, ok := palettes[theme]; ok {
		return p
	}
	return palettes[core.ThemeDark]
}

// Series colors
const (
	colorSMA20      = "#F59E0B"
	colorSMA50      = "#3B82F6"
	colorEMA9       = "#EC4899"
	colorEMA21      = "#8B5CF6"
	colorRSI        = "#A855F7"
	colorMACD       = "#2563EB"
	colorMACDSignal = "#F97316"
	colorCompare    = "#FBBF24"
)

// directionColor maps a histogram tag to a palette color
func (p Palette) directionColor(d core.Direction) string {
	if d == core.DirectionDown {
		return p.Down
	}
	return p.Up
}
