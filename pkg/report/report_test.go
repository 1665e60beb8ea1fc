package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/plot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bars(n int) []core.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.Bar, n)
	for i := range out {
		price := 50 + float64(i%5)
		out[i] = core.Bar{Time: start.AddDate(0, 0, i), Open: price, High: price + 1, Low: price - 1, Close: price}
	}
	return out
}

func TestTable(t *testing.T) {
	manager := plot.NewManager(plot.NewFixedContainer(800, 0))
	manager.Update(plot.Inputs{Bars: bars(30), Toggles: core.ToggleSet{SMA20: true, EMA9: true}})

	buffer := bytes.NewBuffer(nil)
	require.NoError(t, Table(buffer, manager.Instance(), 5))

	out := buffer.String()
	assert.Contains(t, out, "SMA(20)")
	assert.Contains(t, out, "2024-03-30")
	assert.NotContains(t, out, "2024-03-25")
}

func TestTable_Warmup(t *testing.T) {
	manager := plot.NewManager(plot.NewFixedContainer(800, 0))
	manager.Update(plot.Inputs{Bars: bars(25), Toggles: core.ToggleSet{SMA20: true}})

	buffer := bytes.NewBuffer(nil)
	require.NoError(t, Table(buffer, manager.Instance(), 0))

	rows := make(map[string]string)
	for _, line := range strings.Split(buffer.String(), "\n") {
		for _, date := range []string{"2024-03-01", "2024-03-25"} {
			if strings.Contains(line, date) {
				rows[date] = line
			}
		}
	}
	assert.Contains(t, rows["2024-03-01"], "- |")
	assert.NotContains(t, rows["2024-03-25"], "- |")
}

func TestTable_NoInstance(t *testing.T) {
	assert.ErrorIs(t, Table(bytes.NewBuffer(nil), nil, 5), plot.ErrNothingToRender)
}

func TestReturns(t *testing.T) {
	buffer := bytes.NewBuffer(nil)
	require.NoError(t, Returns(buffer, bars(40), 5))
	assert.NotZero(t, buffer.Len())

	assert.ErrorIs(t, Returns(buffer, bars(1), 5), ErrNotEnoughBars)

	buffer.Reset()
	assert.ErrorIs(t, Returns(buffer, bars(40), 0), ErrInvalidBins)
	assert.ErrorIs(t, Returns(buffer, bars(40), -2), ErrInvalidBins)
	assert.Zero(t, buffer.Len())
}

func TestStats(t *testing.T) {
	buffer := bytes.NewBuffer(nil)
	require.NoError(t, Stats(buffer, bars(40)))
	assert.Contains(t, buffer.String(), "Mean return %")
	assert.Contains(t, buffer.String(), "Volatility %")

	assert.ErrorIs(t, Stats(buffer, bars(2)), ErrNotEnoughBars)
}
