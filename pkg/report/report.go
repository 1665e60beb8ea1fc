// Package report prints chart instances and their history as text for the terminal
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/plot"
)

const dateLayout = "2006-01-02"

var (
	ErrNotEnoughBars = errors.New("at least two bars with a non-zero close are needed")
	ErrInvalidBins   = errors.New("histogram needs at least one bin")
)

// Table writes the last rows of an instance: one row per bar with its close and
// the value of every indicator series at that time. Missing values print as "-".
func Table(w io.Writer, instance *plot.Instance, last int) error {
	if instance == nil {
		return plot.ErrNothingToRender
	}

	candles, ok := instance.SeriesByID("candles")
	if !ok || len(candles.Bars) == 0 {
		return plot.ErrNothingToRender
	}

	columns := make([]plot.Series, 0)
	for _, s := range instance.Series() {
		if s.Kind != plot.KindCandlestick {
			columns = append(columns, s)
		}
	}

	lookups := make([]map[time.Time]float64, len(columns))
	header := []string{"Date", "Close"}
	for i, s := range columns {
		lookups[i] = valuesByTime(s)
		header = append(header, s.Title)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	bars := candles.Bars
	if last > 0 && len(bars) > last {
		bars = bars[len(bars)-last:]
	}

	for _, bar := range bars {
		row := []string{bar.Time.Format(dateLayout), strconv.FormatFloat(bar.Close, 'f', 2, 64)}
		for _, lookup := range lookups {
			value, ok := lookup[bar.Time]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatFloat(value, 'f', 2, 64))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// Returns writes a histogram of the bar-to-bar close returns in percent
func Returns(w io.Writer, bars []core.Bar, bins int) error {
	if bins <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBins, bins)
	}

	returns := core.Returns(core.Closes(bars))
	if len(returns) == 0 {
		return ErrNotEnoughBars
	}

	hist := histogram.Hist(bins, returns.Values())
	if err := histogram.Fprint(w, hist, histogram.Linear(10)); err != nil {
		return fmt.Errorf("failed to print histogram: %w", err)
	}
	return nil
}

func valuesByTime(s plot.Series) map[time.Time]float64 {
	values := make(map[time.Time]float64, s.Len())
	for _, p := range s.Points {
		values[p.Time] = p.Value
	}
	for _, p := range s.Histogram {
		values[p.Time] = p.Value
	}
	return values
}
