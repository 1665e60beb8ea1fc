package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/metric"
)

const (
	bootstrapSamples    = 10000
	bootstrapConfidence = 0.95
)

// Stats writes the mean daily return and volatility of the bars with their
// 95% bootstrap confidence intervals
func Stats(w io.Writer, bars []core.Bar) error {
	returns := core.Returns(core.Closes(bars)).Values()
	if len(returns) < 2 {
		return ErrNotEnoughBars
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Measure", "Value", "Lower", "Upper"})

	for _, row := range []struct {
		name    string
		measure metric.Measure
	}{
		{"Mean return %", metric.Mean},
		{"Volatility %", metric.Volatility},
	} {
		interval := metric.Bootstrap(returns, row.measure, bootstrapSamples, bootstrapConfidence, nil)
		table.Append([]string{
			row.name,
			fmt.Sprintf("%.3f", row.measure(returns)),
			fmt.Sprintf("%.3f", interval.Lower),
			fmt.Sprintf("%.3f", interval.Upper),
		})
	}

	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	table.Render()
	return nil
}
