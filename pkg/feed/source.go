package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"
)

var (
	ErrNotFound         = errors.New("ticker not found")
	ErrInsufficientData = errors.New("insufficient data")
)

const (
	DefaultPeriod   = "1mo"
	DefaultInterval = "1d"
)

// Source loads daily history for a ticker
type Source interface {
	History(ctx context.Context, ticker, period, interval string) ([]core.Bar, error)
}

// periods maps calendar periods to durations that go-str2duration does not know
var periods = map[string]time.Duration{
	"1mo": 31 * 24 * time.Hour,
	"3mo": 92 * 24 * time.Hour,
	"6mo": 183 * 24 * time.Hour,
	"1y":  366 * 24 * time.Hour,
	"2y":  731 * 24 * time.Hour,
	"5y":  1827 * 24 * time.Hour,
}

// ParsePeriod converts a period such as 1mo, 1y, 90d or 2w into a duration.
// "max" and the empty string mean no limit and return zero.
func ParsePeriod(period string) (time.Duration, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" || period == "max" {
		return 0, nil
	}

	if duration, ok := periods[period]; ok {
		return duration, nil
	}

	duration, err := str2duration.ParseDuration(period)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", period, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid period %q", period)
	}
	return duration, nil
}

// Limit keeps the bars inside the window that ends at the last bar
func Limit(bars []core.Bar, window time.Duration) []core.Bar {
	if window <= 0 || len(bars) == 0 {
		return bars
	}

	start := bars[len(bars)-1].Time.Add(-window)
	return lo.Filter(bars, func(bar core.Bar, _ int) bool {
		return bar.Time.After(start)
	})
}

// normalize sorts bars ascending and drops repeated timestamps, keeping the last one
func normalize(bars []core.Bar) []core.Bar {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	unique := make([]core.Bar, 0, len(bars))
	for _, bar := range bars {
		if n := len(unique); n > 0 && unique[n-1].Time.Equal(bar.Time) {
			unique[n-1] = bar
			continue
		}
		unique = append(unique, bar)
	}
	return unique
}

// Comparison loads the overlay series of a comparison symbol
func Comparison(ctx context.Context, src Source, symbol, period, interval string) (*core.Comparison, error) {
	ticker, err := NormalizeTicker(symbol)
	if err != nil {
		return nil, err
	}

	bars, err := src.History(ctx, ticker, period, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to load comparison %s: %w", ticker, err)
	}

	return &core.Comparison{Symbol: ticker, Points: bars}, nil
}
