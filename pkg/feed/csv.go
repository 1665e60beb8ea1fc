package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
)

const dateLayout = "2006-01-02"

var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5,
}

// CSVSource reads daily bars from <Dir>/<TICKER>.csv
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a source over a directory of CSV files
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// History reads the ticker file and keeps the bars inside period
func (c *CSVSource) History(ctx context.Context, ticker, period, _ string) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	window, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(c.Dir, ticker+".csv"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bars, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ticker, err)
	}

	return Limit(bars, window), nil
}

// ReadCSV parses bars from CSV. A header row is optional; without one the
// columns are time, open, high, low, close and an optional volume.
func ReadCSV(r io.Reader) ([]core.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return []core.Bar{}, nil
	}

	headerMap, hasHeader, err := parseHeaders(lines[0])
	if err != nil {
		return nil, err
	}
	if hasHeader {
		lines = lines[1:]
	}

	bars := make([]core.Bar, 0, len(lines))
	for i, line := range lines {
		bar, err := parseBar(line, headerMap)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}

	return normalize(bars), nil
}

func parseHeaders(headers []string) (map[string]int, bool, error) {
	if _, err := parseTime(headers[0]); err == nil {
		return defaultHeaderMap, false, nil
	}

	headerMap := make(map[string]int, len(headers))
	for index, header := range headers {
		header = strings.ToLower(strings.TrimSpace(header))
		if header == "date" {
			header = "time"
		}
		headerMap[header] = index
	}

	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := headerMap[required]; !ok {
			return nil, true, fmt.Errorf("missing %q column", required)
		}
	}

	return headerMap, true, nil
}

func parseBar(line []string, headerMap map[string]int) (core.Bar, error) {
	field := func(name string) (string, bool) {
		index, ok := headerMap[name]
		if !ok || index >= len(line) {
			return "", false
		}
		return strings.TrimSpace(line[index]), true
	}

	raw, _ := field("time")
	timestamp, err := parseTime(raw)
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{Time: timestamp}
	for name, target := range map[string]*float64{
		"open": &bar.Open, "high": &bar.High, "low": &bar.Low, "close": &bar.Close,
	} {
		raw, ok := field(name)
		if !ok {
			return core.Bar{}, fmt.Errorf("missing %s", name)
		}
		if *target, err = strconv.ParseFloat(raw, 64); err != nil {
			return core.Bar{}, fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if raw, ok := field("volume"); ok && raw != "" {
		volume, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("invalid volume: %w", err)
		}
		bar.Volume = int64(volume)
	}

	return bar, nil
}

// parseTime accepts unix seconds or a yyyy-mm-dd date
func parseTime(raw string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	return time.Parse(dateLayout, raw)
}

// WriteCSV writes bars with a header row in the layout ReadCSV accepts
func WriteCSV(w io.Writer, bars []core.Bar) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("failed writing CSV header: %w", err)
	}

	for _, bar := range bars {
		if err := writer.Write(bar.ToSlice(2)); err != nil {
			return fmt.Errorf("failed writing CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
