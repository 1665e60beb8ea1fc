package feed

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTicker(t *testing.T) {
	tt := []struct {
		input    string
		expected string
		valid    bool
	}{
		{" reliance ", "RELIANCE", true},
		{"M&M", "M&M", true},
		{"BAJAJ-AUTO", "BAJAJ-AUTO", true},
		{"tcs.bo", "TCS.BO", true},
		{"", "", false},
		{"INFY;DROP", "", false},
		{strings.Repeat("A", 21), "", false},
	}

	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			got, err := NormalizeTicker(tc.input)
			if !tc.valid {
				assert.ErrorIs(t, err, ErrInvalidTicker)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "TCS.NS", Symbol("TCS"))
	assert.Equal(t, "TCS.BO", Symbol("TCS.BO"))
}

func TestParsePeriod(t *testing.T) {
	duration, err := ParsePeriod("1mo")
	require.NoError(t, err)
	assert.Equal(t, 31*24*time.Hour, duration)

	duration, err = ParsePeriod("10d")
	require.NoError(t, err)
	assert.Equal(t, 240*time.Hour, duration)

	duration, err = ParsePeriod("max")
	require.NoError(t, err)
	assert.Zero(t, duration)

	_, err = ParsePeriod("forever")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	t.Run("header with dates", func(t *testing.T) {
		data := "date,open,high,low,close,volume\n" +
			"2024-01-03,12,13,11,12.5,300\n" +
			"2024-01-01,10,11,9,10.5,100\n" +
			"2024-01-02,11,12,10,11.5,200\n" +
			"2024-01-02,11,12,10,11.8,250\n"

		bars, err := ReadCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, bars, 3)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Time)
		assert.Equal(t, 11.8, bars[1].Close)
		assert.Equal(t, int64(250), bars[1].Volume)
	})

	t.Run("headerless unix seconds without volume", func(t *testing.T) {
		data := "1704067200,10,11,9,10.5\n1704153600,11,12,10,11.5\n"

		bars, err := ReadCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, bars, 2)
		assert.Equal(t, int64(1704067200), bars[0].Time.Unix())
		assert.Zero(t, bars[0].Volume)
		assert.False(t, core.HasVolume(bars))
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("time,open,close\n2024-01-01,1,2\n"))
		assert.Error(t, err)
	})

	t.Run("bad number", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("2024-01-01,1,x,1,1\n"))
		assert.Error(t, err)
	})
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	bars := []core.Bar{
		{Time: time.Unix(1704067200, 0).UTC(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: time.Unix(1704153600, 0).UTC(), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}

	buffer := bytes.NewBuffer(nil)
	require.NoError(t, WriteCSV(buffer, bars))

	read, err := ReadCSV(buffer)
	require.NoError(t, err)
	assert.Equal(t, bars, read)
}

func writeTickerFile(t *testing.T, dir, ticker string, days int) {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	buffer := bytes.NewBufferString("time,open,high,low,close,volume\n")
	for i := 0; i < days; i++ {
		buffer.WriteString(start.AddDate(0, 0, i).Format(dateLayout) + ",10,12,9,11,500\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ticker+".csv"), buffer.Bytes(), 0o600))
}

func TestCSVSource_History(t *testing.T) {
	dir := t.TempDir()
	writeTickerFile(t, dir, "TCS", 100)
	source := NewCSVSource(dir)

	bars, err := source.History(context.Background(), "tcs", "10d", "1d")
	require.NoError(t, err)
	assert.Len(t, bars, 10)

	bars, err = source.History(context.Background(), "TCS", "", "1d")
	require.NoError(t, err)
	assert.Len(t, bars, 100)

	_, err = source.History(context.Background(), "INFY", "1mo", "1d")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = source.History(context.Background(), "bad ticker", "1mo", "1d")
	assert.ErrorIs(t, err, ErrInvalidTicker)
}

func TestHTTPSource_History(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stock/RELIANCE/history", r.URL.Path)
		assert.Equal(t, "3mo", r.URL.Query().Get("period"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"time": "2024-01-02", "open": 2, "high": 3, "low": 1, "close": 2.5},
			{"time": 1704067200, "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 900}
		]`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	bars, err := source.History(context.Background(), "reliance", "3mo", "")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.5, bars[0].Close)
	assert.Equal(t, int64(900), bars[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[1].Time)
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"time": "2024-01-01", "open": 1, "high": 1, "low": 1, "close": 1}]`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, WithBackoff(time.Millisecond, 2*time.Millisecond))
	bars, err := source.History(context.Background(), "TCS", "1mo", "1d")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, WithRetries(2), WithBackoff(time.Millisecond, time.Millisecond))
	_, err := source.History(context.Background(), "TCS", "1mo", "1d")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_NotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	_, err := source.History(context.Background(), "NOPE", "1mo", "1d")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

type countingSource struct {
	calls int
	bars  []core.Bar
}

func (c *countingSource) History(_ context.Context, _, _, _ string) ([]core.Bar, error) {
	c.calls++
	return c.bars, nil
}

func TestCachedSource(t *testing.T) {
	upstream := &countingSource{bars: []core.Bar{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 7},
	}}

	cache, err := NewCachedSource(upstream, ":memory:", WithTTL(time.Hour))
	require.NoError(t, err)
	defer cache.Close()

	first, err := cache.History(context.Background(), "tcs", "1mo", "1d")
	require.NoError(t, err)
	second, err := cache.History(context.Background(), "TCS", "1mo", "1d")
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, first, second)

	_, err = cache.History(context.Background(), "TCS", "1y", "1d")
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedSource_EmptyPeriodIsDistinct(t *testing.T) {
	upstream := &countingSource{bars: []core.Bar{{Time: time.Unix(0, 0).UTC(), Close: 1}}}

	cache, err := NewCachedSource(upstream, "", WithTTL(time.Hour))
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.History(context.Background(), "TCS", "", "")
	require.NoError(t, err)
	_, err = cache.History(context.Background(), "TCS", DefaultPeriod, DefaultInterval)
	require.NoError(t, err)
	_, err = cache.History(context.Background(), "TCS", "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, upstream.calls)
	assert.NotEqual(t, cacheKey("TCS", "", ""), cacheKey("TCS", DefaultPeriod, DefaultInterval))
}

func TestCachedSource_Expiry(t *testing.T) {
	upstream := &countingSource{bars: []core.Bar{{Time: time.Unix(0, 0).UTC(), Close: 1}}}

	cache, err := NewCachedSource(upstream, "", WithTTL(20*time.Millisecond))
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.History(context.Background(), "TCS", "1mo", "1d")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = cache.History(context.Background(), "TCS", "1mo", "1d")
	require.NoError(t, err)

	assert.Equal(t, 2, upstream.calls)
}

func TestComparison(t *testing.T) {
	upstream := &countingSource{bars: []core.Bar{{Time: time.Unix(0, 0).UTC(), Close: 3}}}

	comparison, err := Comparison(context.Background(), upstream, " infy ", "1mo", "1d")
	require.NoError(t, err)
	assert.Equal(t, "INFY", comparison.Symbol)
	assert.Len(t, comparison.Points, 1)

	_, err = Comparison(context.Background(), upstream, "", "1mo", "1d")
	assert.ErrorIs(t, err, ErrInvalidTicker)
}
