package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/logger"
	logzero "github.com/raykavin/nsechart/pkg/logger/zerolog"
)

// HTTPSource loads history from a market-data backend serving
// GET {BaseURL}/api/stock/{ticker}/history?period=&interval=
type HTTPSource struct {
	baseURL string
	client  *http.Client
	retries int
	backoff func() *backoff.Backoff
	log     logger.Logger
}

// HTTPOption configures an HTTPSource
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithTimeout sets the per-request timeout of the default client
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.client.Timeout = timeout
	}
}

// WithRetries sets how many times a failed request is retried
func WithRetries(retries int) HTTPOption {
	return func(s *HTTPSource) {
		s.retries = max(retries, 0)
	}
}

// WithBackoff sets the delay bounds between retries
func WithBackoff(minDelay, maxDelay time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.backoff = func() *backoff.Backoff {
			return &backoff.Backoff{Min: minDelay, Max: maxDelay, Factor: 2}
		}
	}
}

// WithSourceLogger sets the source logger
func WithSourceLogger(log logger.Logger) HTTPOption {
	return func(s *HTTPSource) {
		s.log = log
	}
}

// NewHTTPSource creates a source for a backend base URL
func NewHTTPSource(baseURL string, options ...HTTPOption) *HTTPSource {
	source := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 3,
		log:     logzero.Discard(),
	}
	WithBackoff(100*time.Millisecond, time.Second)(source)

	for _, option := range options {
		option(source)
	}

	return source
}

// History fetches the bars of a ticker, retrying transport errors and 5xx responses
func (s *HTTPSource) History(ctx context.Context, ticker, period, interval string) ([]core.Bar, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	if period == "" {
		period = DefaultPeriod
	}
	if interval == "" {
		interval = DefaultInterval
	}

	query := url.Values{"period": {period}, "interval": {interval}}
	endpoint := fmt.Sprintf("%s/api/stock/%s/history?%s", s.baseURL, url.PathEscape(ticker), query.Encode())

	retry := s.backoff()
	for {
		bars, err := s.fetch(ctx, endpoint)
		if err == nil {
			return normalize(bars), nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return nil, permanent.err
		}

		if int(retry.Attempt()) >= s.retries {
			return nil, fmt.Errorf("failed to fetch %s history: %w", ticker, err)
		}

		delay := retry.Duration()
		s.log.WithFields(map[string]any{
			"ticker":  ticker,
			"attempt": int(retry.Attempt()),
			"delay":   delay.String(),
		}).WithError(err).Warn("history request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// permanentError marks failures that retrying cannot fix
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (s *HTTPSource) fetch(ctx context.Context, endpoint string) ([]core.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &permanentError{err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &permanentError{ctx.Err()}
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &permanentError{ErrNotFound}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("backend returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &permanentError{fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(body)))}
	}

	var payload []historyBar
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &permanentError{fmt.Errorf("failed to decode history: %w", err)}
	}

	bars := make([]core.Bar, 0, len(payload))
	for _, item := range payload {
		bars = append(bars, item.bar())
	}
	return bars, nil
}

// historyBar is one element of the backend history payload. Time is either
// a yyyy-mm-dd string or unix seconds.
type historyBar struct {
	Time   historyTime `json:"time"`
	Open   float64     `json:"open"`
	High   float64     `json:"high"`
	Low    float64     `json:"low"`
	Close  float64     `json:"close"`
	Volume float64     `json:"volume,omitempty"`
}

func (h historyBar) bar() core.Bar {
	return core.Bar{
		Time:   time.Time(h.Time),
		Open:   h.Open,
		High:   h.High,
		Low:    h.Low,
		Close:  h.Close,
		Volume: int64(h.Volume),
	}
}

type historyTime time.Time

func (t *historyTime) UnmarshalJSON(data []byte) error {
	var seconds int64
	if err := json.Unmarshal(data, &seconds); err == nil {
		*t = historyTime(time.Unix(seconds, 0).UTC())
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid time %s", data)
	}

	parsed, err := parseTime(raw)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", raw, err)
	}
	*t = historyTime(parsed)
	return nil
}
