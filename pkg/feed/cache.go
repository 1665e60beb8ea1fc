package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/logger"
	logzero "github.com/raykavin/nsechart/pkg/logger/zerolog"
	"github.com/tidwall/buntdb"
)

const DefaultCacheTTL = time.Hour

// CachedSource serves history from a buntdb cache, falling back to the wrapped
// source on a miss. Entries expire after the configured TTL.
type CachedSource struct {
	source Source
	db     *buntdb.DB
	ttl    time.Duration
	log    logger.Logger
}

// CacheOption configures a CachedSource
type CacheOption func(*CachedSource)

// WithTTL sets how long cached history stays valid
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedSource) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the cache logger
func WithCacheLogger(log logger.Logger) CacheOption {
	return func(c *CachedSource) {
		c.log = log
	}
}

// NewCachedSource wraps source with a cache stored at path, or in memory for ":memory:"
func NewCachedSource(source Source, path string, options ...CacheOption) (*CachedSource, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	cache := &CachedSource{
		source: source,
		db:     db,
		ttl:    DefaultCacheTTL,
		log:    logzero.Discard(),
	}

	for _, option := range options {
		option(cache)
	}

	return cache, nil
}

// History returns cached bars when present and loads and stores them otherwise
func (c *CachedSource) History(ctx context.Context, ticker, period, interval string) ([]core.Bar, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	key := cacheKey(ticker, period, interval)
	bars, err := c.get(key)
	if err == nil {
		c.log.WithField("ticker", ticker).Debug("history served from cache")
		return bars, nil
	}
	if !errors.Is(err, buntdb.ErrNotFound) {
		c.log.WithField("ticker", ticker).WithError(err).Warn("failed to read history cache")
	}

	bars, err = c.source.History(ctx, ticker, period, interval)
	if err != nil {
		return nil, err
	}

	if err := c.set(key, bars); err != nil {
		c.log.WithField("ticker", ticker).WithError(err).Warn("failed to store history cache")
	}

	return bars, nil
}

// Close releases the cache database
func (c *CachedSource) Close() error {
	return c.db.Close()
}

func (c *CachedSource) get(key string) ([]core.Bar, error) {
	var bars []core.Bar
	err := c.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &bars)
	})
	return bars, err
}

func (c *CachedSource) set(key string, bars []core.Bar) error {
	content, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("failed to marshal bars: %w", err)
	}

	return c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(content), &buntdb.SetOptions{Expires: true, TTL: c.ttl})
		return err
	})
}

// cacheKey keys on the raw window; the wrapped source decides what an empty period means
func cacheKey(ticker, period, interval string) string {
	return fmt.Sprintf("%s_%s_%s", ticker, period, interval)
}
