// Package config handles application configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/nsechart/pkg/core"
	"github.com/raykavin/nsechart/pkg/indicator"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// EnvPrefix prefixes every environment override, e.g. NSECHART_SERVER_PORT
const EnvPrefix = "NSECHART"

// Feed kinds
const (
	FeedCSV  = "csv"
	FeedHTTP = "http"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Log    LogConfig
	Server ServerConfig
	Feed   FeedConfig
	Chart  ChartConfig
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string
	TimeFormat string
	Colored    bool
	JSON       bool
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port  int
	Debug bool
}

// FeedConfig selects and configures the history source
type FeedConfig struct {
	Kind      string
	CSVDir    string
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	CachePath string
	CacheTTL  time.Duration
	Period    string
	Interval  string
}

// ChartConfig holds charting defaults
type ChartConfig struct {
	EMASeed indicator.Seed
	Theme   core.Theme
	Width   int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.time_format", "2006-01-02 15:04:05")
	v.SetDefault("log.colored", true)
	v.SetDefault("log.json", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)

	v.SetDefault("feed.kind", FeedCSV)
	v.SetDefault("feed.csv_dir", "./data")
	v.SetDefault("feed.base_url", "http://localhost:8000")
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.retries", 3)
	v.SetDefault("feed.cache_path", ":memory:")
	v.SetDefault("feed.cache_ttl", "1h")
	v.SetDefault("feed.period", "1mo")
	v.SetDefault("feed.interval", "1d")

	v.SetDefault("chart.ema_seed", "first")
	v.SetDefault("chart.theme", string(core.ThemeDark))
	v.SetDefault("chart.width", 1200)
}

// Load reads the configuration from defaults, the optional file at path and
// NSECHART_ environment variables, in increasing precedence
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	timeout, err := duration(v, "feed.timeout")
	if err != nil {
		return nil, err
	}

	ttl, err := duration(v, "feed.cache_ttl")
	if err != nil {
		return nil, err
	}

	seed, err := parseSeed(v.GetString("chart.ema_seed"))
	if err != nil {
		return nil, err
	}

	theme, err := core.ParseTheme(v.GetString("chart.theme"))
	if err != nil {
		return nil, fmt.Errorf("%w: chart.theme: %v", ErrInvalidConfig, err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			TimeFormat: v.GetString("log.time_format"),
			Colored:    v.GetBool("log.colored"),
			JSON:       v.GetBool("log.json"),
		},
		Server: ServerConfig{
			Port:  v.GetInt("server.port"),
			Debug: v.GetBool("server.debug"),
		},
		Feed: FeedConfig{
			Kind:      strings.ToLower(v.GetString("feed.kind")),
			CSVDir:    v.GetString("feed.csv_dir"),
			BaseURL:   v.GetString("feed.base_url"),
			Timeout:   timeout,
			Retries:   v.GetInt("feed.retries"),
			CachePath: v.GetString("feed.cache_path"),
			CacheTTL:  ttl,
			Period:    v.GetString("feed.period"),
			Interval:  v.GetString("feed.interval"),
		},
		Chart: ChartConfig{
			EMASeed: seed,
			Theme:   theme,
			Width:   v.GetInt("chart.width"),
		},
	}

	if cfg.Feed.Kind != FeedCSV && cfg.Feed.Kind != FeedHTTP {
		return nil, fmt.Errorf("%w: feed.kind must be %s or %s, got %q", ErrInvalidConfig, FeedCSV, FeedHTTP, cfg.Feed.Kind)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("%w: server.port %d", ErrInvalidConfig, cfg.Server.Port)
	}

	return cfg, nil
}

// duration reads a key as a go-str2duration string so values like 1d or 2w work
func duration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := str2duration.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return value, nil
}

func parseSeed(value string) (indicator.Seed, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "first":
		return indicator.SeedFirstClose, nil
	case "sma":
		return indicator.SeedSMA, nil
	default:
		return 0, fmt.Errorf("%w: chart.ema_seed must be first or sma, got %q", ErrInvalidConfig, value)
	}
}
