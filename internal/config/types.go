package config

import (
	"time"

	"ordercore/internal/risk"
)

type Config struct {
	App     AppConfig     `toml:"app"`
	Engine  EngineConfig  `toml:"engine"`
	Risk    risk.Limits   `toml:"risk"`
	// Portfolio seeds the default balances of the static snapshot provider.
	Portfolio PortfolioConfig `toml:"portfolio"`
	Session SessionConfig `toml:"session"`
	Feed    FeedConfig    `toml:"feed"`
	Store   StoreConfig   `toml:"store"`
	Venue   VenueConfig   `toml:"venue"`

	// Indicators the analytics enricher should maintain, e.g. "sma_20".
	Indicators []string `toml:"indicators"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	AuditLog string `toml:"audit_log"`
	HTTPAddr string `toml:"http_addr"`
}

type EngineConfig struct {
	PolicyPath string       `toml:"policy_path"`
	Router     RouterConfig `toml:"router"`
}

type RouterConfig struct {
	Workers         int    `toml:"workers"`
	MaxRetries      int    `toml:"max_retries"`
	RetryBaseMillis int    `toml:"retry_base_ms"`
	RetryCapMillis  int    `toml:"retry_cap_ms"`
	SubmitTimeoutMS int    `toml:"submit_timeout_ms"`
	DefaultPolicy   string `toml:"default_policy"`
}

func (r RouterConfig) RetryBase() time.Duration {
	return time.Duration(r.RetryBaseMillis) * time.Millisecond
}

func (r RouterConfig) RetryCap() time.Duration {
	return time.Duration(r.RetryCapMillis) * time.Millisecond
}

func (r RouterConfig) SubmitTimeout() time.Duration {
	return time.Duration(r.SubmitTimeoutMS) * time.Millisecond
}

type PortfolioConfig struct {
	Cash   float64 `toml:"cash"`
	Equity float64 `toml:"equity"`
}

type SessionConfig struct {
	// CloseAt is the daily DAY-order expiry boundary, "HH:MM".
	CloseAt  string `toml:"close_at"`
	Timezone string `toml:"timezone"`
}

type FeedConfig struct {
	// Source selects the market-data adapter: "binance" or "none".
	Source  string   `toml:"source"`
	Symbols []string `toml:"symbols"`
	Buffer  int      `toml:"buffer"`
}

type StoreConfig struct {
	OrdersPath   string `toml:"orders_path"`
	ArchivePath  string `toml:"archive_path"`
	ArchiveSweep string `toml:"archive_sweep"`
}

type VenueConfig struct {
	// Kind selects the venue adapter; "sim" is the only built-in.
	Kind           string  `toml:"kind"`
	CommissionRate float64 `toml:"commission_rate"`
	MaxSliceQty    float64 `toml:"max_slice_qty"`
}
