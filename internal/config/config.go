// Package config loads the engine's YAML configuration through viper and
// validates it before anything starts.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ordercore/internal/scheduler"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", abs, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9985"
	}
	if c.Engine.Router.Workers <= 0 {
		c.Engine.Router.Workers = 4
	}
	if c.Engine.Router.MaxRetries <= 0 {
		c.Engine.Router.MaxRetries = 3
	}
	if c.Engine.Router.RetryBaseMillis <= 0 {
		c.Engine.Router.RetryBaseMillis = 100
	}
	if c.Engine.Router.RetryCapMillis <= 0 {
		c.Engine.Router.RetryCapMillis = 5000
	}
	if c.Engine.Router.SubmitTimeoutMS <= 0 {
		c.Engine.Router.SubmitTimeoutMS = 10000
	}
	if c.Portfolio.Cash <= 0 {
		c.Portfolio.Cash = 100_000
	}
	if c.Portfolio.Equity <= 0 {
		c.Portfolio.Equity = c.Portfolio.Cash
	}
	if c.Session.CloseAt == "" {
		c.Session.CloseAt = "21:00"
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = "UTC"
	}
	if c.Feed.Source == "" {
		c.Feed.Source = "none"
	}
	if c.Store.ArchiveSweep == "" {
		c.Store.ArchiveSweep = "1h"
	}
	if c.Venue.Kind == "" {
		c.Venue.Kind = "sim"
	}
}

func validate(c *Config) error {
	if _, err := time.Parse("15:04", c.Session.CloseAt); err != nil {
		return fmt.Errorf("session.close_at %q is not HH:MM", c.Session.CloseAt)
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone %q: %w", c.Session.Timezone, err)
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Store.ArchiveSweep); !ok {
		return fmt.Errorf("store.archive_sweep %q is not a valid interval", c.Store.ArchiveSweep)
	}
	switch strings.ToLower(c.Feed.Source) {
	case "none", "binance":
	default:
		return fmt.Errorf("feed.source %q not recognized", c.Feed.Source)
	}
	if strings.ToLower(c.Feed.Source) == "binance" && len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols required when feed.source is binance")
	}
	switch strings.ToLower(c.Venue.Kind) {
	case "sim":
	default:
		return fmt.Errorf("venue.kind %q not recognized", c.Venue.Kind)
	}
	return nil
}
