package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  env: test
  log_level: debug
  http_addr: ":8088"
engine:
  router:
    workers: 8
    retry_base_ms: 50
risk:
  max_position_fraction: 0.2
portfolio:
  cash: 250000
session:
  close_at: "16:00"
  timezone: America/New_York
feed:
  source: binance
  symbols: [BTCUSDT]
venue:
  commission_rate: 0.001
indicators: [sma_20]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":8088", cfg.App.HTTPAddr)
	assert.Equal(t, 8, cfg.Engine.Router.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.Router.RetryBase())
	assert.Equal(t, 0.2, cfg.Risk.MaxPositionFraction)
	assert.Equal(t, 250000.0, cfg.Portfolio.Cash)
	assert.Equal(t, "16:00", cfg.Session.CloseAt)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Feed.Symbols)
	assert.Equal(t, 0.001, cfg.Venue.CommissionRate)
	assert.Equal(t, []string{"sma_20"}, cfg.Indicators)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
	assert.Equal(t, 4, cfg.Engine.Router.Workers)
	assert.Equal(t, 3, cfg.Engine.Router.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Engine.Router.SubmitTimeout())
	assert.Equal(t, 100000.0, cfg.Portfolio.Cash)
	assert.Equal(t, cfg.Portfolio.Cash, cfg.Portfolio.Equity)
	assert.Equal(t, "21:00", cfg.Session.CloseAt)
	assert.Equal(t, "UTC", cfg.Session.Timezone)
	assert.Equal(t, "none", cfg.Feed.Source)
	assert.Equal(t, "sim", cfg.Venue.Kind)
	assert.Equal(t, "1h", cfg.Store.ArchiveSweep)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad close_at", "session:\n  close_at: \"25:99\"\n"},
		{"bad timezone", "session:\n  timezone: Mars/Olympus\n"},
		{"bad sweep", "store:\n  archive_sweep: fortnightly\n"},
		{"unknown feed", "feed:\n  source: carrier-pigeon\n"},
		{"binance without symbols", "feed:\n  source: binance\n"},
		{"unknown venue", "venue:\n  kind: nyse\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := Load("")
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
