package binance

import (
	"testing"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExchangeSymbol(t *testing.T) {
	assert.Equal(t, "ETHUSDT", normalizeExchangeSymbol(" eth/usdt "))
	assert.Equal(t, "BTCUSDT", normalizeExchangeSymbol("BTCUSDT"))
	assert.Equal(t, "", normalizeExchangeSymbol("  "))
}

func TestConvertAggTrade(t *testing.T) {
	tick, ok := convertAggTrade(&gobinance.WsAggTradeEvent{
		Symbol: "btcusdt", Price: "50000.5", Quantity: "0.25", TradeTime: 1700000000000,
	})
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
	assert.Equal(t, 50000.5, tick.Price)
	assert.Equal(t, 0.25, tick.Volume)
	assert.Equal(t, time.UnixMilli(1700000000000), tick.Timestamp)

	_, ok = convertAggTrade(nil)
	assert.False(t, ok)
	_, ok = convertAggTrade(&gobinance.WsAggTradeEvent{Price: "abc", Quantity: "1"})
	assert.False(t, ok)
	_, ok = convertAggTrade(&gobinance.WsAggTradeEvent{Price: "0", Quantity: "1"})
	assert.False(t, ok)
}

func TestNextDelayCaps(t *testing.T) {
	d := time.Second
	for i := 0; i < 10; i++ {
		d = nextDelay(d)
	}
	assert.Equal(t, 30*time.Second, d)
}
