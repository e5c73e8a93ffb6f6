package risk

import (
	"context"
	"testing"

	"ordercore/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() Snapshot {
	return Snapshot{
		PortfolioID: "pf-1",
		Cash:        50_000,
		Equity:      100_000,
		Positions: map[string]Position{
			"AAPL": {Symbol: "AAPL", Quantity: 200, MarketValue: 35_000},
		},
	}
}

func marketBuy(symbol string, qty float64) order.Draft {
	return order.Draft{
		PortfolioID: "pf-1",
		Symbol:      symbol,
		Type:        order.TypeMarket,
		Side:        order.SideBuy,
		TimeInForce: order.TIFGTC,
		Quantity:    qty,
	}
}

func rejectionReason(t *testing.T, err error) string {
	t.Helper()
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	return rej.Reason
}

func TestValidatorCheck(t *testing.T) {
	v := NewValidator(Limits{})

	t.Run("admits a modest order", func(t *testing.T) {
		assert.NoError(t, v.Check(marketBuy("MSFT", 10), snapshot(), 300))
	})

	t.Run("structural validation runs first", func(t *testing.T) {
		d := marketBuy("MSFT", 0)
		err := v.Check(d, snapshot(), 300)
		assert.ErrorIs(t, err, order.ErrValidation)
	})

	t.Run("position size limit", func(t *testing.T) {
		// 300 × 100 = 30k notional > 25% of 100k equity.
		err := v.Check(marketBuy("MSFT", 300), snapshot(), 100)
		assert.Equal(t, ReasonPositionSizeLimit, rejectionReason(t, err))
	})

	t.Run("buying power", func(t *testing.T) {
		// 240 × 100 = 24k < 25k position cap but only 50k cash... use a
		// snapshot with less cash to isolate the check.
		snap := snapshot()
		snap.Cash = 20_000
		err := v.Check(marketBuy("MSFT", 240), snap, 100)
		assert.Equal(t, ReasonBuyingPower, rejectionReason(t, err))
	})

	t.Run("concentration counts the existing holding", func(t *testing.T) {
		// 10k of new AAPL on top of 35k held = 45% of equity > 40%.
		err := v.Check(marketBuy("AAPL", 100), snapshot(), 100)
		assert.Equal(t, ReasonConcentration, rejectionReason(t, err))
	})

	t.Run("sells are exempt from the buy-side checks", func(t *testing.T) {
		d := marketBuy("AAPL", 100)
		d.Side = order.SideSell
		assert.NoError(t, v.Check(d, snapshot(), 100))
	})

	t.Run("no reference price", func(t *testing.T) {
		err := v.Check(marketBuy("MSFT", 10), snapshot(), 0)
		assert.Equal(t, ReasonNoReferencePrice, rejectionReason(t, err))
	})

	t.Run("limit price anchors notional without a market price", func(t *testing.T) {
		d := marketBuy("MSFT", 10)
		d.Type = order.TypeLimit
		d.LimitPrice = 300
		assert.NoError(t, v.Check(d, snapshot(), 0))
	})
}

func TestBracketOrdering(t *testing.T) {
	v := NewValidator(Limits{})
	base := order.Draft{
		PortfolioID: "pf-1", Symbol: "MSFT", Type: order.TypeBracket,
		Side: order.SideBuy, TimeInForce: order.TIFGTC, Quantity: 10,
		LimitPrice: 98, TakeProfitPrice: 110, StopLossPrice: 95,
	}

	t.Run("well ordered buy bracket passes", func(t *testing.T) {
		assert.NoError(t, v.Check(base, snapshot(), 100))
	})

	t.Run("target below market fails", func(t *testing.T) {
		d := base
		d.TakeProfitPrice = 99
		err := v.Check(d, snapshot(), 100)
		assert.Equal(t, ReasonPriceOrdering, rejectionReason(t, err))
	})

	t.Run("stop above entry fails", func(t *testing.T) {
		d := base
		d.StopLossPrice = 99
		err := v.Check(d, snapshot(), 100)
		assert.Equal(t, ReasonPriceOrdering, rejectionReason(t, err))
	})

	t.Run("sell bracket mirrors the ordering", func(t *testing.T) {
		d := base
		d.Side = order.SideSell
		d.LimitPrice = 102
		d.TakeProfitPrice = 95
		d.StopLossPrice = 105
		assert.NoError(t, v.Check(d, snapshot(), 100))

		d.TakeProfitPrice = 101
		err := v.Check(d, snapshot(), 100)
		assert.Equal(t, ReasonPriceOrdering, rejectionReason(t, err))
	})
}

func TestSetLimitsHotReload(t *testing.T) {
	v := NewValidator(Limits{})
	d := marketBuy("MSFT", 200) // 20k notional, fine at 25%

	require.NoError(t, v.Check(d, snapshot(), 100))

	v.SetLimits(Limits{MaxPositionFraction: 0.10})
	err := v.Check(d, snapshot(), 100)
	assert.Equal(t, ReasonPositionSizeLimit, rejectionReason(t, err))

	// Zero values fall back to defaults, never to "no limit".
	v.SetLimits(Limits{})
	assert.Equal(t, 0.25, v.Limits().MaxPositionFraction)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(Snapshot{Cash: 1000, Equity: 1000})

	snap, err := p.GetSnapshot(context.Background(), "unseen")
	require.NoError(t, err)
	assert.Equal(t, "unseen", snap.PortfolioID)
	assert.Equal(t, 1000.0, snap.Cash)

	p.SetSnapshot(Snapshot{PortfolioID: "pf-9", Cash: 42})
	snap, err = p.GetSnapshot(context.Background(), "pf-9")
	require.NoError(t, err)
	assert.Equal(t, 42.0, snap.Cash)
}
