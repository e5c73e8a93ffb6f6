package venue

import (
	"context"
	"testing"

	"ordercore/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitReq(typ order.Type, side order.Side, tif order.TimeInForce, qty, limit float64) SubmitRequest {
	return SubmitRequest{
		Order: order.Order{
			ID: "o-1", Symbol: "AAPL", Type: typ, Side: side,
			TimeInForce: tif, Quantity: qty, LimitPrice: limit,
			Status: order.StatusTriggered,
		},
		Quantity:    qty,
		TimeInForce: tif,
	}
}

func TestSimSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("market fills at the quote", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)
		fill, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		require.NoError(t, err)
		assert.Equal(t, 100.0, fill.Price)
		assert.Equal(t, 10.0, fill.Quantity)
		assert.NotEmpty(t, fill.VenueExecID)
	})

	t.Run("exec ids are unique", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)
		a, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 1, 0))
		require.NoError(t, err)
		b, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 1, 0))
		require.NoError(t, err)
		assert.NotEqual(t, a.VenueExecID, b.VenueExecID)
	})

	t.Run("missing quote is transient", func(t *testing.T) {
		s := NewSim()
		_, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		assert.ErrorIs(t, err, ErrTransient)
	})

	t.Run("buy limit marketability", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)

		fill, err := s.Submit(ctx, submitReq(order.TypeLimit, order.SideBuy, order.TIFGTC, 10, 101))
		require.NoError(t, err)
		assert.Equal(t, 100.0, fill.Price, "a marketable buy limit fills at the quote")

		_, err = s.Submit(ctx, submitReq(order.TypeLimit, order.SideBuy, order.TIFGTC, 10, 99))
		assert.ErrorIs(t, err, ErrTransient, "GTC away from the market keeps resting")

		_, err = s.Submit(ctx, submitReq(order.TypeLimit, order.SideBuy, order.TIFIOC, 10, 99))
		assert.ErrorIs(t, err, ErrUnfillable, "IOC away from the market is refused outright")
	})

	t.Run("sell limit marketability", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)
		_, err := s.Submit(ctx, submitReq(order.TypeLimit, order.SideSell, order.TIFIOC, 10, 101))
		assert.ErrorIs(t, err, ErrUnfillable)
		fill, err := s.Submit(ctx, submitReq(order.TypeLimit, order.SideSell, order.TIFGTC, 10, 99.5))
		require.NoError(t, err)
		assert.Equal(t, 100.0, fill.Price)
	})

	t.Run("liquidity caps and drains", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)
		s.SetLiquidity("AAPL", 6)

		fill, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		require.NoError(t, err)
		assert.Equal(t, 6.0, fill.Quantity)

		_, err = s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 4, 0))
		assert.ErrorIs(t, err, ErrUnfillable, "the book is empty now")
	})

	t.Run("fok refuses partial liquidity", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)
		s.SetLiquidity("AAPL", 6)
		_, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFFOK, 10, 0))
		assert.ErrorIs(t, err, ErrUnfillable)
	})

	t.Run("slice cap", func(t *testing.T) {
		s := NewSim()
		s.MaxSliceQty = 3
		s.SetQuote("AAPL", 100)
		fill, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		require.NoError(t, err)
		assert.Equal(t, 3.0, fill.Quantity)
	})

	t.Run("commission", func(t *testing.T) {
		s := NewSim()
		s.CommissionRate = 0.001
		s.SetQuote("AAPL", 100)
		fill, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, fill.Commission, 1e-9)
	})

	t.Run("injected failures", func(t *testing.T) {
		s := NewSim()
		s.SetQuote("AAPL", 100)
		s.FailNext(1)
		_, err := s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		assert.ErrorIs(t, err, ErrTransient)
		_, err = s.Submit(ctx, submitReq(order.TypeMarket, order.SideBuy, order.TIFGTC, 10, 0))
		assert.NoError(t, err)
	})
}

func TestParseFill(t *testing.T) {
	t.Run("first alternative wins", func(t *testing.T) {
		fill, err := ParseFill([]byte(`{"order_id":"o-1","exec_id":"E-1","qty":4,"price":101.5,"fee":0.2,"venue":"SIM"}`))
		require.NoError(t, err)
		assert.Equal(t, "o-1", fill.VenueOrderID)
		assert.Equal(t, "E-1", fill.VenueExecID)
		assert.Equal(t, 4.0, fill.Quantity)
		assert.Equal(t, 101.5, fill.Price)
		assert.Equal(t, 0.2, fill.Commission)
	})

	t.Run("camel case aliases", func(t *testing.T) {
		fill, err := ParseFill([]byte(`{"orderId":"o-2","tradeId":"T-9","filled_qty":2,"avg_price":99}`))
		require.NoError(t, err)
		assert.Equal(t, "o-2", fill.VenueOrderID)
		assert.Equal(t, "T-9", fill.VenueExecID)
	})

	t.Run("rejects junk", func(t *testing.T) {
		_, err := ParseFill([]byte(`not json`))
		assert.Error(t, err)
		_, err = ParseFill([]byte(`{"order_id":"o-1","qty":4,"price":100}`))
		assert.Error(t, err, "execution id is mandatory")
		_, err = ParseFill([]byte(`{"exec_id":"E-1","qty":0,"price":100}`))
		assert.Error(t, err, "quantity must be positive")
	})
}
