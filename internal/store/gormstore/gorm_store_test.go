package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ordercore/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleOrder(id string) *order.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return &order.Order{
		ID:          id,
		PortfolioID: "pf-1",
		Symbol:      "AAPL",
		Seq:         7,
		Type:        order.TypeStopLimit,
		Side:        order.SideSell,
		TimeInForce: order.TIFGTC,
		Quantity:    10,
		LimitPrice:  99,
		StopPrice:   100,
		Conditions: []order.Condition{
			{Field: "price", Op: order.OpLTE, Value: 100},
		},
		Status:      order.StatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

func TestGormStoreRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	o := sampleOrder("o-1")
	require.NoError(t, s.Save(ctx, o))

	got, err := s.Load(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, o.Symbol, got.Symbol)
	assert.Equal(t, o.Seq, got.Seq)
	assert.Equal(t, o.Type, got.Type)
	assert.Equal(t, o.Conditions, got.Conditions)
	assert.Equal(t, o.SubmittedAt, got.SubmittedAt)
}

func TestGormStoreUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	o := sampleOrder("o-1")
	require.NoError(t, s.Save(ctx, o))

	o.Status = order.StatusExecuted
	o.FillCount = 10
	o.AvgExecutionPrice = 99.5
	o.ExecutionReports = []order.ExecutionReport{{VenueExecID: "E-1", Quantity: 10, Price: 99.5}}
	require.NoError(t, s.Save(ctx, o))

	got, err := s.Load(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusExecuted, got.Status)
	assert.Equal(t, 10.0, got.FillCount)
	require.Len(t, got.ExecutionReports, 1)
	assert.Equal(t, "E-1", got.ExecutionReports[0].VenueExecID)
}

func TestGormStoreFindBySymbol(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a := sampleOrder("o-a")
	a.Seq = 2
	b := sampleOrder("o-b")
	b.Seq = 1
	c := sampleOrder("o-c")
	c.Symbol = "MSFT"
	done := sampleOrder("o-d")
	done.Seq = 3
	done.Status = order.StatusCancelled
	for _, o := range []*order.Order{a, b, c, done} {
		require.NoError(t, s.Save(ctx, o))
	}

	got, err := s.FindBySymbol(ctx, "aapl", order.StatusPending)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o-b", got[0].ID, "results come back in admission order")
	assert.Equal(t, "o-a", got[1].ID)

	all, err := s.FindBySymbol(ctx, "AAPL", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGormStoreRejectsEmptyID(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.Save(context.Background(), &order.Order{}))
	_, err := s.Load(context.Background(), "missing")
	assert.Error(t, err)
}
