package orderhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ordercore/internal/engine"
	"ordercore/internal/order"
	"ordercore/internal/risk"
	"ordercore/internal/venue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records calls and serves canned orders; the HTTP layer is
// tested in isolation from the engine.
type fakeService struct {
	orders     map[string]*order.Order
	submitErr  error
	cancelErr  error
	fillErr    error
	lastDraft  order.Draft
	lastFill   venue.Fill
	lastCancel string
}

func newFakeService() *fakeService {
	return &fakeService{orders: make(map[string]*order.Order)}
}

func (f *fakeService) Submit(_ context.Context, d order.Draft) (*order.Order, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.lastDraft = d
	o := &order.Order{
		ID: fmt.Sprintf("o-%d", len(f.orders)+1), Symbol: order.NormalizeSymbol(d.Symbol),
		Type: d.Type, Side: d.Side, Quantity: d.Quantity, Status: order.StatusPending,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeService) SubmitOCO(ctx context.Context, drafts []order.Draft) ([]*order.Order, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	out := make([]*order.Order, 0, len(drafts))
	for _, d := range drafts {
		o, _ := f.Submit(ctx, d)
		o.OCOGroupID = "g-1"
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeService) Cancel(_ context.Context, id, reason string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	o, ok := f.orders[id]
	if !ok {
		return engine.ErrOrderNotFound
	}
	o.Status = order.StatusCancelled
	f.lastCancel = reason
	return nil
}

func (f *fakeService) Lookup(id string) (*order.Order, bool) {
	o, ok := f.orders[id]
	return o, ok
}

func (f *fakeService) Orders() []*order.Order {
	out := make([]*order.Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out
}

func (f *fakeService) Events(int) (<-chan engine.StateChange, func()) {
	ch := make(chan engine.StateChange)
	close(ch)
	return ch, func() {}
}

func (f *fakeService) ApplyFill(id string, fill venue.Fill) (*order.Order, bool, error) {
	if f.fillErr != nil {
		return nil, false, f.fillErr
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, false, engine.ErrOrderNotFound
	}
	f.lastFill = fill
	return o, true, nil
}

func newTestServer(t *testing.T, svc OrderService) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Addr: ":0", Engine: svc})
	require.NoError(t, err)
	return srv.Handler()
}

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSubmitEndpoint(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(t, svc)

	t.Run("valid draft is created", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "LIMIT",
			"side": "BUY", "time_in_force": "GTC", "quantity": 10, "limit_price": 100
		}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp struct {
			Order order.Order `json:"order"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "AAPL", resp.Order.Symbol)
	})

	t.Run("conditional draft reaches the engine decoded", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "IF_TOUCHED",
			"side": "BUY", "time_in_force": "GTC", "quantity": 10,
			"conditions": [
				{"field": "price", "operator": "LT", "value": 95},
				{"field": "indicator.rsi_14", "operator": "LT", "value": 30, "logical_operator": "AND"}
			]
		}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Len(t, svc.lastDraft.Conditions, 2)
		assert.Equal(t, order.OpLT, svc.lastDraft.Conditions[0].Op)
		assert.Equal(t, 95.0, svc.lastDraft.Conditions[0].Value)
		assert.Equal(t, order.LogicalAnd, svc.lastDraft.Conditions[1].Logical)
	})

	t.Run("condition with unknown keys is refused", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "IF_TOUCHED",
			"side": "BUY", "time_in_force": "GTC", "quantity": 10,
			"conditions": [{"field": "price", "op": "LT", "value": 95}]
		}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("schema violations come back 400 with a path", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "ICEBERG",
			"side": "BUY", "time_in_force": "GTC", "quantity": 10
		}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "type")
	})

	t.Run("negative quantity is refused before the engine sees it", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "MARKET",
			"side": "BUY", "time_in_force": "GTC", "quantity": -5
		}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation errors map to 400", func(t *testing.T) {
		svc.submitErr = fmt.Errorf("%w: no good", order.ErrValidation)
		defer func() { svc.submitErr = nil }()
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "MARKET",
			"side": "BUY", "time_in_force": "GTC", "quantity": 5
		}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("risk rejections map to 422", func(t *testing.T) {
		svc.submitErr = &risk.Rejection{Reason: risk.ReasonConcentration}
		defer func() { svc.submitErr = nil }()
		w := doJSON(h, http.MethodPost, "/api/orders", `{
			"portfolio_id": "pf-1", "symbol": "AAPL", "type": "MARKET",
			"side": "BUY", "time_in_force": "GTC", "quantity": 5
		}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), risk.ReasonConcentration)
	})
}

func TestSubmitOCOEndpoint(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(t, svc)

	t.Run("two legs accepted", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders/oco", `{"legs": [
			{"portfolio_id": "pf-1", "symbol": "AAPL", "type": "LIMIT",
			 "side": "SELL", "time_in_force": "GTC", "quantity": 10, "limit_price": 110},
			{"portfolio_id": "pf-1", "symbol": "AAPL", "type": "STOP_LOSS",
			 "side": "SELL", "time_in_force": "GTC", "quantity": 10, "stop_price": 95}
		]}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "g-1")
	})

	t.Run("single leg fails the schema", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders/oco", `{"legs": [
			{"portfolio_id": "pf-1", "symbol": "AAPL", "type": "LIMIT",
			 "side": "SELL", "time_in_force": "GTC", "quantity": 10, "limit_price": 110}
		]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetListCancelEndpoints(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(t, svc)
	o, _ := svc.Submit(context.Background(), order.Draft{Symbol: "AAPL", Type: order.TypeLimit, Side: order.SideBuy, Quantity: 10})
	svc.orders["o-msft"] = &order.Order{ID: "o-msft", Symbol: "MSFT", Status: order.StatusExecuted}

	t.Run("get", func(t *testing.T) {
		w := doJSON(h, http.MethodGet, "/api/orders/"+o.ID, "")
		assert.Equal(t, http.StatusOK, w.Code)
		w = doJSON(h, http.MethodGet, "/api/orders/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list filters", func(t *testing.T) {
		w := doJSON(h, http.MethodGet, "/api/orders?symbol=msft", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)

		w = doJSON(h, http.MethodGet, "/api/orders?status=executed", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
	})

	t.Run("cancel with reason", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders/"+o.ID+"/cancel", `{"reason": "changed my mind"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "changed my mind", svc.lastCancel)

		w = doJSON(h, http.MethodPost, "/api/orders/missing/cancel", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFillWebhook(t *testing.T) {
	svc := newFakeService()
	h := newTestServer(t, svc)
	o, _ := svc.Submit(context.Background(), order.Draft{Symbol: "AAPL", Type: order.TypeLimit, Side: order.SideBuy, Quantity: 10})

	t.Run("valid report applies", func(t *testing.T) {
		body := fmt.Sprintf(`{"order_id":"%s","exec_id":"E-1","qty":4,"price":101,"fee":0.1}`, o.ID)
		w := doJSON(h, http.MethodPost, "/api/orders/fills", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "E-1", svc.lastFill.VenueExecID)
		assert.Equal(t, 4.0, svc.lastFill.Quantity)
	})

	t.Run("unknown order 404s", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders/fills", `{"order_id":"zzz","exec_id":"E-2","qty":4,"price":101}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed report 400s", func(t *testing.T) {
		w := doJSON(h, http.MethodPost, "/api/orders/fills", `{"qty":4,"price":101}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, newFakeService())
	w := doJSON(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
