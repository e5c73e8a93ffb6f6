package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ordercore/internal/order"
)

// Sim is a deterministic paper venue. It fills against a quote table the
// caller keeps current, slices fills when MaxSliceQty is set, honors
// IOC/FOK against per-symbol liquidity and can inject transient failures.
type Sim struct {
	// MaxSliceQty caps the quantity filled per Submit call; zero means fill
	// everything available at once.
	MaxSliceQty float64
	// CommissionRate is charged per fill as rate × notional.
	CommissionRate float64

	mu        sync.Mutex
	quotes    map[string]float64
	liquidity map[string]float64
	failLeft  int

	execSeq atomic.Uint64
}

func NewSim() *Sim {
	return &Sim{
		quotes:    make(map[string]float64),
		liquidity: make(map[string]float64),
	}
}

func (s *Sim) Name() string { return "SIM" }

// SetQuote updates the marketable price for a symbol.
func (s *Sim) SetQuote(symbol string, price float64) {
	s.mu.Lock()
	s.quotes[order.NormalizeSymbol(symbol)] = price
	s.mu.Unlock()
}

// SetLiquidity caps the immediately fillable quantity for a symbol.
// Unset symbols have unlimited liquidity.
func (s *Sim) SetLiquidity(symbol string, qty float64) {
	s.mu.Lock()
	s.liquidity[order.NormalizeSymbol(symbol)] = qty
	s.mu.Unlock()
}

// FailNext makes the next n Submit calls fail transiently.
func (s *Sim) FailNext(n int) {
	s.mu.Lock()
	s.failLeft = n
	s.mu.Unlock()
}

func (s *Sim) Submit(ctx context.Context, req SubmitRequest) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	sym := order.NormalizeSymbol(req.Order.Symbol)

	s.mu.Lock()
	if s.failLeft > 0 {
		s.failLeft--
		s.mu.Unlock()
		return Fill{}, fmt.Errorf("%w: injected failure", ErrTransient)
	}
	quote, ok := s.quotes[sym]
	avail, hasLiq := s.liquidity[sym]
	s.mu.Unlock()

	if !ok || quote <= 0 {
		return Fill{}, fmt.Errorf("%w: no quote for %s", ErrTransient, sym)
	}
	want := req.Quantity
	if want <= 0 {
		want = req.Order.Remaining()
	}
	if want <= 0 {
		return Fill{}, fmt.Errorf("nothing to fill for order %s", req.Order.ID)
	}

	price, marketable := s.fillPrice(req.Order, quote)
	if !marketable {
		if req.TimeInForce == order.TIFIOC || req.TimeInForce == order.TIFFOK {
			return Fill{}, ErrUnfillable
		}
		return Fill{}, fmt.Errorf("%w: order %s not marketable at %v", ErrTransient, req.Order.ID, quote)
	}

	qty := want
	if hasLiq && avail < qty {
		if req.TimeInForce == order.TIFFOK {
			return Fill{}, ErrUnfillable
		}
		qty = avail
	}
	if qty <= 0 {
		return Fill{}, ErrUnfillable
	}
	if s.MaxSliceQty > 0 && qty > s.MaxSliceQty && req.TimeInForce != order.TIFFOK {
		qty = s.MaxSliceQty
	}

	fill := Fill{
		VenueOrderID: "SIM-" + req.Order.ID,
		VenueExecID:  fmt.Sprintf("SIM-EXEC-%d", s.execSeq.Add(1)),
		Quantity:     qty,
		Price:        price,
		Commission:   s.CommissionRate * price * qty,
		Venue:        s.Name(),
	}
	fill.Raw, _ = json.Marshal(map[string]any{
		"exec_id": fill.VenueExecID,
		"symbol":  sym,
		"qty":     qty,
		"price":   price,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if hasLiq {
		s.mu.Lock()
		s.liquidity[sym] = avail - qty
		s.mu.Unlock()
	}
	return fill, nil
}

// fillPrice decides marketability and the execution price for one order
// type against the current quote. Triggered stop orders execute like
// market (stop-loss) or limit (stop-limit) orders.
func (s *Sim) fillPrice(o order.Order, quote float64) (float64, bool) {
	switch o.Type {
	case order.TypeMarket, order.TypeStopLoss, order.TypeTrailingStop, order.TypeIfTouched:
		return quote, true
	case order.TypeLimit, order.TypeBracket, order.TypeOCO, order.TypeStopLimit:
		limit := o.LimitPrice
		if limit <= 0 {
			return quote, true
		}
		if o.Side == order.SideBuy {
			if order.PriceLTE(quote, limit) {
				return quote, true
			}
			return 0, false
		}
		if order.PriceGTE(quote, limit) {
			return quote, true
		}
		return 0, false
	default:
		return quote, true
	}
}

func (s *Sim) Cancel(ctx context.Context, venueOrderID string) error {
	return nil
}
