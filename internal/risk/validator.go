// Package risk implements the stateless pre-trade gate. It consumes a
// read-only portfolio snapshot and either admits a draft or rejects it with
// a named reason; it never mutates portfolio state.
package risk

import (
	"context"
	"fmt"
	"sync"

	"ordercore/internal/order"
)

// Position is one holding inside a snapshot.
type Position struct {
	Symbol      string
	Quantity    float64
	MarketValue float64
}

// Snapshot is the read-only portfolio view supplied by the ledger
// collaborator.
type Snapshot struct {
	PortfolioID string
	Cash        float64
	Equity      float64
	Positions   map[string]Position
}

// SnapshotProvider is implemented by the external portfolio service.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, portfolioID string) (Snapshot, error)
}

// Limits are the configured policy bounds. Fractions are of total equity.
type Limits struct {
	MaxPositionFraction      float64 `toml:"max_position_fraction"`
	MaxConcentrationFraction float64 `toml:"max_concentration_fraction"`
	DayTradeMultiplier       float64 `toml:"day_trade_multiplier"`
}

func (l Limits) withDefaults() Limits {
	if l.MaxPositionFraction <= 0 {
		l.MaxPositionFraction = 0.25
	}
	if l.MaxConcentrationFraction <= 0 {
		l.MaxConcentrationFraction = 0.40
	}
	if l.DayTradeMultiplier <= 0 {
		l.DayTradeMultiplier = 1
	}
	return l
}

// Named rejection reasons, one per distinct check.
const (
	ReasonPositionSizeLimit = "POSITION_SIZE_LIMIT"
	ReasonBuyingPower       = "INSUFFICIENT_BUYING_POWER"
	ReasonConcentration     = "CONCENTRATION_LIMIT"
	ReasonPriceOrdering     = "PRICE_ORDERING"
	ReasonNoReferencePrice  = "NO_REFERENCE_PRICE"
)

// Rejection is a policy refusal. Distinct from a validation error: the
// draft was well-formed but the portfolio may not carry it.
type Rejection struct {
	Reason string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("risk rejection: %s", r.Reason)
	}
	return fmt.Sprintf("risk rejection: %s (%s)", r.Reason, r.Detail)
}

func reject(reason, format string, v ...any) error {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, v...)}
}

// Validator holds the current limits. Limits are swappable at runtime so
// the config watcher can tighten them without a restart.
type Validator struct {
	mu     sync.RWMutex
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits.withDefaults()}
}

// SetLimits replaces the policy bounds atomically.
func (v *Validator) SetLimits(limits Limits) {
	v.mu.Lock()
	v.limits = limits.withDefaults()
	v.mu.Unlock()
}

func (v *Validator) Limits() Limits {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.limits
}

// Check admits or rejects a draft against a snapshot. refPrice is the last
// observed market price for the draft's symbol; it anchors notional math
// for market-style orders and the bracket ordering sanity check.
func (v *Validator) Check(d order.Draft, snap Snapshot, refPrice float64) error {
	if err := d.Validate(); err != nil {
		return err
	}
	limits := v.Limits()

	price := referencePrice(d, refPrice)
	if price <= 0 {
		return reject(ReasonNoReferencePrice, "no reference price for %s", d.Symbol)
	}
	notional := d.Quantity * price

	if snap.Equity > 0 && notional > limits.MaxPositionFraction*snap.Equity {
		return reject(ReasonPositionSizeLimit,
			"notional %.2f exceeds %.0f%% of equity %.2f",
			notional, limits.MaxPositionFraction*100, snap.Equity)
	}

	if d.Side == order.SideBuy {
		buyingPower := snap.Cash * limits.DayTradeMultiplier
		if notional > buyingPower {
			return reject(ReasonBuyingPower,
				"notional %.2f exceeds buying power %.2f", notional, buyingPower)
		}
		exposure := notional
		if pos, ok := snap.Positions[order.NormalizeSymbol(d.Symbol)]; ok {
			exposure += pos.MarketValue
		}
		if snap.Equity > 0 && exposure > limits.MaxConcentrationFraction*snap.Equity {
			return reject(ReasonConcentration,
				"exposure %.2f to %s exceeds %.0f%% of equity %.2f",
				exposure, d.Symbol, limits.MaxConcentrationFraction*100, snap.Equity)
		}
	}

	if d.Type == order.TypeBracket {
		if err := checkBracketOrdering(d, refPrice); err != nil {
			return err
		}
	}
	return nil
}

// checkBracketOrdering enforces profit target / entry / stop ordering
// relative to the current market: for a BUY bracket the target sits above
// the market and the stop below it, mirrored for SELL.
func checkBracketOrdering(d order.Draft, refPrice float64) error {
	tp, sl := d.TakeProfitPrice, d.StopLossPrice
	if d.Side == order.SideBuy {
		if !order.PriceGT(tp, refPrice) || !order.PriceGT(refPrice, sl) {
			return reject(ReasonPriceOrdering,
				"buy bracket requires target %.2f > market %.2f > stop %.2f", tp, refPrice, sl)
		}
		if !order.PriceGT(tp, d.LimitPrice) || !order.PriceGT(d.LimitPrice, sl) {
			return reject(ReasonPriceOrdering,
				"buy bracket requires target %.2f > entry %.2f > stop %.2f", tp, d.LimitPrice, sl)
		}
		return nil
	}
	if !order.PriceLT(tp, refPrice) || !order.PriceLT(refPrice, sl) {
		return reject(ReasonPriceOrdering,
			"sell bracket requires target %.2f < market %.2f < stop %.2f", tp, refPrice, sl)
	}
	if !order.PriceLT(tp, d.LimitPrice) || !order.PriceLT(d.LimitPrice, sl) {
		return reject(ReasonPriceOrdering,
			"sell bracket requires target %.2f < entry %.2f < stop %.2f", tp, d.LimitPrice, sl)
	}
	return nil
}

func referencePrice(d order.Draft, refPrice float64) float64 {
	switch {
	case d.LimitPrice > 0:
		return d.LimitPrice
	case d.StopPrice > 0:
		return d.StopPrice
	case d.TriggerPrice > 0:
		return d.TriggerPrice
	default:
		return refPrice
	}
}
