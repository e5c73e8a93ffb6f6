package order

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decOne     = decimal.NewFromInt(1)
	decimalEps = decimal.NewFromFloat(1e-8)
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// PriceCmp compares two float prices through decimal to avoid binary
// rounding artifacts at trigger boundaries.
func PriceCmp(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func PriceLTE(a, b float64) bool { return PriceCmp(a, b) <= 0 }
func PriceGTE(a, b float64) bool { return PriceCmp(a, b) >= 0 }
func PriceLT(a, b float64) bool  { return PriceCmp(a, b) < 0 }
func PriceGT(a, b float64) bool  { return PriceCmp(a, b) > 0 }

// PriceEq treats prices within the decimal epsilon as equal.
func PriceEq(a, b float64) bool {
	diff := decFromFloat(a).Sub(decFromFloat(b)).Abs()
	return diff.Cmp(decimalEps) <= 0
}

// StopBreached reports whether price has crossed stop in the direction
// adverse to the holder: at-or-below for a long stop (SELL order),
// at-or-above for a short stop (BUY order).
func StopBreached(side Side, price, stop float64) bool {
	if stop <= 0 || price <= 0 {
		return false
	}
	if side == SideSell {
		return PriceLTE(price, stop)
	}
	return PriceGTE(price, stop)
}

// Touched reports whether price has reached an if-touched trigger: buy side
// waits for a dip to the trigger, sell side for a rally to it.
func Touched(side Side, price, trigger float64) bool {
	if trigger <= 0 || price <= 0 {
		return false
	}
	if side == SideBuy {
		return PriceLTE(price, trigger)
	}
	return PriceGTE(price, trigger)
}

// FavorableHWM returns the ratcheted high-water mark for a trailing stop.
// A long guard (SELL trailing stop) ratchets up, a short guard ratchets
// down. The mark never moves against the position.
func FavorableHWM(side Side, hwm, price float64) float64 {
	if price <= 0 {
		return hwm
	}
	if hwm <= 0 {
		return price
	}
	if side == SideSell {
		if PriceGT(price, hwm) {
			return price
		}
		return hwm
	}
	if PriceLT(price, hwm) {
		return price
	}
	return hwm
}

// EffectiveTrailingStop derives the current stop level from the high-water
// mark and the trail. Exactly one of amount/percent is non-zero.
func EffectiveTrailingStop(side Side, hwm, trailAmount, trailPercent float64) float64 {
	if hwm <= 0 {
		return 0
	}
	mark := decFromFloat(hwm)
	var stop decimal.Decimal
	switch {
	case trailAmount > 0:
		delta := decFromFloat(trailAmount)
		if side == SideSell {
			stop = mark.Sub(delta)
		} else {
			stop = mark.Add(delta)
		}
	case trailPercent > 0:
		pct := decFromFloat(trailPercent)
		if side == SideSell {
			stop = mark.Mul(decOne.Sub(pct))
		} else {
			stop = mark.Mul(decOne.Add(pct))
		}
	default:
		return 0
	}
	if stop.Sign() <= 0 {
		return 0
	}
	return decToFloat(stop)
}

// WeightedAvgPrice folds one fill into a running quantity-weighted mean.
func WeightedAvgPrice(prevAvg, prevQty, fillPrice, fillQty float64) float64 {
	if fillQty <= 0 {
		return prevAvg
	}
	total := decFromFloat(prevQty).Add(decFromFloat(fillQty))
	if total.Sign() <= 0 {
		return prevAvg
	}
	sum := decFromFloat(prevAvg).Mul(decFromFloat(prevQty)).
		Add(decFromFloat(fillPrice).Mul(decFromFloat(fillQty)))
	return decToFloat(sum.Div(total))
}
