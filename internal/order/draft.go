package order

import (
	"errors"
	"fmt"
)

// ErrValidation marks a malformed draft. Validation failures are rejected
// synchronously and never create a record.
var ErrValidation = errors.New("order validation failed")

// Draft is a submission request before admission. Bracket drafts carry the
// two child prices; the engine expands them into dormant child records.
type Draft struct {
	PortfolioID string      `json:"portfolio_id"`
	Symbol      string      `json:"symbol"`
	Type        Type        `json:"type"`
	Side        Side        `json:"side"`
	TimeInForce TimeInForce `json:"time_in_force"`

	Quantity     float64 `json:"quantity"`
	LimitPrice   float64 `json:"limit_price,omitempty"`
	StopPrice    float64 `json:"stop_price,omitempty"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`

	TrailAmount  float64 `json:"trail_amount,omitempty"`
	TrailPercent float64 `json:"trail_percent,omitempty"`

	TakeProfitPrice float64 `json:"take_profit_price,omitempty"`
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`

	Conditions []Condition `json:"conditions,omitempty"`
}

func invalidf(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, v...))
}

// Validate checks structural consistency: quantity, enum membership and the
// price fields each type requires. Policy checks (risk limits, bracket
// ordering against the market) belong to the risk validator.
func (d Draft) Validate() error {
	if NormalizeSymbol(d.Symbol) == "" {
		return invalidf("symbol is required")
	}
	if d.PortfolioID == "" {
		return invalidf("portfolio id is required")
	}
	if d.Quantity <= 0 {
		return invalidf("quantity must be positive, got %v", d.Quantity)
	}
	switch d.Side {
	case SideBuy, SideSell:
	default:
		return invalidf("side %q not recognized", d.Side)
	}
	switch d.TimeInForce {
	case TIFDay, TIFGTC, TIFIOC, TIFFOK:
	default:
		return invalidf("time in force %q not recognized", d.TimeInForce)
	}

	switch d.Type {
	case TypeMarket:
	case TypeLimit:
		if d.LimitPrice <= 0 {
			return invalidf("limit order requires a limit price")
		}
	case TypeStopLoss:
		if d.StopPrice <= 0 {
			return invalidf("stop-loss order requires a stop price")
		}
	case TypeStopLimit:
		if d.StopPrice <= 0 || d.LimitPrice <= 0 {
			return invalidf("stop-limit order requires stop and limit prices")
		}
	case TypeTrailingStop:
		hasAmt := d.TrailAmount > 0
		hasPct := d.TrailPercent > 0
		if hasAmt == hasPct {
			return invalidf("trailing stop requires exactly one of trail amount or trail percent")
		}
		if hasPct && d.TrailPercent >= 1 {
			return invalidf("trail percent must be a fraction below 1, got %v", d.TrailPercent)
		}
	case TypeBracket:
		if d.LimitPrice <= 0 {
			return invalidf("bracket entry requires a limit price")
		}
		if d.TakeProfitPrice <= 0 || d.StopLossPrice <= 0 {
			return invalidf("bracket requires take-profit and stop-loss prices")
		}
	case TypeOCO:
		if d.LimitPrice <= 0 && d.StopPrice <= 0 {
			return invalidf("oco leg requires a limit or stop price")
		}
	case TypeIfTouched:
		if d.TriggerPrice <= 0 && len(d.Conditions) == 0 {
			return invalidf("if-touched order requires a trigger price or conditions")
		}
	default:
		return invalidf("order type %q not recognized", d.Type)
	}

	for i, c := range d.Conditions {
		if err := c.Validate(); err != nil {
			return invalidf("condition %d: %v", i, err)
		}
	}
	return nil
}
