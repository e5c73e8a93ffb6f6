// Package order defines the order record, its closed enums and the pure
// predicate/price math shared by the trigger evaluator and the execution
// router. Records are treated as immutable snapshots; all mutation happens
// through copy-on-write in the engine's book.
package order

import (
	"strings"
	"time"
)

type Type string

const (
	TypeMarket       Type = "MARKET"
	TypeLimit        Type = "LIMIT"
	TypeStopLoss     Type = "STOP_LOSS"
	TypeStopLimit    Type = "STOP_LIMIT"
	TypeTrailingStop Type = "TRAILING_STOP"
	TypeBracket      Type = "BRACKET"
	TypeOCO          Type = "OCO"
	TypeIfTouched    Type = "IF_TOUCHED"
)

// Types lists every order type once; exhaustive switches in the evaluator
// and router are checked against it in tests.
var Types = []Type{
	TypeMarket, TypeLimit, TypeStopLoss, TypeStopLimit,
	TypeTrailingStop, TypeBracket, TypeOCO, TypeIfTouched,
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusTriggered       Status = "TRIGGERED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusExecuted        Status = "EXECUTED"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusExecuted, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Well-known cancellation reasons. Free-form reasons (user text) are allowed
// everywhere a reason is accepted.
const (
	ReasonOCOSiblingFilled = "OCO_SIBLING_FILLED"
	ReasonParentCancelled  = "BRACKET_PARENT_CANCELLED"
	ReasonExecutionFailed  = "EXECUTION_FAILED"
	ReasonIOCUnfilled      = "IOC_UNFILLED"
	ReasonFOKUnfilled      = "FOK_UNFILLED"
	ReasonDayEnd           = "DAY_SESSION_END"
	ReasonUserRequested    = "USER_REQUESTED"
)

// ExecutionReport is one venue-confirmed fill slice. VenueExecID is the
// venue's idempotency key: re-delivering a report with a seen id is a no-op.
type ExecutionReport struct {
	VenueExecID string    `json:"venue_exec_id"`
	Timestamp   time.Time `json:"timestamp"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Commission  float64   `json:"commission"`
	Venue       string    `json:"venue"`
}

// Order is the persisted record. Everything needed to evaluate, route and
// coordinate the order lives on the record itself; group membership is
// expressed only through id fields (ParentOrderID, OCOGroupID), never
// through object references.
type Order struct {
	ID          string `json:"id"`
	PortfolioID string `json:"portfolio_id"`
	Symbol      string `json:"symbol"`
	// Seq is assigned at admission and is strictly increasing across the
	// engine. It is the deterministic tie-break when several orders fire on
	// the same tick: lower Seq is evaluated, and therefore dispatched, first.
	Seq uint64 `json:"seq"`

	Type        Type        `json:"type"`
	Side        Side        `json:"side"`
	TimeInForce TimeInForce `json:"time_in_force"`

	Quantity     float64 `json:"quantity"`
	LimitPrice   float64 `json:"limit_price,omitempty"`
	StopPrice    float64 `json:"stop_price,omitempty"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`

	// Exactly one of TrailAmount/TrailPercent is set for TRAILING_STOP.
	TrailAmount   float64 `json:"trail_amount,omitempty"`
	TrailPercent  float64 `json:"trail_percent,omitempty"`
	HighWaterMark float64 `json:"high_water_mark,omitempty"`

	ParentOrderID string `json:"parent_order_id,omitempty"`
	OCOGroupID    string `json:"oco_group_id,omitempty"`
	// Dormant marks a bracket child that exists but must not be evaluated
	// until its entry order fills.
	Dormant bool `json:"dormant,omitempty"`

	Conditions []Condition `json:"conditions,omitempty"`

	Status             Status            `json:"status"`
	FillCount          float64           `json:"fill_count"`
	AvgExecutionPrice  float64           `json:"avg_execution_price"`
	Commission         float64           `json:"commission"`
	ExecutionReports   []ExecutionReport `json:"execution_reports,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() float64 {
	r := o.Quantity - o.FillCount
	if r < 0 {
		return 0
	}
	return r
}

// ProtectsLong reports whether a stop-style order guards a long position.
// A SELL stop exits a long; a BUY stop exits a short.
func (o *Order) ProtectsLong() bool {
	return o.Side == SideSell
}

// Clone returns a deep copy so that book snapshots can be mutated and
// swapped in without aliasing the published record.
func (o *Order) Clone() *Order {
	cp := *o
	if len(o.ExecutionReports) > 0 {
		cp.ExecutionReports = make([]ExecutionReport, len(o.ExecutionReports))
		copy(cp.ExecutionReports, o.ExecutionReports)
	}
	if len(o.Conditions) > 0 {
		cp.Conditions = make([]Condition, len(o.Conditions))
		copy(cp.Conditions, o.Conditions)
	}
	return &cp
}

// HasReport reports whether a venue execution id was already applied.
func (o *Order) HasReport(venueExecID string) bool {
	for _, r := range o.ExecutionReports {
		if r.VenueExecID == venueExecID {
			return true
		}
	}
	return false
}

// NormalizeSymbol uppercases and trims a symbol key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
