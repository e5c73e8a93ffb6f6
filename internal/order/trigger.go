package order

import (
	"fmt"
	"strings"
)

type Operator string

const (
	OpGT      Operator = "GT"
	OpGTE     Operator = "GTE"
	OpLT      Operator = "LT"
	OpLTE     Operator = "LTE"
	OpEQ      Operator = "EQ"
	OpBetween Operator = "BETWEEN"
)

type Logical string

const (
	LogicalAnd Logical = "AND"
	LogicalOr  Logical = "OR"
)

// Condition is one predicate of a conditional (IF_TOUCHED / generic)
// order. Field is "price", "volume" or "indicator.<name>"; Logical combines
// this condition with the previous one in the list and is ignored on the
// first entry.
type Condition struct {
	Field   string   `json:"field"`
	Op      Operator `json:"operator"`
	Value   float64  `json:"value"`
	Value2  float64  `json:"value2,omitempty"`
	Logical Logical  `json:"logical_operator,omitempty"`
}

const indicatorPrefix = "indicator."

// Validate rejects malformed conditions up front so the evaluator never
// sees them.
func (c Condition) Validate() error {
	field := strings.ToLower(strings.TrimSpace(c.Field))
	switch {
	case field == "price", field == "volume":
	case strings.HasPrefix(field, indicatorPrefix) && len(field) > len(indicatorPrefix):
	default:
		return fmt.Errorf("condition field %q not recognized", c.Field)
	}
	switch c.Op {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ:
	case OpBetween:
		if PriceGT(c.Value, c.Value2) {
			return fmt.Errorf("BETWEEN bounds inverted: %v > %v", c.Value, c.Value2)
		}
	default:
		return fmt.Errorf("condition operator %q not recognized", c.Op)
	}
	switch c.Logical {
	case "", LogicalAnd, LogicalOr:
	default:
		return fmt.Errorf("logical operator %q not recognized", c.Logical)
	}
	return nil
}

// resolve extracts the condition's input from a tick. Missing indicators are
// an evaluation error, not a false: the order must stay PENDING and the
// error be reported, never silently swallowed.
func (c Condition) resolve(price, volume float64, indicators map[string]float64) (float64, error) {
	field := strings.ToLower(strings.TrimSpace(c.Field))
	switch {
	case field == "price":
		return price, nil
	case field == "volume":
		return volume, nil
	case strings.HasPrefix(field, indicatorPrefix):
		name := field[len(indicatorPrefix):]
		val, ok := indicators[name]
		if !ok {
			return 0, fmt.Errorf("indicator %q not present on tick", name)
		}
		return val, nil
	default:
		return 0, fmt.Errorf("condition field %q not recognized", c.Field)
	}
}

func (c Condition) holds(input float64) bool {
	switch c.Op {
	case OpGT:
		return PriceGT(input, c.Value)
	case OpGTE:
		return PriceGTE(input, c.Value)
	case OpLT:
		return PriceLT(input, c.Value)
	case OpLTE:
		return PriceLTE(input, c.Value)
	case OpEQ:
		return PriceEq(input, c.Value)
	case OpBetween:
		return PriceGTE(input, c.Value) && PriceLTE(input, c.Value2)
	default:
		return false
	}
}

// EvalConditions left-folds the condition list with AND/OR: condition i is
// combined with the accumulated result of conditions 0..i-1 using its own
// Logical operator.
func EvalConditions(conds []Condition, price, volume float64, indicators map[string]float64) (bool, error) {
	if len(conds) == 0 {
		return false, nil
	}
	input, err := conds[0].resolve(price, volume, indicators)
	if err != nil {
		return false, err
	}
	acc := conds[0].holds(input)
	for _, c := range conds[1:] {
		input, err := c.resolve(price, volume, indicators)
		if err != nil {
			return false, err
		}
		cur := c.holds(input)
		if c.Logical == LogicalOr {
			acc = acc || cur
		} else {
			acc = acc && cur
		}
	}
	return acc, nil
}
