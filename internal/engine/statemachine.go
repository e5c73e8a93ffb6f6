package engine

import (
	"errors"

	"ordercore/internal/order"
)

// transitions is the only legal state table. Anything not listed here is
// rejected as a logged no-op, which is what makes coordinator races safe:
// a transition attempt on an already-terminal order can never apply.
var transitions = map[order.Status][]order.Status{
	order.StatusPending: {
		order.StatusTriggered,
		order.StatusCancelled,
		order.StatusExpired,
	},
	order.StatusTriggered: {
		order.StatusPartiallyFilled,
		order.StatusExecuted,
		order.StatusCancelled,
	},
	order.StatusPartiallyFilled: {
		order.StatusExecuted,
		order.StatusCancelled,
	},
}

// ErrInvalidTransition marks a transition attempt outside the table. The
// attempt leaves the order untouched.
var ErrInvalidTransition = errors.New("illegal status transition")

// ErrOrderNotFound is returned for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

// CanTransition reports whether from→to is in the table.
func CanTransition(from, to order.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
