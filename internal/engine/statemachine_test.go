package engine

import (
	"testing"

	"ordercore/internal/order"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]order.Status]bool{}
	for _, pair := range [][2]order.Status{
		{order.StatusPending, order.StatusTriggered},
		{order.StatusPending, order.StatusCancelled},
		{order.StatusPending, order.StatusExpired},
		{order.StatusTriggered, order.StatusPartiallyFilled},
		{order.StatusTriggered, order.StatusExecuted},
		{order.StatusTriggered, order.StatusCancelled},
		{order.StatusPartiallyFilled, order.StatusExecuted},
		{order.StatusPartiallyFilled, order.StatusCancelled},
	} {
		allowed[pair] = true
	}
	all := []order.Status{
		order.StatusPending, order.StatusTriggered, order.StatusPartiallyFilled,
		order.StatusExecuted, order.StatusCancelled, order.StatusExpired,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]order.Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s→%s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []order.Status{order.StatusExecuted, order.StatusCancelled, order.StatusExpired} {
		assert.True(t, from.Terminal())
		assert.Empty(t, transitions[from])
	}
}
