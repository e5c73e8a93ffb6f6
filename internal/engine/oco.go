package engine

import (
	"ordercore/internal/logger"
	"ordercore/internal/order"
)

// cascadeOCO enforces "exactly one survivor": the instant a group member
// reaches EXECUTED, every sibling is cancelled. If two legs race to fill in
// the same tick batch, whichever fill CAS lands first wins; the loser's
// cancellation here is a no-op confirming a state that already exists.
//
// Legs on different symbols evaluate in parallel and venue submissions
// hold no order state, so both legs can be in flight at the venue before
// either cascade runs; in that window both legs' quantities are exposed
// to execution. Size leg quantities with that window in mind.
func (e *Engine) cascadeOCO(winner *order.Order) {
	if winner.OCOGroupID == "" {
		return
	}
	for _, id := range e.book.OCOGroup(winner.OCOGroupID) {
		if id == winner.ID {
			continue
		}
		if e.ApplyTransition(id, order.StatusCancelled, order.ReasonOCOSiblingFilled) {
			logger.Debugf("oco group %s: cancelled %s after %s filled", winner.OCOGroupID, id, winner.ID)
		}
	}
}
