package engine

import (
	"fmt"
	"time"

	"ordercore/internal/logger"
	"ordercore/internal/order"
	"ordercore/internal/venue"
)

// ApplyTransition attempts one state-machine transition and, when it
// applies, publishes the event and runs coordinator cascades. Illegal
// attempts (terminal order, wrong prior state) return false and change
// nothing.
func (e *Engine) ApplyTransition(id string, to order.Status, reason string) bool {
	prev, applied, err := e.book.Transition(id, to, reason)
	if err != nil {
		logger.Errorf("transition of %s to %s failed: %v", id, to, err)
		return false
	}
	if !applied {
		return false
	}
	o, _ := e.book.Get(id)
	e.afterTransition(o, prev, reason)
	return true
}

// ApplyFill folds one venue fill into an order under the CAS loop.
// Redelivered reports (same venue execution id) are no-ops, so at-least-
// once venue callbacks cannot double-count. Returns the updated snapshot
// and whether the order reached EXECUTED on this application.
func (e *Engine) ApplyFill(id string, fill venue.Fill) (*order.Order, bool, error) {
	if fill.VenueExecID == "" {
		return nil, false, fmt.Errorf("fill for %s missing venue execution id", id)
	}
	var prev order.Status
	var duplicate bool
	updated, err := e.book.Mutate(id, func(cur *order.Order) (*order.Order, error) {
		prev = cur.Status
		duplicate = false
		if cur.HasReport(fill.VenueExecID) {
			duplicate = true
			return nil, nil
		}
		if cur.Status != order.StatusTriggered && cur.Status != order.StatusPartiallyFilled {
			return nil, fmt.Errorf("fill %s arrived for order %s in status %s", fill.VenueExecID, id, cur.Status)
		}
		qty := fill.Quantity
		if remaining := cur.Remaining(); qty > remaining {
			logger.Warnf("fill %s overfills order %s (qty=%v remaining=%v), clamping", fill.VenueExecID, id, qty, remaining)
			qty = remaining
		}
		if qty <= 0 {
			duplicate = true
			return nil, nil
		}
		cur.AvgExecutionPrice = order.WeightedAvgPrice(cur.AvgExecutionPrice, cur.FillCount, fill.Price, qty)
		cur.FillCount += qty
		cur.Commission += fill.Commission
		cur.ExecutionReports = append(cur.ExecutionReports, order.ExecutionReport{
			VenueExecID: fill.VenueExecID,
			Timestamp:   time.Now().UTC(),
			Quantity:    qty,
			Price:       fill.Price,
			Commission:  fill.Commission,
			Venue:       fill.Venue,
		})
		next := order.StatusPartiallyFilled
		if order.PriceGTE(cur.FillCount, cur.Quantity) {
			cur.FillCount = cur.Quantity
			next = order.StatusExecuted
		}
		if next != cur.Status {
			if !CanTransition(cur.Status, next) {
				return nil, fmt.Errorf("fill %s would move %s illegally %s→%s", fill.VenueExecID, id, cur.Status, next)
			}
			cur.Status = next
		}
		return cur, nil
	})
	if err != nil {
		return updated, false, err
	}
	if duplicate {
		logger.Debugf("duplicate fill %s on order %s ignored", fill.VenueExecID, id)
		return updated, updated.Status == order.StatusExecuted, nil
	}
	logger.Auditf(id, "fill", "exec=%s qty=%v price=%v venue=%s", fill.VenueExecID, fill.Quantity, fill.Price, fill.Venue)
	if updated.Status != prev {
		e.afterTransition(updated, prev, "")
	} else {
		e.persist(updated)
	}
	return updated, updated.Status == order.StatusExecuted, nil
}

// afterTransition publishes the state change and runs the cascades that
// hang off terminal states. It operates on a snapshot only; every cascade
// goes back through the state machine, so racing writers stay safe.
func (e *Engine) afterTransition(o *order.Order, prev order.Status, reason string) {
	if o == nil {
		return
	}
	e.persist(o)
	logger.Auditf(o.ID, "transition", "%s→%s reason=%q", prev, o.Status, reason)
	e.bus.Publish(StateChange{
		OrderID:  o.ID,
		Symbol:   o.Symbol,
		Previous: prev,
		New:      o.Status,
		Reason:   reason,
		At:       o.UpdatedAt,
	})

	switch o.Status {
	case order.StatusExecuted:
		e.cascadeOCO(o)
		e.activateBracketChildren(o)
	case order.StatusCancelled, order.StatusExpired:
		e.eval.Unsubscribe(o.ID, o.Symbol)
		e.cancelBracketChildren(o)
	}
}
