package engine

import (
	"ordercore/internal/logger"
	"ordercore/internal/order"

	"github.com/google/uuid"
)

// activateBracketChildren wakes the dormant profit-target and stop-loss
// legs once their entry order fills: they get a fresh shared OCO group id
// and join trigger evaluation. Until this moment neither child can move
// past PENDING.
func (e *Engine) activateBracketChildren(entry *order.Order) {
	children := e.book.ChildrenOf(entry.ID)
	if len(children) == 0 {
		return
	}
	groupID := uuid.NewString()
	for _, id := range children {
		updated, err := e.book.Mutate(id, func(cur *order.Order) (*order.Order, error) {
			if !cur.Dormant || cur.Status != order.StatusPending {
				return nil, nil
			}
			cur.Dormant = false
			cur.OCOGroupID = groupID
			return cur, nil
		})
		if err != nil {
			logger.Errorf("activating bracket child %s failed: %v", id, err)
			continue
		}
		if updated.Dormant || updated.Status != order.StatusPending {
			continue
		}
		e.book.JoinGroup(id, groupID)
		e.persist(updated)
		e.eval.Subscribe(updated)
		logger.Auditf(id, "activated", "bracket entry %s filled, oco group=%s", entry.ID, groupID)
	}
}

// cancelBracketChildren tears down dormant children when their entry dies
// before filling. Activated children are OCO siblings by then and are
// handled by the OCO cascade instead.
func (e *Engine) cancelBracketChildren(entry *order.Order) {
	for _, id := range e.book.ChildrenOf(entry.ID) {
		child, ok := e.book.Get(id)
		if !ok || !child.Dormant {
			continue
		}
		e.ApplyTransition(id, order.StatusCancelled, order.ReasonParentCancelled)
	}
}
