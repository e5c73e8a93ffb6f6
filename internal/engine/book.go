package engine

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ordercore/internal/logger"
	"ordercore/internal/order"
)

// Book is the in-memory arena of order records. Each slot holds an
// immutable snapshot behind an atomic pointer; every mutation is a
// read-copy-update compare-and-swap, so a status transition is a single
// linearizable read-modify-write and concurrent writers from different
// symbol partitions never need a shared lock. The maps guarded by mu are
// membership indexes only, never order state.
type Book struct {
	mu       sync.RWMutex
	recs     map[string]*atomic.Pointer[order.Order]
	bySymbol map[string]map[string]struct{}
	byGroup  map[string]map[string]struct{}
	byParent map[string]map[string]struct{}

	seq atomic.Uint64
}

func NewBook() *Book {
	return &Book{
		recs:     make(map[string]*atomic.Pointer[order.Order]),
		bySymbol: make(map[string]map[string]struct{}),
		byGroup:  make(map[string]map[string]struct{}),
		byParent: make(map[string]map[string]struct{}),
	}
}

// Insert admits a record and assigns its tie-break sequence number.
func (b *Book) Insert(o *order.Order) {
	o = o.Clone()
	o.Seq = b.seq.Add(1)
	ptr := &atomic.Pointer[order.Order]{}
	ptr.Store(o)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs[o.ID] = ptr
	addIndex(b.bySymbol, order.NormalizeSymbol(o.Symbol), o.ID)
	if o.OCOGroupID != "" {
		addIndex(b.byGroup, o.OCOGroupID, o.ID)
	}
	if o.ParentOrderID != "" {
		addIndex(b.byParent, o.ParentOrderID, o.ID)
	}
}

func addIndex(idx map[string]map[string]struct{}, key, id string) {
	if key == "" {
		return
	}
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

// Get returns the current snapshot. Callers must not mutate it.
func (b *Book) Get(id string) (*order.Order, bool) {
	b.mu.RLock()
	ptr, ok := b.recs[id]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ptr.Load(), true
}

// Mutate applies fn under a CAS loop. fn receives a private clone of the
// current snapshot and may return nil to signal a deliberate no-op. A
// failed swap means another writer got there first; the loop re-reads and
// re-decides against the fresh state.
func (b *Book) Mutate(id string, fn func(cur *order.Order) (*order.Order, error)) (*order.Order, error) {
	b.mu.RLock()
	ptr, ok := b.recs[id]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	for {
		cur := ptr.Load()
		next, err := fn(cur.Clone())
		if err != nil {
			return cur, err
		}
		if next == nil {
			return cur, nil
		}
		next.UpdatedAt = time.Now().UTC()
		if ptr.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}

// Transition attempts cur→to, optionally recording a cancellation reason.
// It returns the previous status and whether the transition applied.
// Illegal attempts (including any attempt on a terminal order) do not
// modify the record and report applied=false.
func (b *Book) Transition(id string, to order.Status, reason string) (prev order.Status, applied bool, err error) {
	res, err := b.Mutate(id, func(cur *order.Order) (*order.Order, error) {
		prev = cur.Status
		if !CanTransition(cur.Status, to) {
			return nil, ErrInvalidTransition
		}
		cur.Status = to
		switch to {
		case order.StatusCancelled:
			cur.CancellationReason = reason
		case order.StatusExpired:
			if reason != "" {
				cur.CancellationReason = reason
			}
		}
		return cur, nil
	})
	if err != nil {
		if err == ErrInvalidTransition {
			logger.Debugf("transition to %s rejected for order %s (status=%s)", to, id, prev)
			return prev, false, nil
		}
		return prev, false, err
	}
	_ = res
	return prev, true, nil
}

// BySymbol returns the ids of all orders on a symbol.
func (b *Book) BySymbol(symbol string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return keysOf(b.bySymbol[order.NormalizeSymbol(symbol)])
}

// OCOGroup returns the member ids of an OCO group.
func (b *Book) OCOGroup(groupID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return keysOf(b.byGroup[groupID])
}

// ChildrenOf returns the child ids of a bracket entry.
func (b *Book) ChildrenOf(parentID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return keysOf(b.byParent[parentID])
}

// JoinGroup registers an existing order under an OCO group id. The group
// index is membership only; the authoritative field lives on the record.
func (b *Book) JoinGroup(id, groupID string) {
	if groupID == "" {
		return
	}
	b.mu.Lock()
	addIndex(b.byGroup, groupID, id)
	b.mu.Unlock()
}

// All returns a snapshot of every live record, ordered by sequence.
func (b *Book) All() []*order.Order {
	b.mu.RLock()
	out := make([]*order.Order, 0, len(b.recs))
	for _, ptr := range b.recs {
		out = append(out, ptr.Load())
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Remove drops a record from the arena after it has been archived.
func (b *Book) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ptr, ok := b.recs[id]
	if !ok {
		return
	}
	o := ptr.Load()
	delete(b.recs, id)
	if set := b.bySymbol[order.NormalizeSymbol(o.Symbol)]; set != nil {
		delete(set, id)
	}
	if o.OCOGroupID != "" {
		if set := b.byGroup[o.OCOGroupID]; set != nil {
			delete(set, id)
		}
	}
	if o.ParentOrderID != "" {
		if set := b.byParent[o.ParentOrderID]; set != nil {
			delete(set, id)
		}
	}
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
