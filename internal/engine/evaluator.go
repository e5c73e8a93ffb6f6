package engine

import (
	"context"
	"sort"
	"sync"

	"ordercore/internal/feed"
	"ordercore/internal/logger"
	"ordercore/internal/order"

	"golang.org/x/sync/errgroup"
)

// Evaluator consumes ticks and promotes satisfied orders to TRIGGERED.
// Symbols are partitioned: every order on a symbol is evaluated by that
// symbol's single worker goroutine, so duplicate fires within a symbol are
// impossible by construction. Across symbols (an OCO pair with legs on two
// symbols) the only synchronization is the book's compare-and-swap: the
// first successful PENDING→TRIGGERED wins and every other attempt is a
// no-op.
type Evaluator struct {
	book     *Book
	enricher feed.Enricher

	// promote attempts PENDING→TRIGGERED through the engine so the event
	// is published and the order dispatched; it reports whether the
	// transition applied. The compare-and-swap inside guarantees at most
	// one evaluation thread wins per order.
	promote func(id string) bool
	// onEvalError reports trigger-evaluation failures (missing indicator
	// data). The order stays PENDING.
	onEvalError func(id string, err error)

	mu      sync.Mutex
	workers map[string]*symbolWorker
	ctx     context.Context
	grp     *errgroup.Group
	started bool
}

type symbolWorker struct {
	symbol string
	ticks  chan feed.Tick

	mu     sync.Mutex
	orders map[string]struct{}
}

func NewEvaluator(book *Book) *Evaluator {
	return &Evaluator{
		book:    book,
		workers: make(map[string]*symbolWorker),
	}
}

// Start binds the evaluator lifecycle to ctx. Workers are spawned lazily,
// one per symbol, inside the group; Wait returns once ctx is done and all
// workers have drained.
func (e *Evaluator) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.grp, e.ctx = errgroup.WithContext(ctx)
	e.started = true
}

// Wait blocks until every worker has stopped.
func (e *Evaluator) Wait() error {
	e.mu.Lock()
	grp := e.grp
	e.mu.Unlock()
	if grp == nil {
		return nil
	}
	return grp.Wait()
}

// Subscribe registers an order for evaluation on its symbol's partition.
// Dormant bracket children are skipped at evaluation time, not here, so the
// caller can subscribe unconditionally.
func (e *Evaluator) Subscribe(o *order.Order) {
	w := e.worker(order.NormalizeSymbol(o.Symbol))
	if w == nil {
		return
	}
	w.mu.Lock()
	w.orders[o.ID] = struct{}{}
	w.mu.Unlock()
}

// Unsubscribe removes an order from its partition.
func (e *Evaluator) Unsubscribe(id, symbol string) {
	e.mu.Lock()
	w := e.workers[order.NormalizeSymbol(symbol)]
	e.mu.Unlock()
	if w == nil {
		return
	}
	w.mu.Lock()
	delete(w.orders, id)
	w.mu.Unlock()
}

// OnTick routes a tick to its symbol partition, preserving arrival order
// within the symbol.
func (e *Evaluator) OnTick(t feed.Tick) {
	w := e.worker(order.NormalizeSymbol(t.Symbol))
	if w == nil {
		return
	}
	select {
	case <-e.ctx.Done():
	case w.ticks <- t:
	}
}

func (e *Evaluator) worker(symbol string) *symbolWorker {
	if symbol == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		logger.Errorf("evaluator used before Start, dropping work for %s", symbol)
		return nil
	}
	w, ok := e.workers[symbol]
	if ok {
		return w
	}
	w = &symbolWorker{
		symbol: symbol,
		ticks:  make(chan feed.Tick, 256),
		orders: make(map[string]struct{}),
	}
	e.workers[symbol] = w
	e.grp.Go(func() error {
		e.runWorker(w)
		return nil
	})
	return w
}

func (e *Evaluator) runWorker(w *symbolWorker) {
	for {
		select {
		case <-e.ctx.Done():
			return
		case t := <-w.ticks:
			if e.enricher != nil {
				t = e.enricher.Enrich(t)
			}
			e.evaluateTick(w, t)
		}
	}
}

// evaluateTick walks the partition's orders in admission-sequence order,
// which is the engine's deterministic tie-break when several orders fire on
// the same tick.
func (e *Evaluator) evaluateTick(w *symbolWorker, t feed.Tick) {
	w.mu.Lock()
	ids := make([]string, 0, len(w.orders))
	for id := range w.orders {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	snaps := make([]*order.Order, 0, len(ids))
	for _, id := range ids {
		o, ok := e.book.Get(id)
		if !ok {
			e.Unsubscribe(id, w.symbol)
			continue
		}
		if o.Status != order.StatusPending || o.Dormant {
			if o.Status.Terminal() {
				e.Unsubscribe(id, w.symbol)
			}
			continue
		}
		snaps = append(snaps, o)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Seq < snaps[j].Seq })

	for _, o := range snaps {
		fired, err := e.evaluate(o, t)
		if err != nil {
			if e.onEvalError != nil {
				e.onEvalError(o.ID, err)
			} else {
				logger.Warnf("trigger evaluation failed for %s: %v", o.ID, err)
			}
			continue
		}
		if !fired {
			continue
		}
		if e.promote != nil && e.promote(o.ID) {
			e.Unsubscribe(o.ID, w.symbol)
		}
	}
}

// evaluate decides whether one PENDING order fires on this tick. The
// switch is exhaustive over order types; structural types that never carry
// a predicate of their own report false.
func (e *Evaluator) evaluate(o *order.Order, t feed.Tick) (bool, error) {
	switch o.Type {
	case order.TypeStopLoss, order.TypeStopLimit:
		return order.StopBreached(o.Side, t.Price, o.StopPrice), nil

	case order.TypeTrailingStop:
		return e.evaluateTrailing(o, t)

	case order.TypeIfTouched:
		if len(o.Conditions) > 0 {
			return order.EvalConditions(o.Conditions, t.Price, t.Volume, t.Indicators)
		}
		return order.Touched(o.Side, t.Price, o.TriggerPrice), nil

	case order.TypeLimit, order.TypeBracket:
		// Only coordinator-managed legs (bracket entries, OCO limit legs)
		// are ever subscribed with these types; they fire when the limit
		// becomes marketable.
		return limitMarketable(o.Side, t.Price, o.LimitPrice), nil

	case order.TypeMarket, order.TypeOCO:
		// Market orders are dispatched at admission and OCO is a draft-only
		// structural type; neither is evaluated.
		return false, nil

	default:
		return false, nil
	}
}

func limitMarketable(side order.Side, price, limit float64) bool {
	if limit <= 0 || price <= 0 {
		return false
	}
	if side == order.SideBuy {
		return order.PriceLTE(price, limit)
	}
	return order.PriceGTE(price, limit)
}

// evaluateTrailing ratchets the high-water mark and fires when the price
// crosses the derived stop. The ratchet is a CAS mutate of its own: the
// mark only advances while the order is still PENDING, so it freezes the
// moment another writer moves the order on.
func (e *Evaluator) evaluateTrailing(o *order.Order, t feed.Tick) (bool, error) {
	updated, err := e.book.Mutate(o.ID, func(cur *order.Order) (*order.Order, error) {
		if cur.Status != order.StatusPending {
			return nil, nil
		}
		next := order.FavorableHWM(cur.Side, cur.HighWaterMark, t.Price)
		if order.PriceEq(next, cur.HighWaterMark) {
			return nil, nil
		}
		cur.HighWaterMark = next
		return cur, nil
	})
	if err != nil {
		return false, err
	}
	if updated.Status != order.StatusPending {
		return false, nil
	}
	stop := order.EffectiveTrailingStop(updated.Side, updated.HighWaterMark, updated.TrailAmount, updated.TrailPercent)
	if stop <= 0 {
		return false, nil
	}
	return order.StopBreached(updated.Side, t.Price, stop), nil
}
