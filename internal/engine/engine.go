// Package engine is the order management core: admission, the lifecycle
// state machine, trigger evaluation, OCO/bracket coordination and
// execution routing. Everything outside the narrow collaborator interfaces
// (feed, venue, portfolio snapshots, persistence) is engine-owned.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ordercore/internal/feed"
	"ordercore/internal/logger"
	"ordercore/internal/order"
	"ordercore/internal/risk"
	"ordercore/internal/store"
	"ordercore/internal/venue"

	"github.com/google/uuid"
)

// Config bounds engine behavior; zero values get sensible defaults.
type Config struct {
	Router RouterConfig
	// PolicyPath optionally points at a routing-policy YAML table.
	PolicyPath string
}

// Deps are the external collaborators. Store and Archive may be nil (the
// engine then runs purely in memory, as in most tests).
type Deps struct {
	Validator *risk.Validator
	Snapshots risk.SnapshotProvider
	Venue     venue.Venue
	Store     store.Store
	Archive   store.Archiver
}

type Engine struct {
	cfg  Config
	deps Deps

	book   *Book
	bus    *Bus
	eval   *Evaluator
	router *Router

	lastPrice sync.Map // symbol → float64

	runMu   sync.Mutex
	started bool
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Validator == nil {
		return nil, fmt.Errorf("engine requires a risk validator")
	}
	if deps.Venue == nil {
		return nil, fmt.Errorf("engine requires an execution venue")
	}
	policies, err := LoadPolicies(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:  cfg,
		deps: deps,
		book: NewBook(),
		bus:  NewBus(),
	}
	e.eval = NewEvaluator(e.book)
	e.eval.promote = func(id string) bool {
		if !e.ApplyTransition(id, order.StatusTriggered, "") {
			return false
		}
		e.router.Dispatch(id)
		return true
	}
	e.eval.onEvalError = func(id string, err error) {
		logger.Warnf("trigger evaluation error on %s, order stays pending: %v", id, err)
	}
	e.router = NewRouter(e, deps.Venue, cfg.Router, policies)
	return e, nil
}

// Start launches the evaluator partitions and router workers. The engine
// stops when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.started {
		return
	}
	e.eval.Start(ctx)
	e.router.Start(ctx)
	e.started = true
}

// Wait blocks until all engine goroutines have exited.
func (e *Engine) Wait() error {
	if err := e.eval.Wait(); err != nil {
		return err
	}
	return e.router.Wait()
}

// Events exposes the state-change stream for the transport layer.
func (e *Engine) Events(buffer int) (<-chan StateChange, func()) {
	return e.bus.Subscribe(buffer)
}

// SetEnricher attaches an indicator enricher to the tick path.
func (e *Engine) SetEnricher(enricher feed.Enricher) {
	e.eval.enricher = enricher
}

// Lookup returns the current snapshot of an order.
func (e *Engine) Lookup(id string) (*order.Order, bool) {
	return e.book.Get(id)
}

// Orders returns snapshots of every live record in admission order.
func (e *Engine) Orders() []*order.Order {
	return e.book.All()
}

// LastPrice returns the most recent tick price seen for a symbol.
func (e *Engine) LastPrice(symbol string) float64 {
	v, ok := e.lastPrice.Load(order.NormalizeSymbol(symbol))
	if !ok {
		return 0
	}
	return v.(float64)
}

// OnTick is the market-data entry point.
func (e *Engine) OnTick(t feed.Tick) {
	if t.Price > 0 {
		e.lastPrice.Store(order.NormalizeSymbol(t.Symbol), t.Price)
	}
	e.eval.OnTick(t)
}

// Pump consumes a feed source until ctx is done.
func (e *Engine) Pump(ctx context.Context, src feed.Source, symbols []string) error {
	ticks, err := src.Subscribe(ctx, symbols, feed.SubscribeOptions{})
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			e.OnTick(t)
		}
	}
}

// Submit runs a draft through the risk gate, admits the record and either
// dispatches it (market, resting limit) or subscribes it for trigger
// evaluation. Bracket drafts are expanded into an entry plus two dormant
// children.
func (e *Engine) Submit(ctx context.Context, d order.Draft) (*order.Order, error) {
	if d.Type == order.TypeOCO {
		// OCO is a group shape, not a routable record; a lone OCO draft
		// would be admitted and then never dispatched or subscribed.
		return nil, fmt.Errorf("%w: oco orders must be submitted as a leg group", order.ErrValidation)
	}
	snap, err := e.snapshotFor(ctx, d.PortfolioID)
	if err != nil {
		return nil, err
	}
	refPrice := e.LastPrice(d.Symbol)
	if err := e.deps.Validator.Check(d, snap, refPrice); err != nil {
		return nil, err
	}

	o := e.recordFromDraft(d)
	e.admit(o)

	if d.Type == order.TypeBracket {
		for _, child := range e.bracketChildren(o, d) {
			e.admit(child)
		}
	}

	e.route(o)
	return o, nil
}

// SubmitOCO admits two or more sibling drafts under a shared group id.
// Legs carry their functional types (limit, stop); the group key is the
// only thing tying them together.
func (e *Engine) SubmitOCO(ctx context.Context, drafts []order.Draft) ([]*order.Order, error) {
	if len(drafts) < 2 {
		return nil, fmt.Errorf("%w: oco group needs at least two legs", order.ErrValidation)
	}
	for i, d := range drafts {
		if d.Type == order.TypeOCO || d.Type == order.TypeBracket {
			return nil, fmt.Errorf("%w: oco leg %d must carry a functional order type", order.ErrValidation, i)
		}
		snap, err := e.snapshotFor(ctx, d.PortfolioID)
		if err != nil {
			return nil, err
		}
		if err := e.deps.Validator.Check(d, snap, e.LastPrice(d.Symbol)); err != nil {
			return nil, fmt.Errorf("oco leg %d: %w", i, err)
		}
	}
	groupID := uuid.NewString()
	out := make([]*order.Order, 0, len(drafts))
	for _, d := range drafts {
		o := e.recordFromDraft(d)
		o.OCOGroupID = groupID
		e.admit(o)
		out = append(out, o)
	}
	// Routing happens only after every leg exists, so a fast fill cannot
	// cascade into a group that is still being built.
	for _, o := range out {
		e.route(o)
	}
	return out, nil
}

// Cancel requests cooperative cancellation. It succeeds only if the order
// is non-terminal at the instant of the compare-and-swap; a racing fill
// wins cleanly and the cancel becomes a no-op.
func (e *Engine) Cancel(ctx context.Context, id, reason string) error {
	if reason == "" {
		reason = order.ReasonUserRequested
	}
	o, ok := e.book.Get(id)
	if !ok {
		return ErrOrderNotFound
	}
	if !e.ApplyTransition(id, order.StatusCancelled, reason) {
		cur, _ := e.book.Get(id)
		if cur != nil && cur.Status.Terminal() {
			return nil
		}
		return fmt.Errorf("cancel of %s did not apply (status=%s)", id, o.Status)
	}
	return nil
}

// ExpireDaySession closes out all DAY orders at the session boundary:
// untriggered orders expire, anything already in flight is cancelled.
func (e *Engine) ExpireDaySession() {
	for _, o := range e.book.All() {
		if o.TimeInForce != order.TIFDay || o.Status.Terminal() {
			continue
		}
		switch o.Status {
		case order.StatusPending:
			e.ApplyTransition(o.ID, order.StatusExpired, order.ReasonDayEnd)
		case order.StatusTriggered, order.StatusPartiallyFilled:
			e.ApplyTransition(o.ID, order.StatusCancelled, order.ReasonDayEnd)
		}
	}
}

// ArchiveTerminal flushes terminal records to the archive store and drops
// them from the arena. Records stay queryable until this sweep runs.
func (e *Engine) ArchiveTerminal(ctx context.Context) int {
	if e.deps.Archive == nil {
		return 0
	}
	n := 0
	for _, o := range e.book.All() {
		if !o.Status.Terminal() {
			continue
		}
		if err := e.deps.Archive.Archive(ctx, o); err != nil {
			logger.Errorf("archiving order %s failed: %v", o.ID, err)
			continue
		}
		e.book.Remove(o.ID)
		n++
	}
	return n
}

func (e *Engine) snapshotFor(ctx context.Context, portfolioID string) (risk.Snapshot, error) {
	if e.deps.Snapshots == nil {
		return risk.Snapshot{PortfolioID: portfolioID}, nil
	}
	return e.deps.Snapshots.GetSnapshot(ctx, portfolioID)
}

func (e *Engine) recordFromDraft(d order.Draft) *order.Order {
	now := time.Now().UTC()
	return &order.Order{
		ID:           uuid.NewString(),
		PortfolioID:  d.PortfolioID,
		Symbol:       order.NormalizeSymbol(d.Symbol),
		Type:         d.Type,
		Side:         d.Side,
		TimeInForce:  d.TimeInForce,
		Quantity:     d.Quantity,
		LimitPrice:   d.LimitPrice,
		StopPrice:    d.StopPrice,
		TriggerPrice: d.TriggerPrice,
		TrailAmount:  d.TrailAmount,
		TrailPercent: d.TrailPercent,
		Conditions:   d.Conditions,
		Status:       order.StatusPending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
}

// bracketChildren builds the dormant profit-target and stop-loss legs.
// They share the entry's quantity, sit on the opposite side, and stay
// excluded from evaluation until the entry fills.
func (e *Engine) bracketChildren(entry *order.Order, d order.Draft) []*order.Order {
	now := time.Now().UTC()
	exit := entry.Side.Opposite()
	tp := &order.Order{
		ID:            uuid.NewString(),
		PortfolioID:   entry.PortfolioID,
		Symbol:        entry.Symbol,
		Type:          order.TypeLimit,
		Side:          exit,
		TimeInForce:   entry.TimeInForce,
		Quantity:      entry.Quantity,
		LimitPrice:    d.TakeProfitPrice,
		ParentOrderID: entry.ID,
		Dormant:       true,
		Status:        order.StatusPending,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	sl := &order.Order{
		ID:            uuid.NewString(),
		PortfolioID:   entry.PortfolioID,
		Symbol:        entry.Symbol,
		Type:          order.TypeStopLoss,
		Side:          exit,
		TimeInForce:   entry.TimeInForce,
		Quantity:      entry.Quantity,
		StopPrice:     d.StopLossPrice,
		ParentOrderID: entry.ID,
		Dormant:       true,
		Status:        order.StatusPending,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	return []*order.Order{tp, sl}
}

func (e *Engine) admit(o *order.Order) {
	e.book.Insert(o)
	// Insert assigned Seq; re-read so the caller's copy matches the arena.
	if cur, ok := e.book.Get(o.ID); ok {
		*o = *cur
	}
	logger.Auditf(o.ID, "admitted", "type=%s side=%s symbol=%s qty=%v tif=%s",
		o.Type, o.Side, o.Symbol, o.Quantity, o.TimeInForce)
	e.persist(o)
}

// route sends an admitted record down its path: market orders and resting
// limits go straight to the router, predicate-bearing orders subscribe to
// their symbol partition, dormant bracket children wait.
func (e *Engine) route(o *order.Order) {
	if o.Dormant {
		return
	}
	switch o.Type {
	case order.TypeMarket, order.TypeLimit:
		if o.OCOGroupID != "" && o.Type == order.TypeLimit {
			// OCO limit legs are coordinator-managed: they trigger on
			// marketability so the sibling cascade stays inside the engine.
			e.eval.Subscribe(o)
			return
		}
		e.router.Dispatch(o.ID)
	case order.TypeStopLoss, order.TypeStopLimit, order.TypeTrailingStop, order.TypeIfTouched, order.TypeBracket:
		e.eval.Subscribe(o)
	case order.TypeOCO:
		// Draft-only structural type; records never carry it.
		logger.Errorf("record %s carries structural type OCO, not routing", o.ID)
	default:
		logger.Errorf("record %s carries unknown type %q, not routing", o.ID, o.Type)
	}
}

func (e *Engine) persist(o *order.Order) {
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.Save(context.Background(), o); err != nil {
		logger.Errorf("persisting order %s failed: %v", o.ID, err)
	}
}
