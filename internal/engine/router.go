package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"ordercore/internal/logger"
	"ordercore/internal/order"
	"ordercore/internal/pkg/circuit"
	"ordercore/internal/venue"

	"golang.org/x/sync/errgroup"
)

// RouterConfig bounds the retry behavior of venue submissions.
type RouterConfig struct {
	Workers       int
	MaxRetries    int
	RetryBase     time.Duration
	RetryCap      time.Duration
	SubmitTimeout time.Duration
	DefaultPolicy string
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 100 * time.Millisecond
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 5 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.DefaultPolicy == "" {
		c.DefaultPolicy = PolicyMinimizeLatency
	}
	return c
}

// orderState is the slice of engine behavior the router needs: read
// snapshots, attempt transitions, apply fills. Venue calls are issued with
// no order state held; the callbacks re-read and CAS internally.
type orderState interface {
	Lookup(id string) (*order.Order, bool)
	ApplyTransition(id string, to order.Status, reason string) bool
	ApplyFill(id string, fill venue.Fill) (*order.Order, bool, error)
}

// Router dispatches TRIGGERED and market orders to the venue, accumulates
// partial fills and enforces IOC/FOK immediacy. Transient venue failures
// are retried with bounded exponential backoff behind a circuit breaker;
// exhaustion cancels the order.
type Router struct {
	state    orderState
	venue    venue.Venue
	breaker  *circuit.Breaker
	cfg      RouterConfig
	policies map[string]RoutingPolicy

	queue   chan string
	mu      sync.Mutex
	grp     *errgroup.Group
	ctx     context.Context
	started bool
}

func NewRouter(state orderState, vn venue.Venue, cfg RouterConfig, policies map[string]RoutingPolicy) *Router {
	cfg = cfg.withDefaults()
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Router{
		state:    state,
		venue:    vn,
		breaker:  circuit.New("venue:"+vn.Name(), cfg.MaxRetries*2, 10*time.Second),
		cfg:      cfg,
		policies: policies,
		queue:    make(chan string, 1024),
	}
}

// Start launches the worker pool.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.grp, r.ctx = errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		r.grp.Go(func() error {
			for {
				select {
				case <-r.ctx.Done():
					return nil
				case id := <-r.queue:
					r.execute(id)
				}
			}
		})
	}
	r.started = true
}

func (r *Router) Wait() error {
	r.mu.Lock()
	grp := r.grp
	r.mu.Unlock()
	if grp == nil {
		return nil
	}
	return grp.Wait()
}

// Dispatch enqueues an order for execution.
func (r *Router) Dispatch(id string) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		logger.Errorf("router used before Start, dropping dispatch of %s", id)
		return
	}
	select {
	case <-r.ctx.Done():
	case r.queue <- id:
	}
}

func (r *Router) policyFor(name string) RoutingPolicy {
	if p, ok := r.policies[name]; ok {
		return p
	}
	return r.policies[PolicyMinimizeLatency]
}

func (r *Router) execute(id string) {
	o, ok := r.state.Lookup(id)
	if !ok {
		logger.Warnf("router: unknown order %s", id)
		return
	}
	if o.Status.Terminal() {
		return
	}
	// Direct-dispatch orders (market, resting limits) arrive PENDING; they
	// are promoted on the spot since their predicate is trivially satisfied.
	if o.Status == order.StatusPending {
		if !r.state.ApplyTransition(id, order.StatusTriggered, "") {
			return
		}
	}

	policy := r.policyFor(r.cfg.DefaultPolicy)
	retries := 0
	for {
		o, ok = r.state.Lookup(id)
		if !ok || o.Status.Terminal() {
			return
		}
		remaining := o.Remaining()
		if remaining <= 0 {
			return
		}
		qty := remaining * policy.SliceFraction
		if qty <= 0 || qty > remaining {
			qty = remaining
		}
		if o.TimeInForce == order.TIFFOK {
			qty = remaining
		}

		if !r.breaker.Allow() {
			if !r.failOrBackoff(id, o, &retries, errors.New("breaker open")) {
				return
			}
			continue
		}

		subCtx, cancel := context.WithTimeout(r.ctx, r.cfg.SubmitTimeout)
		fill, err := r.venue.Submit(subCtx, venue.SubmitRequest{
			Order:       *o,
			Quantity:    qty,
			TimeInForce: o.TimeInForce,
		})
		cancel()

		if err != nil {
			if errors.Is(err, venue.ErrUnfillable) {
				r.handleUnfillable(id, o)
				return
			}
			r.breaker.RecordFailure()
			if !r.failOrBackoff(id, o, &retries, err) {
				return
			}
			continue
		}
		r.breaker.RecordSuccess()
		retries = 0

		updated, executed, err := r.state.ApplyFill(id, fill)
		if err != nil {
			logger.Errorf("router: applying fill %s to %s failed: %v", fill.VenueExecID, id, err)
			return
		}
		if executed {
			return
		}
		// IOC gets exactly one immediacy round: whatever did not fill now
		// is cancelled rather than left resting.
		if updated.TimeInForce == order.TIFIOC {
			r.state.ApplyTransition(id, order.StatusCancelled, order.ReasonIOCUnfilled)
			return
		}
		if updated.TimeInForce == order.TIFFOK && updated.Remaining() > 0 {
			// The venue broke all-or-none; do not keep a dangling rump.
			logger.Errorf("router: venue returned partial fill for FOK order %s", id)
			r.state.ApplyTransition(id, order.StatusCancelled, order.ReasonFOKUnfilled)
			return
		}
	}
}

// handleUnfillable maps the venue's immediacy refusal onto time-in-force
// semantics. GTC/DAY orders stay with the venue as resting orders and fill
// later through asynchronous reports.
func (r *Router) handleUnfillable(id string, o *order.Order) {
	switch o.TimeInForce {
	case order.TIFIOC:
		r.state.ApplyTransition(id, order.StatusCancelled, order.ReasonIOCUnfilled)
	case order.TIFFOK:
		r.state.ApplyTransition(id, order.StatusCancelled, order.ReasonFOKUnfilled)
	default:
		logger.Debugf("router: order %s resting at venue", id)
	}
}

// failOrBackoff sleeps the exponential backoff or, once retries are
// exhausted, cancels the order with EXECUTION_FAILED. Returns false when
// the caller should stop.
func (r *Router) failOrBackoff(id string, o *order.Order, retries *int, cause error) bool {
	*retries++
	if *retries > r.cfg.MaxRetries {
		logger.Warnf("router: order %s failed after %d attempts: %v", id, *retries-1, cause)
		r.state.ApplyTransition(id, order.StatusCancelled, order.ReasonExecutionFailed)
		return false
	}
	delay := r.cfg.RetryBase << (*retries - 1)
	if delay > r.cfg.RetryCap {
		delay = r.cfg.RetryCap
	}
	logger.Debugf("router: order %s attempt %d failed (%v), retrying in %s", id, *retries, cause, delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-r.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
