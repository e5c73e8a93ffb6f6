package feed

import (
	"context"
	"sync"
	"time"
)

// Replay plays back a fixed tick sequence, optionally paced by Interval.
// Used by backtests and the engine's own tests; it implements Source so the
// engine cannot tell it apart from a live feed.
type Replay struct {
	Ticks    []Tick
	Interval time.Duration

	mu     sync.Mutex
	stats  SourceStats
	closed bool
}

func NewReplay(ticks []Tick) *Replay {
	return &Replay{Ticks: ticks}
}

func (r *Replay) Subscribe(ctx context.Context, symbols []string, opts SubscribeOptions) (<-chan Tick, error) {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	out := make(chan Tick, buffer)
	if opts.OnConnect != nil {
		opts.OnConnect()
	}
	go func() {
		defer close(out)
		for _, t := range r.Ticks {
			if len(want) > 0 && !want[t.Symbol] {
				continue
			}
			if r.Interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(r.Interval):
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- t:
			}
		}
	}()
	return out, nil
}

func (r *Replay) Stats() SourceStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
