// Package feed defines the narrow market-data interface the engine
// consumes. Concrete sources (exchange websockets, deterministic replays)
// live in subpackages; the engine only ever sees Tick values.
package feed

import (
	"context"
	"time"
)

// Tick is one trade/quote observation. Indicators carries named values
// attached by an analytics enricher; it may be nil.
type Tick struct {
	Symbol     string
	Price      float64
	Volume     float64
	Timestamp  time.Time
	Indicators map[string]float64
}

type SubscribeOptions struct {
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}

type SourceStats struct {
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Source is a tick stream provider.
type Source interface {
	Subscribe(ctx context.Context, symbols []string, opts SubscribeOptions) (<-chan Tick, error)
	Stats() SourceStats
	Close() error
}

// Enricher attaches named indicator values to a tick before evaluation.
type Enricher interface {
	Enrich(t Tick) Tick
}
