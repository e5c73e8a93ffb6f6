package risk

import (
	"context"
	"sync"
)

// StaticProvider serves snapshots from an in-process table. It stands in
// for the external portfolio ledger: operators seed a default balance and
// can push per-portfolio snapshots at runtime.
type StaticProvider struct {
	mu        sync.RWMutex
	def       Snapshot
	snapshots map[string]Snapshot
}

func NewStaticProvider(def Snapshot) *StaticProvider {
	return &StaticProvider{
		def:       def,
		snapshots: make(map[string]Snapshot),
	}
}

// SetSnapshot replaces the snapshot for one portfolio.
func (p *StaticProvider) SetSnapshot(snap Snapshot) {
	if snap.PortfolioID == "" {
		return
	}
	p.mu.Lock()
	p.snapshots[snap.PortfolioID] = snap
	p.mu.Unlock()
}

// GetSnapshot returns the portfolio's snapshot, falling back to the default
// balance for portfolios never explicitly seeded.
func (p *StaticProvider) GetSnapshot(_ context.Context, portfolioID string) (Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if snap, ok := p.snapshots[portfolioID]; ok {
		return snap, nil
	}
	snap := p.def
	snap.PortfolioID = portfolioID
	return snap, nil
}
