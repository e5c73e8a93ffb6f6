// Package app assembles the order engine from configuration: stores,
// venue, risk gate, market-data feed, HTTP surface and the schedulers
// that ride alongside the engine.
package app

import (
	"context"
	"fmt"
	"time"

	occfg "ordercore/internal/config"
	"ordercore/internal/engine"
	"ordercore/internal/feed"
	"ordercore/internal/logger"
	"ordercore/internal/risk"
	"ordercore/internal/scheduler"
	"ordercore/internal/store"
	orderhttp "ordercore/internal/transport/http"
	"ordercore/internal/venue"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg     *occfg.Config
	cfgPath string

	engine    *engine.Engine
	validator *risk.Validator
	snapshots *risk.StaticProvider
	sim       *venue.Sim
	httpSrv   *orderhttp.Server
	feedSrc   feed.Source
	session   *scheduler.SessionBoundary
	ordersDB  store.Store
	archiveDB store.Archiver
	sweep     time.Duration
}

// NewApp builds the application from a loaded config without starting it.
// cfgPath points back at the config file so risk limits can hot-reload.
func NewApp(cfg *occfg.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, cfgPath)
}

// Engine exposes the engine instance for replay harnesses and tests.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Run starts every component and blocks until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	a.engine.Start(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return a.engine.Wait()
	})

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("order http server error: %w", err)
			}
			return nil
		})
	}

	if a.feedSrc != nil {
		group.Go(func() error {
			return a.pumpFeed(ctx)
		})
	}

	if a.session != nil {
		group.Go(func() error {
			a.session.Start(ctx, a.engine.ExpireDaySession)
			return nil
		})
	}

	if a.archiveDB != nil && a.sweep > 0 {
		group.Go(func() error {
			scheduler.Every(ctx, a.sweep, func() {
				if n := a.engine.ArchiveTerminal(ctx); n > 0 {
					logger.Infof("archived %d terminal orders", n)
				}
			})
			return nil
		})
	}

	if a.cfgPath != "" {
		if err := occfg.WatchRiskLimits(ctx, a.cfgPath, a.validator); err != nil {
			logger.Warnf("risk limit hot-reload unavailable: %v", err)
		}
	}

	return group.Wait()
}

// pumpFeed drives ticks from the market-data source into the engine and
// keeps the sim venue's quote table current so paper fills price off the
// same stream the triggers see.
func (a *App) pumpFeed(ctx context.Context) error {
	ticks, err := a.feedSrc.Subscribe(ctx, a.cfg.Feed.Symbols, feed.SubscribeOptions{
		Buffer: a.cfg.Feed.Buffer,
	})
	if err != nil {
		return fmt.Errorf("feed subscription failed: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-ticks:
			if !ok {
				logger.Warnf("feed stream closed")
				return nil
			}
			if a.sim != nil && t.Price > 0 {
				a.sim.SetQuote(t.Symbol, t.Price)
			}
			a.engine.OnTick(t)
		}
	}
}

func (a *App) close() {
	if a.feedSrc != nil {
		_ = a.feedSrc.Close()
	}
	if a.ordersDB != nil {
		_ = a.ordersDB.Close()
	}
	if a.archiveDB != nil {
		_ = a.archiveDB.Close()
	}
}
