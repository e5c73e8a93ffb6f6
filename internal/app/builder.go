package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ordercore/internal/analytics"
	occfg "ordercore/internal/config"
	"ordercore/internal/engine"
	"ordercore/internal/feed"
	binancefeed "ordercore/internal/feed/binance"
	"ordercore/internal/risk"
	"ordercore/internal/scheduler"
	"ordercore/internal/store"
	"ordercore/internal/store/gormstore"
	"ordercore/internal/store/sqlite"
	orderhttp "ordercore/internal/transport/http"
	"ordercore/internal/venue"
)

// AppBuilder wires the component graph. Every constructor hangs off an
// overridable field so tests can slot in fakes without touching the
// assembly order.
type AppBuilder struct {
	cfg     *occfg.Config
	cfgPath string

	storeFn   func(occfg.StoreConfig) (store.Store, error)
	archiveFn func(occfg.StoreConfig) (store.Archiver, error)
	feedFn    func(occfg.FeedConfig) (feed.Source, error)
	httpFn    func(occfg.AppConfig, orderhttp.OrderService) (*orderhttp.Server, error)

	venueOverride    venue.Venue
	snapshotOverride *risk.StaticProvider
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot-reload of risk limits from the given file.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.cfgPath = path }
}

func WithVenue(v venue.Venue) AppBuilderOption {
	return func(b *AppBuilder) { b.venueOverride = v }
}

func WithSnapshots(p *risk.StaticProvider) AppBuilderOption {
	return func(b *AppBuilder) { b.snapshotOverride = p }
}

func NewAppBuilder(cfg *occfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		storeFn:   buildOrderStore,
		archiveFn: buildArchiveStore,
		feedFn:    buildFeedSource,
		httpFn:    buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	validator := risk.NewValidator(cfg.Risk)
	snapshots := b.snapshotOverride
	if snapshots == nil {
		snapshots = risk.NewStaticProvider(risk.Snapshot{
			Cash:   cfg.Portfolio.Cash,
			Equity: cfg.Portfolio.Equity,
		})
	}

	ordersDB, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, err
	}
	archiveDB, err := b.archiveFn(cfg.Store)
	if err != nil {
		return nil, err
	}

	var sim *venue.Sim
	vn := b.venueOverride
	if vn == nil {
		sim = venue.NewSim()
		sim.CommissionRate = cfg.Venue.CommissionRate
		sim.MaxSliceQty = cfg.Venue.MaxSliceQty
		vn = sim
	}

	eng, err := engine.New(engine.Config{
		Router: engine.RouterConfig{
			Workers:       cfg.Engine.Router.Workers,
			MaxRetries:    cfg.Engine.Router.MaxRetries,
			RetryBase:     cfg.Engine.Router.RetryBase(),
			RetryCap:      cfg.Engine.Router.RetryCap(),
			SubmitTimeout: cfg.Engine.Router.SubmitTimeout(),
			DefaultPolicy: cfg.Engine.Router.DefaultPolicy,
		},
		PolicyPath: cfg.Engine.PolicyPath,
	}, engine.Deps{
		Validator: validator,
		Snapshots: snapshots,
		Venue:     vn,
		Store:     ordersDB,
		Archive:   archiveDB,
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.Indicators) > 0 {
		enricher, err := analytics.NewEnricher(cfg.Indicators)
		if err != nil {
			return nil, err
		}
		eng.SetEnricher(enricher)
	}

	feedSrc, err := b.feedFn(cfg.Feed)
	if err != nil {
		return nil, err
	}

	httpSrv, err := b.httpFn(cfg.App, eng)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("session timezone: %w", err)
	}
	session, err := scheduler.NewSessionBoundary(cfg.Session.CloseAt, loc)
	if err != nil {
		return nil, err
	}

	sweep, _ := scheduler.ParseIntervalDuration(cfg.Store.ArchiveSweep)

	return &App{
		cfg:       cfg,
		cfgPath:   b.cfgPath,
		engine:    eng,
		validator: validator,
		snapshots: snapshots,
		sim:       sim,
		httpSrv:   httpSrv,
		feedSrc:   feedSrc,
		session:   session,
		ordersDB:  ordersDB,
		archiveDB: archiveDB,
		sweep:     sweep,
	}, nil
}

func buildOrderStore(cfg occfg.StoreConfig) (store.Store, error) {
	if strings.TrimSpace(cfg.OrdersPath) == "" {
		return nil, nil
	}
	return gormstore.New(cfg.OrdersPath)
}

func buildArchiveStore(cfg occfg.StoreConfig) (store.Archiver, error) {
	if strings.TrimSpace(cfg.ArchivePath) == "" {
		return nil, nil
	}
	return sqlite.NewArchive(cfg.ArchivePath)
}

func buildFeedSource(cfg occfg.FeedConfig) (feed.Source, error) {
	switch strings.ToLower(cfg.Source) {
	case "", "none":
		return nil, nil
	case "binance":
		return binancefeed.New(binancefeed.Config{MaxBuffer: cfg.Buffer}), nil
	default:
		return nil, fmt.Errorf("feed source %q not recognized", cfg.Source)
	}
}

func buildHTTPServer(cfg occfg.AppConfig, svc orderhttp.OrderService) (*orderhttp.Server, error) {
	return orderhttp.NewServer(orderhttp.ServerConfig{Addr: cfg.HTTPAddr, Engine: svc})
}
