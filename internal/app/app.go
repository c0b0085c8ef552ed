// Package app wires configuration, storage, metrics, alerts and the market
// adapters into the long-running reconciliation service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"btc-order-gw/internal/alerts"
	"btc-order-gw/internal/config"
	"btc-order-gw/internal/market"
	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/state/postgres"
	"btc-order-gw/internal/state/sqlite"
	"btc-order-gw/internal/stream"
	"btc-order-gw/internal/trade"
	"btc-order-gw/internal/venue"

	"go.uber.org/zap"
)

type App struct {
	cfg     *config.Config
	log     *zap.Logger
	store   state.Store
	metrics *metrics.Metrics
	prom    *metrics.Prometheus
	alerts  *alerts.Telegram
	markets map[string]market.Adapter
	feeds   []*stream.Feed

	opsMu          sync.RWMutex
	paused         bool
	operatorWarned bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		metrics: m,
		prom:    prom,
		alerts:  alerts.NewTelegram(cfg.Telegram, log),
		markets: make(map[string]market.Adapter, len(cfg.Markets)),
	}

	deps := venue.Deps{Store: store, Log: log, Metrics: m}
	for name, marketCfg := range cfg.Markets {
		adapter, err := venue.New(name, marketCfg, deps)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.markets[name] = adapter

		if marketCfg.Stream.Enabled {
			pair := trade.Pair(marketCfg.DefaultFrom, marketCfg.DefaultTo)
			feed := stream.NewFeed(name, marketCfg.Stream.URL, pair, marketCfg.Stream.ReconnectDelay, store, log)
			feed.SetMetrics(m)
			a.feeds = append(a.feeds, feed)
		}
	}
	return a, nil
}

func openStore(cfg config.StorageConfig) (state.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return sqlite.New(cfg.SQLitePath)
	case "postgres":
		return postgres.New(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// Market returns the adapter for one configured market.
func (a *App) Market(name string) (market.Adapter, bool) {
	adapter, ok := a.markets[name]
	return adapter, ok
}

// Run refreshes every market on the configured interval until the context
// is cancelled. One market failing does not stop the others.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	if a.prom != nil {
		go a.serveMetrics(ctx)
	}
	for _, feed := range a.feeds {
		go func(f *stream.Feed) {
			if err := f.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("ticker feed stopped", zap.Error(err))
			}
		}(feed)
	}
	a.startOperator(ctx)

	a.log.Info("starting market refresh loop",
		zap.Int("markets", len(a.markets)),
		zap.Duration("interval", a.cfg.Refresh.Interval))
	a.refreshAll(ctx)

	ticker := time.NewTicker(a.cfg.Refresh.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.refreshAll(ctx)
		}
	}
}

func (a *App) refreshAll(ctx context.Context) {
	if a.isPaused() {
		a.log.Debug("refresh skipped, operator paused")
		return
	}
	for _, name := range a.marketNames() {
		if ctx.Err() != nil {
			return
		}
		a.refreshMarket(ctx, name, a.markets[name])
	}
}

// refreshMarket runs one reconciliation pass and pushes an alert for every
// order whose status changed.
func (a *App) refreshMarket(ctx context.Context, name string, adapter market.Adapter) {
	before, err := a.store.OpenOrders(ctx, name)
	if err != nil {
		a.log.Error("listing open orders failed", zap.String("market", name), zap.Error(err))
		return
	}

	if err := adapter.UpdateMarket(ctx); err != nil {
		a.log.Error("market update failed", zap.String("market", name), zap.Error(err))
		a.alerts.MarketFailure(ctx, name, err)
		return
	}

	for _, prev := range before {
		current, ok, err := a.store.Order(ctx, prev.ID)
		if err != nil || !ok {
			continue
		}
		if current.Status != prev.Status {
			a.log.Info("order status changed",
				zap.String("market", name),
				zap.String("order", current.ID.String()),
				zap.String("from", string(prev.Status)),
				zap.String("to", string(current.Status)))
			a.alerts.OrderStatusChanged(ctx, current)
		}
	}
}

func (a *App) marketPair(name string) trade.CurrencyPair {
	marketCfg := a.cfg.Markets[name]
	return trade.Pair(marketCfg.DefaultFrom, marketCfg.DefaultTo)
}

func (a *App) marketNames() []string {
	names := make([]string, 0, len(a.markets))
	for name := range a.markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.log.Info("metrics listening", zap.String("addr", a.cfg.Metrics.Listen))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.log.Error("metrics server failed", zap.Error(err))
	}
}
