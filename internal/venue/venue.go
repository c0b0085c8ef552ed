// Package venue contains one market adapter per supported exchange. Each
// adapter owns its credentials, its request throttle and its fee cache, and
// speaks the venue's native paths, parameter names and response envelopes.
package venue

import (
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/rest"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Deps struct {
	Store   state.Store
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func (d Deps) fill() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoop()
	}
	return d
}

type pairSet map[trade.CurrencyPair]struct{}

func pairs(from string, tos ...string) pairSet {
	set := make(pairSet, len(tos))
	for _, to := range tos {
		set[trade.Pair(from, to)] = struct{}{}
	}
	return set
}

func (s pairSet) contains(p trade.CurrencyPair) bool {
	_, ok := s[p]
	return ok
}

// checkExecute enforces the shared submission preconditions. Orders that
// fail any check are left untouched and no I/O happens.
func checkExecute(marketName string, order *trade.Order, minimum decimal.Decimal, supported pairSet) error {
	if !order.Type.Valid() {
		return trade.Validationf("unsupported order type: %s", order.Type)
	}
	if order.Amount.LessThan(minimum) {
		return trade.Validationf("trade amount %s is below the %s minimum of %s", order.Amount, marketName, minimum)
	}
	if order.Status != trade.StatusNew || order.RemoteID != "" {
		return trade.Validationf("order %s has already been submitted to %s", order.ID, marketName)
	}
	if !supported.contains(order.Pair) {
		return trade.Validationf("%s does not support currency pair %s", marketName, order.Pair)
	}
	if !order.MarketOrder && order.Price.LessThanOrEqual(decimal.Zero) {
		return trade.Validationf("a positive price is required for a non-market order")
	}
	return nil
}

func checkCancel(marketName string, order *trade.Order) error {
	if order.Status != trade.StatusOpen && order.Status != trade.StatusExecuting {
		return trade.Validationf("order %s is not open or executing on %s, cannot cancel", order.ID, marketName)
	}
	return nil
}

func newRestClient(cfg config.MarketConfig, fallbackBase string, fallbackMax int, fallbackWindow time.Duration, auth rest.Auth, deps Deps) *rest.Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fallbackBase
	}
	max, window := cfg.RateMax, cfg.RateWindow
	if max <= 0 || window <= 0 {
		max, window = fallbackMax, fallbackWindow
	}
	client := rest.NewClient(baseURL, cfg.Timeout, cfg.Attempts, rest.NewLimiter(max, window), auth, deps.Log)
	client.SetMetrics(deps.Metrics)
	return client
}

func defaultPair(cfg config.MarketConfig) trade.CurrencyPair {
	return trade.Pair(cfg.DefaultFrom, cfg.DefaultTo)
}
