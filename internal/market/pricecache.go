package market

import (
	"context"
	"time"

	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"
)

const DefaultPriceMaxAge = 60 * time.Second

// FetchFunc retrieves a fresh quote from the venue. Implementations map the
// venue's ask onto Buy and its bid onto Sell.
type FetchFunc func(ctx context.Context, pair trade.CurrencyPair) (trade.PriceQuote, error)

// PriceCache serves price quotes from the store while the latest snapshot is
// younger than maxAge, and fetches plus persists a new snapshot otherwise.
type PriceCache struct {
	market  string
	store   state.Store
	maxAge  time.Duration
	fetch   FetchFunc
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewPriceCache(market string, store state.Store, maxAge time.Duration, fetch FetchFunc) *PriceCache {
	if maxAge <= 0 {
		maxAge = DefaultPriceMaxAge
	}
	return &PriceCache{
		market:  market,
		store:   store,
		maxAge:  maxAge,
		fetch:   fetch,
		metrics: metrics.NewNoop(),
		now:     time.Now,
	}
}

func (c *PriceCache) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

func (c *PriceCache) Get(ctx context.Context, force bool, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	if !force {
		quote, ok, err := c.store.LatestPrice(ctx, c.market, pair)
		if err != nil {
			return trade.PriceQuote{}, err
		}
		if ok && quote.Age(c.now()) <= c.maxAge {
			c.metrics.PriceCacheHits.Inc()
			return quote, nil
		}
	}
	quote, err := c.fetch(ctx, pair)
	if err != nil {
		return trade.PriceQuote{}, err
	}
	if quote.Time.IsZero() {
		quote.Time = c.now().UTC()
	}
	if err := c.store.SavePrice(ctx, quote); err != nil {
		return trade.PriceQuote{}, err
	}
	c.metrics.PriceRefreshes.Inc()
	return quote, nil
}
