package market

import (
	"context"
	"testing"
	"time"

	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
)

func fixedQuote(market string, pair trade.CurrencyPair, buy, sell string, at time.Time) trade.PriceQuote {
	return trade.PriceQuote{
		Market: market,
		Pair:   pair,
		Buy:    decimal.RequireFromString(buy),
		Sell:   decimal.RequireFromString(sell),
		Time:   at,
	}
}

func TestPriceCacheServesFreshQuoteWithoutFetch(t *testing.T) {
	store := newMemoryStore()
	pair := trade.Pair("BTC", "USD")
	now := time.Now().UTC()
	if err := store.SavePrice(context.Background(), fixedQuote("mtgox", pair, "101", "99", now.Add(-30*time.Second))); err != nil {
		t.Fatal(err)
	}

	fetches := 0
	cache := NewPriceCache("mtgox", store, 60*time.Second, func(ctx context.Context, p trade.CurrencyPair) (trade.PriceQuote, error) {
		fetches++
		return fixedQuote("mtgox", p, "200", "198", now), nil
	})
	cache.now = func() time.Time { return now }

	quote, err := cache.Get(context.Background(), false, pair)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetches != 0 {
		t.Fatalf("fresh quote must not trigger a fetch, got %d", fetches)
	}
	if !quote.Buy.Equal(decimal.RequireFromString("101")) || !quote.Sell.Equal(decimal.RequireFromString("99")) {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestPriceCacheRefreshesStaleQuote(t *testing.T) {
	store := newMemoryStore()
	pair := trade.Pair("BTC", "USD")
	now := time.Now().UTC()
	if err := store.SavePrice(context.Background(), fixedQuote("mtgox", pair, "101", "99", now.Add(-2*time.Minute))); err != nil {
		t.Fatal(err)
	}

	fetches := 0
	cache := NewPriceCache("mtgox", store, 60*time.Second, func(ctx context.Context, p trade.CurrencyPair) (trade.PriceQuote, error) {
		fetches++
		return fixedQuote("mtgox", p, "200", "198", now), nil
	})
	cache.now = func() time.Time { return now }

	quote, err := cache.Get(context.Background(), false, pair)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("stale quote must trigger exactly one fetch, got %d", fetches)
	}
	if !quote.Buy.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("unexpected quote %+v", quote)
	}
	stored, ok, err := store.LatestPrice(context.Background(), "mtgox", pair)
	if err != nil || !ok {
		t.Fatalf("refreshed quote not persisted: ok=%v err=%v", ok, err)
	}
	if !stored.Buy.Equal(quote.Buy) {
		t.Fatalf("stored quote differs: %+v", stored)
	}
}

func TestPriceCacheForceBypassesFreshQuote(t *testing.T) {
	store := newMemoryStore()
	pair := trade.Pair("BTC", "USD")
	now := time.Now().UTC()
	if err := store.SavePrice(context.Background(), fixedQuote("mtgox", pair, "101", "99", now)); err != nil {
		t.Fatal(err)
	}

	fetches := 0
	cache := NewPriceCache("mtgox", store, 60*time.Second, func(ctx context.Context, p trade.CurrencyPair) (trade.PriceQuote, error) {
		fetches++
		return fixedQuote("mtgox", p, "200", "198", now), nil
	})
	cache.now = func() time.Time { return now }

	if _, err := cache.Get(context.Background(), true, pair); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("force must trigger exactly one fetch, got %d", fetches)
	}
}

func TestPriceCacheFetchFailure(t *testing.T) {
	store := newMemoryStore()
	cache := NewPriceCache("mtgox", store, 60*time.Second, func(ctx context.Context, p trade.CurrencyPair) (trade.PriceQuote, error) {
		return trade.PriceQuote{}, trade.Applicationf("ticker unavailable")
	})
	_, err := cache.Get(context.Background(), false, trade.Pair("BTC", "USD"))
	if !trade.IsKind(err, trade.KindApplication) {
		t.Fatalf("expected application error, got %v", err)
	}
	if len(store.prices) != 0 {
		t.Fatal("failed fetch must not persist a quote")
	}
}
