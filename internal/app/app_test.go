package app

import (
	"context"
	"testing"
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/trade"
	"btc-order-gw/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: "sqlite", SQLitePath: ":memory:"},
		Refresh: config.RefreshConfig{Interval: time.Minute},
		Markets: map[string]config.MarketConfig{
			"null": {DefaultFrom: "BTC", DefaultTo: "USD", PriceMaxAge: time.Minute},
		},
	}
	a, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("app init failed: %v", err)
	}
	return a
}

func TestAppRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "redis"}}
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}

func TestAppRejectsUnknownMarket(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: "sqlite", SQLitePath: ":memory:"},
		Markets: map[string]config.MarketConfig{"nosuch": {}},
	}
	if _, err := New(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown market")
	}
}

func TestRefreshMarketTracksOrderLifecycle(t *testing.T) {
	a := testApp(t)
	defer a.store.Close()
	ctx := context.Background()

	adapter, ok := a.Market("null")
	if !ok {
		t.Fatal("null market not built")
	}
	order := trade.NewLimitOrder("null", trade.Buy, trade.Pair("BTC", "USD"),
		decimal.NewFromInt(1), decimal.NewFromInt(100))
	if err := adapter.ExecuteOrder(ctx, order); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	a.refreshAll(ctx)
	current, ok, err := a.store.Order(ctx, order.ID)
	if err != nil || !ok {
		t.Fatalf("order lookup failed, ok=%v err=%v", ok, err)
	}
	if current.Status != trade.StatusOpen {
		t.Fatalf("status = %s, want open", current.Status)
	}
	if _, ok, _ := a.store.LatestPrice(ctx, "null", trade.Pair("BTC", "USD")); !ok {
		t.Fatal("refresh did not store a price")
	}

	adapter.(*venue.Null).Fill(order.RemoteID)
	a.refreshAll(ctx)
	current, _, err = a.store.Order(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != trade.StatusFilled {
		t.Fatalf("status = %s, want filled", current.Status)
	}
}
