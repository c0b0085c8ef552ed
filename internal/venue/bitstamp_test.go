package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
)

func newTestBitstamp(t *testing.T, handler http.Handler) (*Bitstamp, *memoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := newMemoryStore()
	adapter, err := newBitstamp(testConfig(srv.URL), Deps{Store: store})
	if err != nil {
		t.Fatal(err)
	}
	return adapter.(*Bitstamp), store
}

func TestBitstampLimitOrderSendsCredentials(t *testing.T) {
	var form map[string][]string
	b, _ := newTestBitstamp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/buy/" {
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		form = r.PostForm
		w.Write([]byte(`{"id": 4242}`))
	}))

	order := trade.NewLimitOrder("bitstamp", trade.Buy, trade.Pair("BTC", "USD"),
		decimal.RequireFromString("0.5"), decimal.NewFromInt(100))
	if err := b.ExecuteOrder(context.Background(), order); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if got := form["amount"]; len(got) != 1 || got[0] != "0.5" {
		t.Errorf("amount = %v, want 0.5", got)
	}
	if got := form["price"]; len(got) != 1 || got[0] != "100" {
		t.Errorf("price = %v, want 100", got)
	}
	if got := form["user"]; len(got) != 1 || got[0] != "test-user" {
		t.Errorf("user = %v, want test-user", got)
	}
	if got := form["password"]; len(got) != 1 || got[0] != "test-password" {
		t.Errorf("password missing from body: %v", got)
	}
	if order.RemoteID != "4242" || order.Status != trade.StatusOpen {
		t.Fatalf("order not updated: remote=%q status=%s", order.RemoteID, order.Status)
	}
}

func TestBitstampMarketOrderUsesForcedQuote(t *testing.T) {
	var sellForm map[string][]string
	b, store := newTestBitstamp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ticker/":
			w.Write([]byte(`{"ask":"105.00","bid":"95.00"}`))
		case "/sell/":
			r.ParseForm()
			sellForm = r.PostForm
			w.Write([]byte(`{"id": 7}`))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	// a fresh stored quote must still be bypassed for the emulated order
	stale := trade.PriceQuote{Market: "bitstamp", Pair: trade.Pair("BTC", "USD"),
		Buy: decimal.NewFromInt(500), Sell: decimal.NewFromInt(400)}
	if err := store.SavePrice(ctx, stale); err != nil {
		t.Fatal(err)
	}

	order := trade.NewMarketOrder("bitstamp", trade.Sell, trade.Pair("BTC", "USD"), decimal.NewFromInt(1))
	if err := b.ExecuteOrder(ctx, order); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if got := sellForm["price"]; len(got) != 1 || got[0] != "95" {
		t.Errorf("price = %v, want the freshly fetched bid 95", got)
	}
	if !order.Price.Equal(decimal.NewFromInt(95)) {
		t.Errorf("order price = %s, want the submitted quote recorded back", order.Price)
	}
	if order.Status != trade.StatusOpen || order.RemoteID != "7" {
		t.Fatalf("order not updated: remote=%q status=%s", order.RemoteID, order.Status)
	}
}

func TestBitstampErrorFieldIsApplicationError(t *testing.T) {
	b, _ := newTestBitstamp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Not enough balance"}`))
	}))
	order := trade.NewLimitOrder("bitstamp", trade.Buy, trade.Pair("BTC", "USD"),
		decimal.NewFromInt(1), decimal.NewFromInt(100))
	err := b.ExecuteOrder(context.Background(), order)
	if !trade.IsKind(err, trade.KindApplication) {
		t.Fatalf("expected application error, got %v", err)
	}
	if order.Status != trade.StatusNew {
		t.Fatal("order must be untouched on venue failure")
	}
}

func TestBitstampCancelOrder(t *testing.T) {
	response := "true"
	b, _ := newTestBitstamp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cancel_order/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(response))
	}))
	ctx := context.Background()

	order := trade.NewLimitOrder("bitstamp", trade.Buy, trade.Pair("BTC", "USD"),
		decimal.NewFromInt(1), decimal.NewFromInt(100))
	order.Status = trade.StatusOpen
	order.RemoteID = "4242"
	if err := b.CancelOrder(ctx, order); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	response = "false"
	if err := b.CancelOrder(ctx, order); !trade.IsKind(err, trade.KindApplication) {
		t.Fatalf("expected application error for unacknowledged cancel, got %v", err)
	}

	order.Status = trade.StatusFilled
	if err := b.CancelOrder(ctx, order); !trade.IsKind(err, trade.KindValidation) {
		t.Fatalf("expected validation error for terminal order, got %v", err)
	}
}

func TestBitstampUpdateMarketInfersFill(t *testing.T) {
	b, store := newTestBitstamp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open_orders/":
			w.Write([]byte(`[]`))
		case "/ticker/":
			w.Write([]byte(`{"ask":"105.00","bid":"95.00"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	order := trade.NewLimitOrder("bitstamp", trade.Buy, trade.Pair("BTC", "USD"),
		decimal.NewFromInt(1), decimal.NewFromInt(100))
	order.Status = trade.StatusOpen
	order.RemoteID = "4242"
	if err := store.SaveOrder(ctx, *order); err != nil {
		t.Fatal(err)
	}

	if err := b.UpdateMarket(ctx); err != nil {
		t.Fatalf("update market failed: %v", err)
	}
	if got, _ := store.order(order.ID.String()); got.Status != trade.StatusFilled {
		t.Fatalf("order status = %s, want filled", got.Status)
	}
}
