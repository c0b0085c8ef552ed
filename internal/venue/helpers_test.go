package venue

import (
	"context"
	"sync"
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu     sync.Mutex
	orders map[string]trade.Order
	prices []trade.PriceQuote
	kv     map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[string]trade.Order)}
}

func (m *memoryStore) SaveOrder(_ context.Context, order trade.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID.String()] = order
	return nil
}

func (m *memoryStore) Order(_ context.Context, id uuid.UUID) (trade.Order, bool, error) {
	order, ok := m.order(id.String())
	return order, ok, nil
}

func (m *memoryStore) OpenOrders(_ context.Context, market string) ([]trade.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []trade.Order
	for _, order := range m.orders {
		if order.Market == market && !order.Status.Terminal() {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *memoryStore) SavePrice(_ context.Context, quote trade.PriceQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, quote)
	return nil
}

func (m *memoryStore) LatestPrice(_ context.Context, market string, pair trade.CurrencyPair) (trade.PriceQuote, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.prices) - 1; i >= 0; i-- {
		if m.prices[i].Market == market && m.prices[i].Pair == pair {
			return m.prices[i], true, nil
		}
	}
	return trade.PriceQuote{}, false, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.kv[key]
	return value, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv == nil {
		m.kv = make(map[string]string)
	}
	m.kv[key] = value
	return nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) order(id string) (trade.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	return order, ok
}

var _ state.Store = (*memoryStore)(nil)

// base64 of "secret"
const testSecret = "c2VjcmV0"

func testConfig(baseURL string) config.MarketConfig {
	return config.MarketConfig{
		BaseURL:     baseURL,
		Key:         "test-key",
		Secret:      testSecret,
		User:        "test-user",
		Password:    "test-password",
		DefaultFrom: "BTC",
		DefaultTo:   "USD",
		RateMax:     1000,
		RateWindow:  time.Second,
		Timeout:     2 * time.Second,
		Attempts:    1,
		PriceMaxAge: time.Minute,
	}
}
