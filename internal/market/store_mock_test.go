package market

import (
	"context"
	"sync"

	"btc-order-gw/internal/trade"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu     sync.Mutex
	orders map[string]trade.Order
	prices []trade.PriceQuote
	kv     map[string]string
	saves  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: make(map[string]trade.Order)}
}

func (m *memoryStore) SaveOrder(ctx context.Context, order trade.Order) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID.String()] = order
	m.saves++
	return nil
}

func (m *memoryStore) Order(ctx context.Context, id uuid.UUID) (trade.Order, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id.String()]
	return order, ok, nil
}

func (m *memoryStore) OpenOrders(ctx context.Context, market string) ([]trade.Order, error) {
	_ = ctx
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

func (m *memoryStore) SavePrice(ctx context.Context, quote trade.PriceQuote) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, quote)
	return nil
}

func (m *memoryStore) LatestPrice(ctx context.Context, market string, pair trade.CurrencyPair) (trade.PriceQuote, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.prices) - 1; i >= 0; i-- {
		q := m.prices[i]
		if q.Market == market && q.Pair == pair {
			return q, true, nil
		}
	}
	return trade.PriceQuote{}, false, nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.kv[key]
	return value, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv == nil {
		m.kv = make(map[string]string)
	}
	m.kv[key] = value
	return nil
}

func (m *memoryStore) Close() error { return nil }
