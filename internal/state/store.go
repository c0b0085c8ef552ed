package state

import (
	"context"

	"btc-order-gw/internal/trade"

	"github.com/google/uuid"
)

// Store persists orders and price snapshots. Implementations provide their
// own consistency guarantees; callers never issue raw queries.
type Store interface {
	SaveOrder(ctx context.Context, order trade.Order) error
	Order(ctx context.Context, id uuid.UUID) (trade.Order, bool, error)
	// OpenOrders returns every order for the market that is not in a
	// terminal status.
	OpenOrders(ctx context.Context, market string) ([]trade.Order, error)
	SavePrice(ctx context.Context, quote trade.PriceQuote) error
	// LatestPrice returns the most recent snapshot for (market, pair).
	LatestPrice(ctx context.Context, market string, pair trade.CurrencyPair) (trade.PriceQuote, bool, error)
	// Get and Set are a small key-value sideband for operational state
	// such as poll offsets and audit records.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
