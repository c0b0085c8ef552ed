package market

import (
	"context"

	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
)

// Adapter is the uniform operation contract every venue implements. All
// operations are synchronous; they may block for rate-limit admission plus
// network latency plus retries. Expected failures are returned as
// trade.Error values, never panics.
type Adapter interface {
	Name() string
	SupportsPair(pair trade.CurrencyPair) bool
	MinimumTrade() decimal.Decimal

	// ExecuteOrder submits a New order. On success the order's remote
	// identifier is set (exactly once) and its status becomes Open. On any
	// failure the order is left untouched.
	ExecuteOrder(ctx context.Context, order *trade.Order) error

	// CancelOrder cancels an Open or Executing order on the venue. Order
	// state is only changed by a later reconciliation.
	CancelOrder(ctx context.Context, order *trade.Order) error

	// UpdateOrderStatus refreshes one order from the venue's open-orders
	// snapshot.
	UpdateOrderStatus(ctx context.Context, order *trade.Order) error

	// UpdateMarket reconciles every non-terminal local order for this venue
	// and then refreshes the venue's price snapshot. Stops at the first
	// failure.
	UpdateMarket(ctx context.Context) error

	// CurrentPrice returns a quote for the pair, served from the store
	// unless it is stale or force is set.
	CurrentPrice(ctx context.Context, force bool, pair trade.CurrencyPair) (trade.PriceQuote, error)

	// AmountAfterFees returns what remains of amount once the venue's
	// trade fee has been subtracted.
	AmountAfterFees(ctx context.Context, amount decimal.Decimal, orderType trade.OrderType, currency string) (decimal.Decimal, error)

	// AmountIncludingFees returns the gross amount required so that amount
	// remains after the venue's trade fee.
	AmountIncludingFees(ctx context.Context, amount decimal.Decimal, orderType trade.OrderType, currency string) (decimal.Decimal, error)
}
