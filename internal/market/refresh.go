package market

import (
	"context"

	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"
)

// RefreshOrders reconciles every non-terminal local order for a market
// against a single venue snapshot, persisting each updated order. The first
// failure aborts the rest of the batch: silently skipping an inconsistency
// is worse than retrying the whole batch later.
func RefreshOrders(ctx context.Context, store state.Store, marketName string, snapshot []trade.ExchangeOrder, statuses StatusTable) error {
	orders, err := store.OpenOrders(ctx, marketName)
	if err != nil {
		return err
	}
	for i := range orders {
		order := &orders[i]
		if err := Reconcile(order, snapshot, statuses); err != nil {
			return err
		}
		if err := store.SaveOrder(ctx, *order); err != nil {
			return err
		}
	}
	return nil
}
