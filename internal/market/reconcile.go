package market

import (
	"btc-order-gw/internal/trade"
)

// StatusTable maps a venue-native order status string onto the canonical
// lifecycle. Strings absent from the table map to Unknown.
type StatusTable map[string]trade.OrderStatus

// Reconcile updates a local order from a venue open-orders snapshot.
//
// A matching record is cross-checked against local bookkeeping first: the
// currency legs and amount must agree, and a market order must carry exactly
// the price that was submitted (zero for native market orders, the recorded
// quote for venues that emulate them with limit orders). Any mismatch is an
// integrity failure and leaves the order as-is, because auto-correcting
// could mask a serious accounting bug.
//
// If no record matches and the order was Open or Executing, it is inferred
// Filled. The open-orders listing omits both filled and cancelled orders, so
// an order cancelled outside this system is indistinguishable from a fill
// here; that ambiguity is accepted.
func Reconcile(order *trade.Order, snapshot []trade.ExchangeOrder, statuses StatusTable) error {
	if order.Status.Terminal() {
		return nil
	}
	for _, record := range snapshot {
		if record.RemoteID != order.RemoteID || order.RemoteID == "" {
			continue
		}
		if record.Pair.From != order.Pair.From {
			return trade.Integrityf("order %s base currency mismatch: expected %s, venue reports %s",
				order.ID, order.Pair.From, record.Pair.From)
		}
		if record.Pair.To != order.Pair.To {
			return trade.Integrityf("order %s quote currency mismatch: expected %s, venue reports %s",
				order.ID, order.Pair.To, record.Pair.To)
		}
		if !record.Amount.Equal(order.Amount) {
			return trade.Integrityf("order %s amount mismatch: expected %s, venue reports %s",
				order.ID, order.Amount, record.Amount)
		}
		if order.MarketOrder && !record.Price.Equal(order.Price) {
			return trade.Integrityf("market order %s price mismatch: submitted %s, venue reports %s",
				order.ID, order.Price, record.Price)
		}
		status, ok := statuses[record.NativeStatus]
		if !ok {
			status = trade.StatusUnknown
		}
		order.Status = status
		return nil
	}
	if order.Status == trade.StatusOpen || order.Status == trade.StatusExecuting {
		order.Status = trade.StatusFilled
	}
	return nil
}
