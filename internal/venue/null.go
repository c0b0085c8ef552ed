package venue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/market"
	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const nullName = "null"

var nullPairs = pairs("BTC", "USD")

var nullStatuses = market.StatusTable{"open": trade.StatusOpen}

var (
	nullMinimum = decimal.New(1, -2)
	nullBuy     = decimal.NewFromInt(101)
	nullSell    = decimal.NewFromInt(99)
	nullFee     = decimal.RequireFromString("0.6")
)

// Null is a venue that trades against nobody. Orders are accepted into an
// in-memory book and stay open until cancelled, and prices never move. It
// exists to exercise the full order lifecycle without touching a real
// exchange.
type Null struct {
	store   state.Store
	cache   *market.PriceCache
	pair    trade.CurrencyPair
	log     *zap.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	seq  int
	book map[string]trade.ExchangeOrder
}

func newNull(cfg config.MarketConfig, deps Deps) (market.Adapter, error) {
	deps = deps.fill()
	n := &Null{
		store:   deps.Store,
		pair:    defaultPair(cfg),
		log:     deps.Log.With(zap.String("market", nullName)),
		metrics: deps.Metrics,
		book:    make(map[string]trade.ExchangeOrder),
	}
	n.cache = market.NewPriceCache(nullName, deps.Store, cfg.PriceMaxAge, n.fetchTicker)
	n.cache.SetMetrics(deps.Metrics)
	return n, nil
}

func (n *Null) Name() string { return nullName }

func (n *Null) SupportsPair(pair trade.CurrencyPair) bool { return nullPairs.contains(pair) }

func (n *Null) MinimumTrade() decimal.Decimal { return nullMinimum }

func (n *Null) ExecuteOrder(ctx context.Context, order *trade.Order) error {
	if err := checkExecute(nullName, order, nullMinimum, nullPairs); err != nil {
		return err
	}
	n.mu.Lock()
	n.seq++
	remoteID := "null-" + strconv.Itoa(n.seq)
	n.book[remoteID] = trade.ExchangeOrder{
		RemoteID:     remoteID,
		Pair:         order.Pair,
		Amount:       order.Amount,
		Price:        order.Price,
		NativeStatus: "open",
	}
	n.mu.Unlock()

	order.RemoteID = remoteID
	order.Status = trade.StatusOpen
	order.UpdatedAt = time.Now().UTC()
	if err := n.store.SaveOrder(ctx, *order); err != nil {
		return err
	}
	n.metrics.OrdersPlaced.Inc()
	return nil
}

func (n *Null) CancelOrder(ctx context.Context, order *trade.Order) error {
	if err := checkCancel(nullName, order); err != nil {
		return err
	}
	n.mu.Lock()
	_, ok := n.book[order.RemoteID]
	delete(n.book, order.RemoteID)
	n.mu.Unlock()
	if !ok {
		return trade.Applicationf("order %s is not on the book", order.RemoteID)
	}
	n.metrics.OrdersCancelled.Inc()
	return nil
}

// Fill marks a booked order as executed, so the next reconciliation infers
// it Filled. Test hook.
func (n *Null) Fill(remoteID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.book[remoteID]
	delete(n.book, remoteID)
	return ok
}

func (n *Null) UpdateOrderStatus(ctx context.Context, order *trade.Order) error {
	if err := market.Reconcile(order, n.snapshot(), nullStatuses); err != nil {
		return err
	}
	return n.store.SaveOrder(ctx, *order)
}

func (n *Null) UpdateMarket(ctx context.Context) error {
	if err := market.RefreshOrders(ctx, n.store, nullName, n.snapshot(), nullStatuses); err != nil {
		n.metrics.ReconcileFailures.Inc()
		return err
	}
	_, err := n.CurrentPrice(ctx, false, n.pair)
	return err
}

func (n *Null) CurrentPrice(ctx context.Context, force bool, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	if !nullPairs.contains(pair) {
		return trade.PriceQuote{}, trade.Validationf("%s does not support currency pair %s", nullName, pair)
	}
	return n.cache.Get(ctx, force, pair)
}

func (n *Null) AmountAfterFees(_ context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	return market.AfterFees(amount, nullFee), nil
}

func (n *Null) AmountIncludingFees(_ context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	return market.IncludingFees(amount, nullFee)
}

func (n *Null) snapshot() []trade.ExchangeOrder {
	n.mu.Lock()
	defer n.mu.Unlock()
	records := make([]trade.ExchangeOrder, 0, len(n.book))
	for _, record := range n.book {
		records = append(records, record)
	}
	return records
}

func (n *Null) fetchTicker(_ context.Context, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	return trade.PriceQuote{Market: nullName, Pair: pair, Buy: nullBuy, Sell: nullSell}, nil
}
