package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/market"
	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/rest"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	bitstampName       = "bitstamp"
	bitstampBaseURL    = "https://www.bitstamp.net/api"
	bitstampRateMax    = 600
	bitstampRateWindow = 600 * time.Second
)

var bitstampPairs = pairs("BTC", "USD")

// Bitstamp only ever lists open orders; anything partially executing still
// shows as open.
var bitstampStatuses = market.StatusTable{"open": trade.StatusOpen}

var bitstampMinimum = decimal.New(1, -2)

// Bitstamp has no native market orders. They are emulated with a limit
// order at a force-refreshed quote, and the chosen price is recorded on the
// order so reconciliation compares against what was actually submitted.
type Bitstamp struct {
	client  *rest.Client
	store   state.Store
	cache   *market.PriceCache
	fees    *market.FeeCache
	pair    trade.CurrencyPair
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newBitstamp(cfg config.MarketConfig, deps Deps) (market.Adapter, error) {
	deps = deps.fill()
	b := &Bitstamp{
		store:   deps.Store,
		pair:    defaultPair(cfg),
		log:     deps.Log.With(zap.String("market", bitstampName)),
		metrics: deps.Metrics,
	}
	auth := rest.BodyCredentials{User: cfg.User, Password: cfg.Password}
	b.client = newRestClient(cfg, bitstampBaseURL, bitstampRateMax, bitstampRateWindow, auth, deps)
	b.cache = market.NewPriceCache(bitstampName, deps.Store, cfg.PriceMaxAge, b.fetchTicker)
	b.cache.SetMetrics(deps.Metrics)
	b.fees = market.NewFeeCache(b.fetchTradeFee)
	return b, nil
}

func (b *Bitstamp) Name() string { return bitstampName }

func (b *Bitstamp) SupportsPair(pair trade.CurrencyPair) bool { return bitstampPairs.contains(pair) }

func (b *Bitstamp) MinimumTrade() decimal.Decimal { return bitstampMinimum }

// call surfaces the venue's in-band errors: a 200 whose body carries an
// "error" field is an application failure, not a success.
func (b *Bitstamp) call(ctx context.Context, method, path string, params rest.Params, authenticated bool) ([]byte, error) {
	body, err := b.client.Do(ctx, method, path, params, authenticated)
	if err != nil {
		return nil, err
	}
	var check struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &check) == nil && len(check.Error) > 0 {
		return nil, trade.Applicationf("API returned error: %s (request path %s)", check.Error, path)
	}
	return body, nil
}

func (b *Bitstamp) ExecuteOrder(ctx context.Context, order *trade.Order) error {
	if err := checkExecute(bitstampName, order, bitstampMinimum, bitstampPairs); err != nil {
		return err
	}
	price := order.Price
	if order.MarketOrder {
		quote, err := b.CurrentPrice(ctx, true, order.Pair)
		if err != nil {
			b.metrics.OrdersFailed.Inc()
			return err
		}
		if order.Type == trade.Buy {
			price = quote.Buy
		} else {
			price = quote.Sell
		}
	}

	path := "buy/"
	if order.Type == trade.Sell {
		path = "sell/"
	}
	params := rest.Params{
		{Key: "amount", Value: order.Amount.String()},
		{Key: "price", Value: price.String()},
	}
	body, err := b.call(ctx, http.MethodPost, path, params, true)
	if err != nil {
		b.metrics.OrdersFailed.Inc()
		return err
	}
	var placed struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(body, &placed); err != nil || placed.ID.String() == "" {
		b.metrics.OrdersFailed.Inc()
		return trade.Applicationf("order submission returned no order identifier")
	}

	order.RemoteID = placed.ID.String()
	order.Price = price
	order.Status = trade.StatusOpen
	order.UpdatedAt = time.Now().UTC()
	if err := b.store.SaveOrder(ctx, *order); err != nil {
		return err
	}
	b.metrics.OrdersPlaced.Inc()
	b.fees.Invalidate()
	b.log.Info("order placed", zap.String("order", order.ID.String()), zap.String("remote_id", order.RemoteID))
	return nil
}

func (b *Bitstamp) CancelOrder(ctx context.Context, order *trade.Order) error {
	if err := checkCancel(bitstampName, order); err != nil {
		return err
	}
	params := rest.Params{{Key: "id", Value: order.RemoteID}}
	body, err := b.call(ctx, http.MethodPost, "cancel_order/", params, true)
	if err != nil {
		return err
	}
	if !bytes.Equal(bytes.TrimSpace(body), []byte("true")) {
		return trade.Applicationf("cancel of order %s was not acknowledged", order.RemoteID)
	}
	b.metrics.OrdersCancelled.Inc()
	return nil
}

func (b *Bitstamp) UpdateOrderStatus(ctx context.Context, order *trade.Order) error {
	snapshot, err := b.openOrders(ctx)
	if err != nil {
		return err
	}
	if err := market.Reconcile(order, snapshot, bitstampStatuses); err != nil {
		return err
	}
	return b.store.SaveOrder(ctx, *order)
}

func (b *Bitstamp) UpdateMarket(ctx context.Context) error {
	snapshot, err := b.openOrders(ctx)
	if err != nil {
		return err
	}
	if err := market.RefreshOrders(ctx, b.store, bitstampName, snapshot, bitstampStatuses); err != nil {
		b.metrics.ReconcileFailures.Inc()
		return err
	}
	_, err = b.CurrentPrice(ctx, false, b.pair)
	return err
}

func (b *Bitstamp) CurrentPrice(ctx context.Context, force bool, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	if !bitstampPairs.contains(pair) {
		return trade.PriceQuote{}, trade.Validationf("%s does not support currency pair %s", bitstampName, pair)
	}
	return b.cache.Get(ctx, force, pair)
}

func (b *Bitstamp) AmountAfterFees(ctx context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	rate, err := b.fees.Rate(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return market.AfterFees(amount, rate), nil
}

func (b *Bitstamp) AmountIncludingFees(ctx context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	rate, err := b.fees.Rate(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return market.IncludingFees(amount, rate)
}

func (b *Bitstamp) openOrders(ctx context.Context) ([]trade.ExchangeOrder, error) {
	body, err := b.call(ctx, http.MethodPost, "open_orders/", nil, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ID     json.Number `json:"id"`
		Amount string      `json:"amount"`
		Price  string      `json:"price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, trade.Applicationf("malformed open orders response: %v", err)
	}
	records := make([]trade.ExchangeOrder, 0, len(raw))
	for _, entry := range raw {
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			return nil, trade.Applicationf("malformed order amount %q", entry.Amount)
		}
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, trade.Applicationf("malformed order price %q", entry.Price)
		}
		records = append(records, trade.ExchangeOrder{
			RemoteID:     entry.ID.String(),
			Pair:         trade.Pair("BTC", "USD"),
			Amount:       amount,
			Price:        price,
			NativeStatus: "open",
		})
	}
	return records, nil
}

func (b *Bitstamp) fetchTicker(ctx context.Context, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	body, err := b.call(ctx, http.MethodGet, "ticker/", nil, false)
	if err != nil {
		return trade.PriceQuote{}, err
	}
	var ticker struct {
		Ask string `json:"ask"`
		Bid string `json:"bid"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed ticker response: %v", err)
	}
	ask, err := decimal.NewFromString(ticker.Ask)
	if err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed ask price %q", ticker.Ask)
	}
	bid, err := decimal.NewFromString(ticker.Bid)
	if err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed bid price %q", ticker.Bid)
	}
	return trade.PriceQuote{Market: bitstampName, Pair: pair, Buy: ask, Sell: bid}, nil
}

func (b *Bitstamp) fetchTradeFee(ctx context.Context) (decimal.Decimal, error) {
	body, err := b.call(ctx, http.MethodPost, "balance/", nil, true)
	if err != nil {
		return decimal.Decimal{}, err
	}
	var balance struct {
		Fee decimal.Decimal `json:"fee"`
	}
	if err := json.Unmarshal(body, &balance); err != nil {
		return decimal.Decimal{}, trade.Applicationf("malformed balance response: %v", err)
	}
	return balance.Fee, nil
}
