package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
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
	mtgoxName       = "mtgox"
	mtgoxBaseURL    = "https://data.mtgox.com/api/2"
	mtgoxRateMax    = 10
	mtgoxRateWindow = 10 * time.Second
)

// MtGox encodes every amount as a fixed-point integer. The divisor depends
// on the currency, not on the field.
var mtgoxUnits = trade.UnitScale{
	"BTC": 100000000,
	"USD": 100000,
	"GBP": 100000,
	"EUR": 100000,
	"JPY": 1000,
	"AUD": 100000,
	"CAD": 100000,
	"CHF": 100000,
	"CNY": 100000,
	"DKK": 100000,
	"HKD": 100000,
	"PLN": 100000,
	"RUB": 100000,
	"SEK": 1000,
	"SGD": 100000,
	"THB": 100000,
}

var mtgoxPairs = pairs("BTC",
	"USD", "GBP", "EUR", "JPY", "AUD", "CAD", "CHF",
	"CNY", "DKK", "HKD", "PLN", "RUB", "SEK", "SGD", "THB")

var mtgoxStatuses = market.StatusTable{
	"pending":      trade.StatusExecuting,
	"executing":    trade.StatusExecuting,
	"post-pending": trade.StatusExecuting,
	"open":         trade.StatusOpen,
	"invalid":      trade.StatusInvalid,
}

var mtgoxMinimum = decimal.New(1, -2) // 0.01 BTC

type MtGox struct {
	client  *rest.Client
	store   state.Store
	cache   *market.PriceCache
	fees    *market.FeeCache
	pair    trade.CurrencyPair
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newMtGox(cfg config.MarketConfig, deps Deps) (market.Adapter, error) {
	deps = deps.fill()
	m := &MtGox{
		store:   deps.Store,
		pair:    defaultPair(cfg),
		log:     deps.Log.With(zap.String("market", mtgoxName)),
		metrics: deps.Metrics,
	}
	m.client = newRestClient(cfg, mtgoxBaseURL, mtgoxRateMax, mtgoxRateWindow, rest.NewHMACKeypair(cfg.Key, cfg.Secret), deps)
	m.cache = market.NewPriceCache(mtgoxName, deps.Store, cfg.PriceMaxAge, m.fetchTicker)
	m.cache.SetMetrics(deps.Metrics)
	m.fees = market.NewFeeCache(m.fetchTradeFee)
	return m, nil
}

func (m *MtGox) Name() string { return mtgoxName }

func (m *MtGox) SupportsPair(pair trade.CurrencyPair) bool { return mtgoxPairs.contains(pair) }

func (m *MtGox) MinimumTrade() decimal.Decimal { return mtgoxMinimum }

// call unwraps the v2 response envelope. Anything other than a "success"
// result is an application failure even though the HTTP status was 200.
func (m *MtGox) call(ctx context.Context, method, path string, params rest.Params, authenticated bool) (json.RawMessage, error) {
	body, err := m.client.Do(ctx, method, path, params, authenticated)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Result string          `json:"result"`
		Data   json.RawMessage `json:"data"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, trade.Applicationf("malformed response from %s: %v", path, err)
	}
	if envelope.Result != "success" {
		if envelope.Error != "" {
			return nil, trade.Applicationf("API request did not return success response: %s (request path %s)", envelope.Error, path)
		}
		return nil, trade.Applicationf("API request did not return success response (request path %s)", path)
	}
	return envelope.Data, nil
}

func (m *MtGox) ExecuteOrder(ctx context.Context, order *trade.Order) error {
	if err := checkExecute(mtgoxName, order, mtgoxMinimum, mtgoxPairs); err != nil {
		return err
	}
	side := "bid"
	if order.Type == trade.Sell {
		side = "ask"
	}
	amountInt, err := mtgoxUnits.ToUnits(order.Pair.From, order.Amount)
	if err != nil {
		return err
	}
	params := rest.Params{
		{Key: "type", Value: side},
		{Key: "amount_int", Value: strconv.FormatInt(amountInt, 10)},
	}
	if !order.MarketOrder {
		priceInt, err := mtgoxUnits.ToUnits(order.Pair.To, order.Price)
		if err != nil {
			return err
		}
		params = append(params, rest.Param{Key: "price_int", Value: strconv.FormatInt(priceInt, 10)})
	}

	data, err := m.call(ctx, http.MethodPost, order.Pair.String()+"/money/order/add", params, true)
	if err != nil {
		m.metrics.OrdersFailed.Inc()
		return err
	}
	var remoteID string
	if err := json.Unmarshal(data, &remoteID); err != nil || remoteID == "" {
		m.metrics.OrdersFailed.Inc()
		return trade.Applicationf("order submission returned no order identifier")
	}

	order.RemoteID = remoteID
	order.Status = trade.StatusOpen
	order.UpdatedAt = time.Now().UTC()
	if err := m.store.SaveOrder(ctx, *order); err != nil {
		return err
	}
	m.metrics.OrdersPlaced.Inc()
	m.fees.Invalidate()
	m.log.Info("order placed", zap.String("order", order.ID.String()), zap.String("remote_id", remoteID))
	return nil
}

func (m *MtGox) CancelOrder(ctx context.Context, order *trade.Order) error {
	if err := checkCancel(mtgoxName, order); err != nil {
		return err
	}
	params := rest.Params{{Key: "oid", Value: order.RemoteID}}
	if _, err := m.call(ctx, http.MethodPost, order.Pair.String()+"/money/order/cancel", params, true); err != nil {
		return err
	}
	m.metrics.OrdersCancelled.Inc()
	return nil
}

func (m *MtGox) UpdateOrderStatus(ctx context.Context, order *trade.Order) error {
	snapshot, err := m.openOrders(ctx)
	if err != nil {
		return err
	}
	if err := market.Reconcile(order, snapshot, mtgoxStatuses); err != nil {
		return err
	}
	return m.store.SaveOrder(ctx, *order)
}

func (m *MtGox) UpdateMarket(ctx context.Context) error {
	snapshot, err := m.openOrders(ctx)
	if err != nil {
		return err
	}
	if err := market.RefreshOrders(ctx, m.store, mtgoxName, snapshot, mtgoxStatuses); err != nil {
		m.metrics.ReconcileFailures.Inc()
		return err
	}
	_, err = m.CurrentPrice(ctx, false, m.pair)
	return err
}

func (m *MtGox) CurrentPrice(ctx context.Context, force bool, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	if !mtgoxPairs.contains(pair) {
		return trade.PriceQuote{}, trade.Validationf("%s does not support currency pair %s", mtgoxName, pair)
	}
	return m.cache.Get(ctx, force, pair)
}

func (m *MtGox) AmountAfterFees(ctx context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	rate, err := m.fees.Rate(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return market.AfterFees(amount, rate), nil
}

func (m *MtGox) AmountIncludingFees(ctx context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	rate, err := m.fees.Rate(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return market.IncludingFees(amount, rate)
}

type mtgoxMoney struct {
	ValueInt string `json:"value_int"`
	Currency string `json:"currency"`
}

func (v mtgoxMoney) decimal() (decimal.Decimal, error) {
	units, err := strconv.ParseInt(v.ValueInt, 10, 64)
	if err != nil {
		return decimal.Decimal{}, trade.Applicationf("malformed integer amount %q", v.ValueInt)
	}
	return mtgoxUnits.FromUnits(v.Currency, units)
}

func (m *MtGox) openOrders(ctx context.Context) ([]trade.ExchangeOrder, error) {
	data, err := m.call(ctx, http.MethodPost, m.pair.String()+"/money/orders", nil, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OID      string     `json:"oid"`
		Item     string     `json:"item"`
		Currency string     `json:"currency"`
		Amount   mtgoxMoney `json:"amount"`
		Price    mtgoxMoney `json:"price"`
		Status   string     `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, trade.Applicationf("malformed open orders response: %v", err)
	}
	records := make([]trade.ExchangeOrder, 0, len(raw))
	for _, entry := range raw {
		record := trade.ExchangeOrder{
			RemoteID:     entry.OID,
			Pair:         trade.Pair(entry.Item, entry.Currency),
			NativeStatus: entry.Status,
		}
		if entry.Amount.ValueInt != "" {
			if record.Amount, err = entry.Amount.decimal(); err != nil {
				return nil, err
			}
		}
		if entry.Price.ValueInt != "" {
			if record.Price, err = entry.Price.decimal(); err != nil {
				return nil, err
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (m *MtGox) fetchTicker(ctx context.Context, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	data, err := m.call(ctx, http.MethodGet, pair.String()+"/money/ticker_fast", nil, false)
	if err != nil {
		return trade.PriceQuote{}, err
	}
	var ticker struct {
		Buy  mtgoxMoney `json:"buy"`
		Sell mtgoxMoney `json:"sell"`
	}
	if err := json.Unmarshal(data, &ticker); err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed ticker response: %v", err)
	}
	// The venue's "buy" is the best bid, so it is what a seller receives.
	ask, err := ticker.Sell.decimal()
	if err != nil {
		return trade.PriceQuote{}, err
	}
	bid, err := ticker.Buy.decimal()
	if err != nil {
		return trade.PriceQuote{}, err
	}
	return trade.PriceQuote{Market: mtgoxName, Pair: pair, Buy: ask, Sell: bid}, nil
}

func (m *MtGox) fetchTradeFee(ctx context.Context) (decimal.Decimal, error) {
	data, err := m.call(ctx, http.MethodPost, "money/info", nil, true)
	if err != nil {
		return decimal.Decimal{}, err
	}
	var info struct {
		TradeFee decimal.Decimal `json:"Trade_Fee"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return decimal.Decimal{}, trade.Applicationf("malformed account info response: %v", err)
	}
	return info.TradeFee, nil
}
