package venue

import (
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
	campbxName       = "campbx"
	campbxBaseURL    = "https://campbx.com/api"
	campbxRateMax    = 1
	campbxRateWindow = 500 * time.Millisecond
)

var campbxPairs = pairs("BTC", "USD")

var campbxStatuses = market.StatusTable{"open": trade.StatusOpen}

var campbxMinimum = decimal.New(1, -2)

type CampBX struct {
	client  *rest.Client
	store   state.Store
	cache   *market.PriceCache
	pair    trade.CurrencyPair
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newCampBX(cfg config.MarketConfig, deps Deps) (market.Adapter, error) {
	deps = deps.fill()
	c := &CampBX{
		store:   deps.Store,
		pair:    defaultPair(cfg),
		log:     deps.Log.With(zap.String("market", campbxName)),
		metrics: deps.Metrics,
	}
	auth := rest.BodyCredentials{User: cfg.User, Password: cfg.Password}
	c.client = newRestClient(cfg, campbxBaseURL, campbxRateMax, campbxRateWindow, auth, deps)
	c.cache = market.NewPriceCache(campbxName, deps.Store, cfg.PriceMaxAge, c.fetchTicker)
	c.cache.SetMetrics(deps.Metrics)
	return c, nil
}

func (c *CampBX) Name() string { return campbxName }

func (c *CampBX) SupportsPair(pair trade.CurrencyPair) bool { return campbxPairs.contains(pair) }

func (c *CampBX) MinimumTrade() decimal.Decimal { return campbxMinimum }

// call rejects responses whose body carries an "Error" field. The venue
// reports every failure that way, always with HTTP status 200.
func (c *CampBX) call(ctx context.Context, method, path string, params rest.Params, authenticated bool) ([]byte, error) {
	body, err := c.client.Do(ctx, method, path, params, authenticated)
	if err != nil {
		return nil, err
	}
	var check struct {
		Error string `json:"Error"`
	}
	if json.Unmarshal(body, &check) == nil && check.Error != "" {
		return nil, trade.Applicationf("API returned error: %s (request path %s)", check.Error, path)
	}
	return body, nil
}

func (c *CampBX) ExecuteOrder(ctx context.Context, order *trade.Order) error {
	if err := checkExecute(campbxName, order, campbxMinimum, campbxPairs); err != nil {
		return err
	}
	mode := "AdvancedBuy"
	if order.MarketOrder {
		mode = "QuickBuy"
	}
	if order.Type == trade.Sell {
		if order.MarketOrder {
			mode = "QuickSell"
		} else {
			mode = "AdvancedSell"
		}
	}
	params := rest.Params{
		{Key: "TradeMode", Value: mode},
		{Key: "Quantity", Value: order.Amount.String()},
	}
	if !order.MarketOrder {
		params = append(params, rest.Param{Key: "Price", Value: order.Price.String()})
	}

	body, err := c.call(ctx, http.MethodPost, "tradeenter.php", params, true)
	if err != nil {
		c.metrics.OrdersFailed.Inc()
		return err
	}
	var placed struct {
		Success json.Number `json:"Success"`
	}
	if err := json.Unmarshal(body, &placed); err != nil || placed.Success.String() == "" {
		c.metrics.OrdersFailed.Inc()
		return trade.Applicationf("order submission returned no order identifier")
	}

	order.RemoteID = placed.Success.String()
	order.Status = trade.StatusOpen
	order.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveOrder(ctx, *order); err != nil {
		return err
	}
	c.metrics.OrdersPlaced.Inc()
	c.log.Info("order placed", zap.String("order", order.ID.String()), zap.String("remote_id", order.RemoteID))
	return nil
}

func (c *CampBX) CancelOrder(ctx context.Context, order *trade.Order) error {
	if err := checkCancel(campbxName, order); err != nil {
		return err
	}
	side := "Buy"
	if order.Type == trade.Sell {
		side = "Sell"
	}
	params := rest.Params{
		{Key: "Type", Value: side},
		{Key: "OrderID", Value: order.RemoteID},
	}
	if _, err := c.call(ctx, http.MethodPost, "tradecancel.php", params, true); err != nil {
		return err
	}
	c.metrics.OrdersCancelled.Inc()
	return nil
}

func (c *CampBX) UpdateOrderStatus(ctx context.Context, order *trade.Order) error {
	snapshot, err := c.openOrders(ctx)
	if err != nil {
		return err
	}
	if err := market.Reconcile(order, snapshot, campbxStatuses); err != nil {
		return err
	}
	return c.store.SaveOrder(ctx, *order)
}

func (c *CampBX) UpdateMarket(ctx context.Context) error {
	snapshot, err := c.openOrders(ctx)
	if err != nil {
		return err
	}
	if err := market.RefreshOrders(ctx, c.store, campbxName, snapshot, campbxStatuses); err != nil {
		c.metrics.ReconcileFailures.Inc()
		return err
	}
	_, err = c.CurrentPrice(ctx, false, c.pair)
	return err
}

func (c *CampBX) CurrentPrice(ctx context.Context, force bool, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	if !campbxPairs.contains(pair) {
		return trade.PriceQuote{}, trade.Validationf("%s does not support currency pair %s", campbxName, pair)
	}
	return c.cache.Get(ctx, force, pair)
}

func (c *CampBX) AmountAfterFees(ctx context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	return decimal.Decimal{}, trade.Validationf("%s does not expose the account trade fee", campbxName)
}

func (c *CampBX) AmountIncludingFees(ctx context.Context, amount decimal.Decimal, _ trade.OrderType, _ string) (decimal.Decimal, error) {
	return decimal.Decimal{}, trade.Validationf("%s does not expose the account trade fee", campbxName)
}

type campbxOrder struct {
	OrderID  json.Number `json:"Order ID"`
	Price    string      `json:"Price"`
	Quantity string      `json:"Quantity"`
	Info     string      `json:"Info"`
}

func (c *CampBX) openOrders(ctx context.Context) ([]trade.ExchangeOrder, error) {
	body, err := c.call(ctx, http.MethodPost, "myorders.php", nil, true)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Buy  []campbxOrder `json:"Buy"`
		Sell []campbxOrder `json:"Sell"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, trade.Applicationf("malformed open orders response: %v", err)
	}
	var records []trade.ExchangeOrder
	for _, entry := range append(raw.Buy, raw.Sell...) {
		// an empty side holds a single informational placeholder entry
		if entry.OrderID.String() == "" {
			continue
		}
		amount, err := decimal.NewFromString(entry.Quantity)
		if err != nil {
			return nil, trade.Applicationf("malformed order quantity %q", entry.Quantity)
		}
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, trade.Applicationf("malformed order price %q", entry.Price)
		}
		records = append(records, trade.ExchangeOrder{
			RemoteID:     entry.OrderID.String(),
			Pair:         trade.Pair("BTC", "USD"),
			Amount:       amount,
			Price:        price,
			NativeStatus: "open",
		})
	}
	return records, nil
}

func (c *CampBX) fetchTicker(ctx context.Context, pair trade.CurrencyPair) (trade.PriceQuote, error) {
	body, err := c.call(ctx, http.MethodGet, "xticker.php", nil, false)
	if err != nil {
		return trade.PriceQuote{}, err
	}
	var ticker struct {
		BestAsk string `json:"Best Ask"`
		BestBid string `json:"Best Bid"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed ticker response: %v", err)
	}
	ask, err := decimal.NewFromString(ticker.BestAsk)
	if err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed ask price %q", ticker.BestAsk)
	}
	bid, err := decimal.NewFromString(ticker.BestBid)
	if err != nil {
		return trade.PriceQuote{}, trade.Applicationf("malformed bid price %q", ticker.BestBid)
	}
	return trade.PriceQuote{Market: campbxName, Pair: pair, Buy: ask, Sell: bid}, nil
}
