// Package stream maintains live ticker feeds over websocket. A feed is an
// optional fast path next to the polled REST quotes: every tick is written
// to the same price store the adapters read through their caches.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/state"
	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultReconnectDelay = 5 * time.Second

type subscribeMessage struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Pair    string `json:"pair"`
}

type tickMessage struct {
	Channel string `json:"channel"`
	Pair    string `json:"pair"`
	Ask     string `json:"ask"`
	Bid     string `json:"bid"`
	Time    int64  `json:"time"`
}

// Feed streams ticker updates for one (market, pair) and persists each one.
// Run keeps the subscription alive across disconnects until the context is
// cancelled.
type Feed struct {
	market         string
	url            string
	pair           trade.CurrencyPair
	reconnectDelay time.Duration
	store          state.Store
	log            *zap.Logger
	metrics        *metrics.Metrics
	now            func() time.Time

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewFeed(market, url string, pair trade.CurrencyPair, reconnectDelay time.Duration, store state.Store, log *zap.Logger) *Feed {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{
		market:         market,
		url:            url,
		pair:           pair,
		reconnectDelay: reconnectDelay,
		store:          store,
		log:            log.With(zap.String("market", market)),
		metrics:        metrics.NewNoop(),
		now:            time.Now,
	}
}

func (f *Feed) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		f.metrics = m
	}
}

func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.session(ctx)
		f.reset()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("ticker feed disconnected", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

// session runs one connect-subscribe-read cycle and returns its fatal error.
func (f *Feed) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	sub := subscribeMessage{Event: "subscribe", Channel: "ticker", Pair: f.pair.String()}
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return err
	}

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		quote, ok := f.parseTick(raw)
		if !ok {
			continue
		}
		if err := f.store.SavePrice(ctx, quote); err != nil {
			f.log.Error("storing streamed quote failed", zap.Error(err))
			continue
		}
		f.metrics.PriceRefreshes.Inc()
	}
}

// parseTick accepts a ticker message for this feed's pair. Anything else,
// including subscription acknowledgements, is ignored.
func (f *Feed) parseTick(raw []byte) (trade.PriceQuote, bool) {
	var msg tickMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return trade.PriceQuote{}, false
	}
	if msg.Channel != "ticker" || msg.Pair != f.pair.String() {
		return trade.PriceQuote{}, false
	}
	ask, err := decimal.NewFromString(msg.Ask)
	if err != nil {
		return trade.PriceQuote{}, false
	}
	bid, err := decimal.NewFromString(msg.Bid)
	if err != nil {
		return trade.PriceQuote{}, false
	}
	at := f.now().UTC()
	if msg.Time > 0 {
		at = time.UnixMilli(msg.Time).UTC()
	}
	return trade.PriceQuote{
		Market: f.market,
		Pair:   f.pair,
		Buy:    ask,
		Sell:   bid,
		Time:   at,
	}, true
}

func (f *Feed) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close(websocket.StatusNormalClosure, "reset")
		f.conn = nil
	}
}
