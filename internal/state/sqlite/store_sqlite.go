package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"btc-order-gw/internal/trade"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	market TEXT NOT NULL,
	order_type TEXT NOT NULL,
	market_order INTEGER NOT NULL,
	amount TEXT NOT NULL,
	price TEXT NOT NULL,
	curr_from TEXT NOT NULL,
	curr_to TEXT NOT NULL,
	status TEXT NOT NULL,
	remote_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_market_status ON orders (market, status);
CREATE TABLE IF NOT EXISTS prices (
	market TEXT NOT NULL,
	curr_from TEXT NOT NULL,
	curr_to TEXT NOT NULL,
	buy TEXT NOT NULL,
	sell TEXT NOT NULL,
	at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prices_key_at ON prices (market, curr_from, curr_to, at);
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`)
	return err
}

func (s *Store) SaveOrder(ctx context.Context, order trade.Order) error {
	marketOrder := 0
	if order.MarketOrder {
		marketOrder = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id, market, order_type, market_order, amount, price, curr_from, curr_to, status, remote_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	price = excluded.price,
	status = excluded.status,
	remote_id = excluded.remote_id,
	updated_at = excluded.updated_at`,
		order.ID.String(), order.Market, string(order.Type), marketOrder,
		order.Amount.String(), order.Price.String(), order.Pair.From, order.Pair.To,
		string(order.Status), order.RemoteID,
		order.CreatedAt.UnixMilli(), time.Now().UnixMilli())
	return err
}

func (s *Store) Order(ctx context.Context, id uuid.UUID) (trade.Order, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, market, order_type, market_order, amount, price, curr_from, curr_to, status, remote_id, created_at, updated_at
FROM orders WHERE id = ?`, id.String())
	if err != nil {
		return trade.Order{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return trade.Order{}, false, rows.Err()
	}
	order, err := scanOrder(rows)
	if err != nil {
		return trade.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) OpenOrders(ctx context.Context, market string) ([]trade.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, market, order_type, market_order, amount, price, curr_from, curr_to, status, remote_id, created_at, updated_at
FROM orders
WHERE market = ? AND status NOT IN (?, ?)
ORDER BY created_at`,
		market, string(trade.StatusFilled), string(trade.StatusInvalid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []trade.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrder(rows *sql.Rows) (trade.Order, error) {
	var (
		order                    trade.Order
		id, orderType, status    string
		amount, price            string
		marketOrder              int
		createdAtMS, updatedAtMS int64
	)
	if err := rows.Scan(&id, &order.Market, &orderType, &marketOrder, &amount, &price,
		&order.Pair.From, &order.Pair.To, &status, &order.RemoteID, &createdAtMS, &updatedAtMS); err != nil {
		return trade.Order{}, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return trade.Order{}, err
	}
	order.ID = parsedID
	order.Type = trade.OrderType(orderType)
	order.MarketOrder = marketOrder != 0
	order.Status = trade.OrderStatus(status)
	if order.Amount, err = decimal.NewFromString(amount); err != nil {
		return trade.Order{}, err
	}
	if order.Price, err = decimal.NewFromString(price); err != nil {
		return trade.Order{}, err
	}
	order.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	order.UpdatedAt = time.UnixMilli(updatedAtMS).UTC()
	return order, nil
}

func (s *Store) SavePrice(ctx context.Context, quote trade.PriceQuote) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO prices (market, curr_from, curr_to, buy, sell, at)
VALUES (?, ?, ?, ?, ?, ?)`,
		quote.Market, quote.Pair.From, quote.Pair.To,
		quote.Buy.String(), quote.Sell.String(), quote.Time.UnixMilli())
	return err
}

func (s *Store) LatestPrice(ctx context.Context, market string, pair trade.CurrencyPair) (trade.PriceQuote, bool, error) {
	var (
		buy, sell string
		atMS      int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT buy, sell, at FROM prices
WHERE market = ? AND curr_from = ? AND curr_to = ?
ORDER BY at DESC LIMIT 1`,
		market, pair.From, pair.To).Scan(&buy, &sell, &atMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trade.PriceQuote{}, false, nil
		}
		return trade.PriceQuote{}, false, err
	}
	quote := trade.PriceQuote{Market: market, Pair: pair, Time: time.UnixMilli(atMS).UTC()}
	if quote.Buy, err = decimal.NewFromString(buy); err != nil {
		return trade.PriceQuote{}, false, err
	}
	if quote.Sell, err = decimal.NewFromString(sell); err != nil {
		return trade.PriceQuote{}, false, err
	}
	return quote, true, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
