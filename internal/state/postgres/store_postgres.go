package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"btc-order-gw/internal/trade"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sql.DB
}

func New(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
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
	id UUID PRIMARY KEY,
	market TEXT NOT NULL,
	order_type TEXT NOT NULL,
	market_order BOOLEAN NOT NULL,
	amount NUMERIC NOT NULL,
	price NUMERIC NOT NULL,
	curr_from TEXT NOT NULL,
	curr_to TEXT NOT NULL,
	status TEXT NOT NULL,
	remote_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_market_status ON orders (market, status);
CREATE TABLE IF NOT EXISTS prices (
	market TEXT NOT NULL,
	curr_from TEXT NOT NULL,
	curr_to TEXT NOT NULL,
	buy NUMERIC NOT NULL,
	sell NUMERIC NOT NULL,
	at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prices_key_at ON prices (market, curr_from, curr_to, at DESC);
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`)
	return err
}

func (s *Store) SaveOrder(ctx context.Context, order trade.Order) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id, market, order_type, market_order, amount, price, curr_from, curr_to, status, remote_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	price = EXCLUDED.price,
	status = EXCLUDED.status,
	remote_id = EXCLUDED.remote_id,
	updated_at = EXCLUDED.updated_at`,
		order.ID, order.Market, string(order.Type), order.MarketOrder,
		order.Amount.String(), order.Price.String(), order.Pair.From, order.Pair.To,
		string(order.Status), order.RemoteID, order.CreatedAt, time.Now().UTC())
	return err
}

func (s *Store) Order(ctx context.Context, id uuid.UUID) (trade.Order, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, market, order_type, market_order, amount, price, curr_from, curr_to, status, remote_id, created_at, updated_at
FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trade.Order{}, false, nil
		}
		return trade.Order{}, false, err
	}
	return order, true, nil
}

func (s *Store) OpenOrders(ctx context.Context, market string) ([]trade.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, market, order_type, market_order, amount, price, curr_from, curr_to, status, remote_id, created_at, updated_at
FROM orders
WHERE market = $1 AND status NOT IN ($2, $3)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (trade.Order, error) {
	var (
		order             trade.Order
		id, typ, status   string
		amountStr, priceS string
	)
	if err := row.Scan(&id, &order.Market, &typ, &order.MarketOrder, &amountStr, &priceS,
		&order.Pair.From, &order.Pair.To, &status, &order.RemoteID,
		&order.CreatedAt, &order.UpdatedAt); err != nil {
		return trade.Order{}, err
	}
	var err error
	if order.ID, err = uuid.Parse(id); err != nil {
		return trade.Order{}, err
	}
	order.Type = trade.OrderType(typ)
	order.Status = trade.OrderStatus(status)
	if order.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return trade.Order{}, err
	}
	if order.Price, err = decimal.NewFromString(priceS); err != nil {
		return trade.Order{}, err
	}
	return order, nil
}

func (s *Store) SavePrice(ctx context.Context, quote trade.PriceQuote) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO prices (market, curr_from, curr_to, buy, sell, at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		quote.Market, quote.Pair.From, quote.Pair.To,
		quote.Buy.String(), quote.Sell.String(), quote.Time)
	return err
}

func (s *Store) LatestPrice(ctx context.Context, market string, pair trade.CurrencyPair) (trade.PriceQuote, bool, error) {
	var buy, sell string
	quote := trade.PriceQuote{Market: market, Pair: pair}
	err := s.db.QueryRowContext(ctx, `
SELECT buy, sell, at FROM prices
WHERE market = $1 AND curr_from = $2 AND curr_to = $3
ORDER BY at DESC LIMIT 1`,
		market, pair.From, pair.To).Scan(&buy, &sell, &quote.Time)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trade.PriceQuote{}, false, nil
		}
		return trade.PriceQuote{}, false, err
	}
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
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
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
INSERT INTO kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
