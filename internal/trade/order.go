package trade

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	Buy  OrderType = "buy"
	Sell OrderType = "sell"
)

func (t OrderType) Valid() bool {
	return t == Buy || t == Sell
}

type OrderStatus string

const (
	StatusNew       OrderStatus = "new"
	StatusOpen      OrderStatus = "open"
	StatusExecuting OrderStatus = "executing"
	StatusFilled    OrderStatus = "filled"
	StatusInvalid   OrderStatus = "invalid"
	StatusUnknown   OrderStatus = "unknown"
)

// Terminal statuses are never left once reached.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusInvalid
}

type CurrencyPair struct {
	From string
	To   string
}

func Pair(from, to string) CurrencyPair {
	return CurrencyPair{From: from, To: to}
}

func (p CurrencyPair) String() string {
	return p.From + p.To
}

// Order is a local trade intent. RemoteID stays empty until the order has
// been submitted to a venue, and is set at most once.
type Order struct {
	ID          uuid.UUID
	Market      string
	Type        OrderType
	MarketOrder bool
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Pair        CurrencyPair
	Status      OrderStatus
	RemoteID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrder(marketName string, orderType OrderType, pair CurrencyPair, amount decimal.Decimal) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:        uuid.New(),
		Market:    marketName,
		Type:      orderType,
		Pair:      pair,
		Amount:    amount,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewLimitOrder(marketName string, orderType OrderType, pair CurrencyPair, amount, price decimal.Decimal) *Order {
	o := NewOrder(marketName, orderType, pair, amount)
	o.Price = price
	return o
}

func NewMarketOrder(marketName string, orderType OrderType, pair CurrencyPair, amount decimal.Decimal) *Order {
	o := NewOrder(marketName, orderType, pair, amount)
	o.MarketOrder = true
	return o
}

// PriceQuote is an immutable (market, pair) price snapshot. Buy and Sell are
// from the caller's perspective: Buy is what acquiring the base currency
// costs (venue ask), Sell is what disposing of it yields (venue bid).
type PriceQuote struct {
	Market string
	Pair   CurrencyPair
	Buy    decimal.Decimal
	Sell   decimal.Decimal
	Time   time.Time
}

func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.Time)
}

// ExchangeOrder is a venue-reported view of an order, used only during
// reconciliation.
type ExchangeOrder struct {
	RemoteID     string
	Pair         CurrencyPair
	Amount       decimal.Decimal
	Price        decimal.Decimal
	NativeStatus string
}

func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %s@%s [%s]", o.Market, o.Type, o.Pair, o.Amount, o.Price, o.Status)
}
