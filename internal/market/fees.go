package market

import (
	"context"
	"sync"

	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// AfterFees returns amount with a percentage trade fee subtracted.
func AfterFees(amount, feePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(oneHundred.Sub(feePercent)).Div(oneHundred)
}

// IncludingFees returns the gross amount needed so that the given net amount
// remains after a percentage trade fee.
func IncludingFees(amount, feePercent decimal.Decimal) (decimal.Decimal, error) {
	remainder := oneHundred.Sub(feePercent)
	if remainder.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, trade.Validationf("trade fee %s%% leaves nothing", feePercent)
	}
	return amount.Mul(oneHundred).Div(remainder), nil
}

// FeeCache holds a venue's account trade fee (percent). The fee varies per
// account, so it is fetched lazily and invalidated after every successful
// trade.
type FeeCache struct {
	mu    sync.Mutex
	rate  decimal.Decimal
	valid bool
	fetch func(ctx context.Context) (decimal.Decimal, error)
}

func NewFeeCache(fetch func(ctx context.Context) (decimal.Decimal, error)) *FeeCache {
	return &FeeCache{fetch: fetch}
}

func (f *FeeCache) Rate(ctx context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.valid {
		return f.rate, nil
	}
	rate, err := f.fetch(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	f.rate = rate
	f.valid = true
	return rate, nil
}

func (f *FeeCache) Invalidate() {
	f.mu.Lock()
	f.valid = false
	f.mu.Unlock()
}
