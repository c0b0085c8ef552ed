package market

import (
	"context"
	"testing"

	"btc-order-gw/internal/trade"

	"github.com/shopspring/decimal"
)

func TestAfterFees(t *testing.T) {
	got := AfterFees(decimal.NewFromInt(100), decimal.RequireFromString("0.6"))
	if !got.Equal(decimal.RequireFromString("99.4")) {
		t.Fatalf("AfterFees = %s, want 99.4", got)
	}
}

func TestIncludingFees(t *testing.T) {
	gross, err := IncludingFees(decimal.RequireFromString("99.4"), decimal.RequireFromString("0.6"))
	if err != nil {
		t.Fatalf("IncludingFees failed: %v", err)
	}
	if !gross.Round(8).Equal(decimal.NewFromInt(100)) {
		t.Fatalf("IncludingFees = %s, want 100", gross)
	}
}

func TestIncludingFeesRejectsFullFee(t *testing.T) {
	_, err := IncludingFees(decimal.NewFromInt(1), decimal.NewFromInt(100))
	if !trade.IsKind(err, trade.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFeeCache(t *testing.T) {
	fetches := 0
	cache := NewFeeCache(func(ctx context.Context) (decimal.Decimal, error) {
		fetches++
		return decimal.RequireFromString("0.6"), nil
	})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rate, err := cache.Rate(ctx)
		if err != nil {
			t.Fatalf("rate failed: %v", err)
		}
		if !rate.Equal(decimal.RequireFromString("0.6")) {
			t.Fatalf("unexpected rate %s", rate)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected a single fetch, got %d", fetches)
	}
	cache.Invalidate()
	if _, err := cache.Rate(ctx); err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch after invalidation, got %d", fetches)
	}
}
