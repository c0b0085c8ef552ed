package rest

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAdmitsUnderBudget(t *testing.T) {
	limiter := NewLimiter(3, time.Second)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Admit(ctx); err != nil {
			t.Fatalf("admit %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("admits under budget should not block, took %v", elapsed)
	}
}

func TestLimiterBlocksOverBudget(t *testing.T) {
	window := 200 * time.Millisecond
	limiter := NewLimiter(2, window)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.Admit(ctx); err != nil {
			t.Fatalf("admit %d failed: %v", i, err)
		}
	}
	start := time.Now()
	if err := limiter.Admit(ctx); err != nil {
		t.Fatalf("third admit failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < window/2 {
		t.Fatalf("expected third admit to block near the window, blocked %v", elapsed)
	}
	if elapsed > 2*window {
		t.Fatalf("third admit blocked longer than the window: %v", elapsed)
	}
}

func TestLimiterPrunesExpired(t *testing.T) {
	now := time.Now()
	limiter := NewLimiter(1, 100*time.Millisecond)
	limiter.now = func() time.Time { return now }
	if err := limiter.Admit(context.Background()); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	now = now.Add(time.Second)
	if got := limiter.Pending(); got != 0 {
		t.Fatalf("expected 0 pending after window elapsed, got %d", got)
	}
	start := time.Now()
	if err := limiter.Admit(context.Background()); err != nil {
		t.Fatalf("admit after expiry failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("admit after expiry should not block, took %v", elapsed)
	}
}

func TestLimiterAdmitCancel(t *testing.T) {
	limiter := NewLimiter(1, 10*time.Second)
	if err := limiter.Admit(context.Background()); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Admit(ctx); err == nil {
		t.Fatal("expected context error from blocked admit")
	}
	if got := limiter.Pending(); got != 1 {
		t.Fatalf("aborted admit must not consume budget, pending = %d", got)
	}
}
