package rest

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a rolling request budget: at most max requests per window.
// Timestamps are appended in order, so expiry is a prefix trim.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window, now: time.Now}
}

// Admit blocks until another request may be issued, or ctx is done. Every
// attempt counts against the budget, whether or not the request succeeds.
func (l *Limiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	cutoff := now.Add(-l.window)
	trim := 0
	for trim < len(l.stamps) && !l.stamps[trim].After(cutoff) {
		trim++
	}
	l.stamps = l.stamps[trim:]
	l.stamps = append(l.stamps, now)
	var wait time.Duration
	if len(l.stamps) > l.max {
		wait = l.window - now.Sub(l.stamps[0])
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		l.release(now)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// release gives back a reserved slot after an aborted admit, so a request
// that was never sent does not count against the budget.
func (l *Limiter) release(stamp time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.stamps {
		if s.Equal(stamp) {
			l.stamps = append(l.stamps[:i], l.stamps[i+1:]...)
			return
		}
	}
}

// Pending reports how many timestamps are currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, s := range l.stamps {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}
