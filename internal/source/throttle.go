package source

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum delay between requests per destination
// host, shared across all concurrent poll workers. Slots are reserved
// under the lock, so N concurrent callers to the same host are spaced
// N*delay apart regardless of the worker cap.
type Throttle struct {
	mu    sync.Mutex
	delay time.Duration
	next  map[string]time.Time // host -> earliest next request
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewThrottle creates a shared per-host throttle.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{
		delay: delay,
		next:  make(map[string]time.Time),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait blocks until the caller may issue a request to host, or until the
// context is cancelled.
func (t *Throttle) Wait(ctx context.Context, host string) error {
	if t.delay <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := t.now()
	at := t.next[host]
	if at.Before(now) {
		at = now
	}
	t.next[host] = at.Add(t.delay)
	t.mu.Unlock()

	if wait := at.Sub(now); wait > 0 {
		return t.sleep(ctx, wait)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
