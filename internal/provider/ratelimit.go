package provider

import (
	"context"
	"sync"
	"time"
)

// RateWindow is the sliding window over which requests are counted.
const RateWindow = time.Minute

// RateLimiter paces outbound tracker requests with a sliding window: at most
// maxRequests calls may start within any RateWindow interval. Wait blocks
// the caller until a slot opens, so backpressure is synchronous and no
// request is ever dropped. State is in-memory only; a restart starts a
// fresh window.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter returns a limiter admitting maxRequests per RateWindow.
// Non-positive maxRequests falls back to 50.
func NewRateLimiter(maxRequests int) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 50
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      RateWindow,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the call may proceed, then records it. Returns early
// with the context error on cancellation.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := rl.now()
		rl.evict(now)

		if len(rl.timestamps) < rl.maxRequests {
			rl.timestamps = append(rl.timestamps, now)
			rl.mu.Unlock()
			return nil
		}

		// Oldest request ages out of the window first; sleep until then.
		wait := rl.window - now.Sub(rl.timestamps[0])
		rl.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Pending returns how many requests are currently counted in the window.
func (rl *RateLimiter) Pending() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.evict(rl.now())
	return len(rl.timestamps)
}

// evict drops timestamps older than the window. Caller holds the lock.
func (rl *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.timestamps) && !rl.timestamps[i].After(cutoff) {
		i++
	}
	rl.timestamps = rl.timestamps[i:]
}
