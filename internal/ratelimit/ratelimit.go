// Package ratelimit paces outbound requests to the target site: a randomized
// minimum delay between any two requests plus an overall requests-per-minute
// ceiling.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter serializes outbound pacing. Waiters queue on the internal mutex, so
// the delay is enforced between any two requests across all callers.
type Limiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	perMinute  int // 0 = unbounded
	window     time.Duration
	lastAction time.Time
	recent     []time.Time
}

// New builds a limiter with a jittered [minDelay, maxDelay] gap between
// requests and at most perMinute requests per minute (0 disables the ceiling).
func New(minDelay, maxDelay time.Duration, perMinute int) *Limiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Limiter{
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		perMinute: perMinute,
		window:    time.Minute,
	}
}

// Wait blocks until issuing a request now would respect both the randomized
// gap and the per-minute ceiling, then claims the slot.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastAction)
	if delay := l.jitteredDelay(); elapsed < delay {
		if err := sleep(ctx, delay-elapsed); err != nil {
			return err
		}
	}

	if l.perMinute > 0 {
		for {
			l.prune()
			if len(l.recent) < l.perMinute {
				break
			}
			// Wait for the oldest request to fall out of the window.
			wait := l.window - time.Since(l.recent[0])
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.recent = append(l.recent, time.Now())
	}

	l.lastAction = time.Now()
	return nil
}

// SetDelay adjusts the gap bounds.
func (l *Limiter) SetDelay(minDelay, maxDelay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDelay = minDelay
	l.maxDelay = maxDelay
	if l.maxDelay < l.minDelay {
		l.maxDelay = l.minDelay
	}
}

func (l *Limiter) jitteredDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(rand.Int63n(int64(l.maxDelay-l.minDelay)))
}

func (l *Limiter) prune() {
	cutoff := time.Now().Add(-l.window)
	i := 0
	for i < len(l.recent) && l.recent[i].Before(cutoff) {
		i++
	}
	l.recent = l.recent[i:]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
