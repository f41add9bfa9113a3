// Package stats holds process-wide running counters per acquisition source.
// The collector is constructor-injected wherever it is needed; there is no
// ambient global state.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

type counters struct {
	attempts       atomic.Int64
	successes      atomic.Int64
	errors         atomic.Int64
	rateLimited    atomic.Int64
	blocked        atomic.Int64
	tokenRefreshes atomic.Int64
	lastSuccess    atomic.Int64 // unix nano, 0 = never
}

// Collector accumulates per-source counters. Increments are race-free;
// readers never block writers.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]*counters
}

func NewCollector() *Collector {
	return &Collector{sources: make(map[string]*counters)}
}

func (c *Collector) source(name string) *counters {
	c.mu.RLock()
	s, ok := c.sources[name]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.sources[name]; ok {
		return s
	}
	s = &counters{}
	c.sources[name] = s
	return s
}

// Record accounts one terminal source outcome.
func (c *Collector) Record(source string, status models.Status) {
	s := c.source(source)
	s.attempts.Add(1)

	switch status {
	case models.StatusSuccess:
		s.successes.Add(1)
		s.lastSuccess.Store(time.Now().UnixNano())
	case models.StatusRateLimited:
		s.rateLimited.Add(1)
	case models.StatusBlocked:
		s.blocked.Add(1)
	default:
		s.errors.Add(1)
	}
}

// RecordTokenRefresh accounts one successful credential refresh.
func (c *Collector) RecordTokenRefresh(source string) {
	c.source(source).tokenRefreshes.Add(1)
}

// Snapshot is a read-only view of one source's counters.
type Snapshot struct {
	Attempts       int64      `json:"attempts"`
	Successes      int64      `json:"successes"`
	Errors         int64      `json:"errors"`
	RateLimited    int64      `json:"rate_limited"`
	Blocked        int64      `json:"blocked"`
	TokenRefreshes int64      `json:"token_refreshes"`
	SuccessRate    string     `json:"success_rate"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
}

// Snapshot returns the current counters for every source seen so far.
func (c *Collector) Snapshot() map[string]Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Snapshot, len(c.sources))
	for name, s := range c.sources {
		snap := Snapshot{
			Attempts:       s.attempts.Load(),
			Successes:      s.successes.Load(),
			Errors:         s.errors.Load(),
			RateLimited:    s.rateLimited.Load(),
			Blocked:        s.blocked.Load(),
			TokenRefreshes: s.tokenRefreshes.Load(),
		}
		if snap.Attempts > 0 {
			snap.SuccessRate = fmt.Sprintf("%.1f%%", float64(snap.Successes)/float64(snap.Attempts)*100)
		} else {
			snap.SuccessRate = "0%"
		}
		if ns := s.lastSuccess.Load(); ns > 0 {
			t := time.Unix(0, ns)
			snap.LastSuccess = &t
		}
		out[name] = snap
	}
	return out
}

// Reset clears all counters. Operator action only; counters otherwise
// accumulate for the life of the process.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = make(map[string]*counters)
}
