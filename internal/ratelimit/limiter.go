// Package ratelimit provides a fixed-window per-key request limiter.
package ratelimit

import (
	"sync"
	"time"

	"grimm.is/headmod/internal/clock"
)

// Limiter counts requests per key within a fixed window. Keys are
// typically client IPs.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	clk     clock.Clock
}

type window struct {
	count   int
	started time.Time
}

// NewLimiter creates an empty limiter using the system clock.
func NewLimiter() *Limiter {
	return NewLimiterWithClock(&clock.RealClock{})
}

// NewLimiterWithClock creates an empty limiter with an injected clock.
func NewLimiterWithClock(clk clock.Clock) *Limiter {
	return &Limiter{windows: make(map[string]*window), clk: clk}
}

// Allow reports whether another request for key fits within limit per
// interval, and counts it if so.
func (l *Limiter) Allow(key string, limit int, interval time.Duration) bool {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.started) >= interval {
		l.windows[key] = &window{count: 1, started: now}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// StartCleanup evicts idle windows every cleanupInterval until stop is
// closed. Windows older than maxAge are dropped.
func (l *Limiter) StartCleanup(cleanupInterval, maxAge time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.evict(maxAge)
			}
		}
	}()
}

func (l *Limiter) evict(maxAge time.Duration) {
	cutoff := l.clk.Now().Add(-maxAge)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if w.started.Before(cutoff) {
			delete(l.windows, key)
		}
	}
}
