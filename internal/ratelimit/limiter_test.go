package ratelimit

import (
	"testing"
	"time"

	"grimm.is/headmod/internal/clock"
)

func TestAllowWithinLimit(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	l := NewLimiterWithClock(clk)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1", 3, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1", 3, time.Minute) {
		t.Fatal("fourth request should be rejected")
	}
}

func TestWindowResets(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	l := NewLimiterWithClock(clk)

	if !l.Allow("10.0.0.1", 1, time.Minute) {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("10.0.0.1", 1, time.Minute) {
		t.Fatal("second request in same window should be rejected")
	}

	clk.Advance(time.Minute)
	if !l.Allow("10.0.0.1", 1, time.Minute) {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	l := NewLimiterWithClock(clk)

	if !l.Allow("10.0.0.1", 1, time.Minute) {
		t.Fatal("first key should be allowed")
	}
	if !l.Allow("10.0.0.2", 1, time.Minute) {
		t.Fatal("second key should be unaffected by first")
	}
	if l.Allow("10.0.0.1", 1, time.Minute) {
		t.Fatal("first key should still be limited")
	}
}

func TestEvictDropsIdleWindows(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	l := NewLimiterWithClock(clk)

	l.Allow("10.0.0.1", 5, time.Minute)
	l.Allow("10.0.0.2", 5, time.Minute)

	clk.Advance(30 * time.Minute)
	l.Allow("10.0.0.2", 5, time.Minute)

	l.evict(10 * time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.windows["10.0.0.1"]; ok {
		t.Fatal("idle window should have been evicted")
	}
	if _, ok := l.windows["10.0.0.2"]; !ok {
		t.Fatal("active window should survive eviction")
	}
}
