package metrics

import (
	"context"
	"sync"
	"time"

	"grimm.is/headmod/internal/clock"
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/logging"
)

// Collector periodically polls the rule engine and refreshes gauge metrics.
// The reconciler keeps the registered-rules gauge current on its own passes;
// the collector exists to catch drift from rules the engine changed behind
// our back and to tick uptime.
type Collector struct {
	registry *Registry
	engine   engine.Engine
	logger   *logging.Logger
	interval time.Duration
	started  time.Time

	mu         sync.RWMutex
	lastUpdate time.Time
	ruleCount  int
}

// NewCollector creates a collector polling at the given interval.
func NewCollector(eng engine.Engine, logger *logging.Logger, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Collector{
		registry: Get(),
		engine:   eng,
		logger:   logger.WithComponent("metrics"),
		interval: interval,
		started:  clock.Now(),
	}
}

// Run polls until the context is cancelled. Call in its own goroutine.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) collect(ctx context.Context) {
	c.registry.Uptime.Set(clock.Since(c.started).Seconds())

	rules, err := c.engine.ListRules(ctx)
	if err != nil {
		c.logger.Warn("failed to poll engine rules", "error", err)
		return
	}
	c.registry.RegisteredRules.Set(float64(len(rules)))

	c.mu.Lock()
	c.lastUpdate = clock.Now()
	c.ruleCount = len(rules)
	c.mu.Unlock()
}

// Snapshot returns the last polled rule count and when it was taken.
// The status API reports these without touching the engine.
func (c *Collector) Snapshot() (ruleCount int, at time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ruleCount, c.lastUpdate
}
