package metrics

import (
	"context"

	"grimm.is/headmod/internal/clock"
	"grimm.is/headmod/internal/engine"
)

// InstrumentedEngine wraps an engine and records call counts and latency
// per operation. Wrap once at construction so every caller (reconciler,
// API handlers, collector) is measured.
type InstrumentedEngine struct {
	inner    engine.Engine
	registry *Registry
}

// InstrumentEngine wraps eng with call metrics.
func InstrumentEngine(eng engine.Engine) *InstrumentedEngine {
	return &InstrumentedEngine{inner: eng, registry: Get()}
}

func (e *InstrumentedEngine) ListRules(ctx context.Context) ([]engine.Rule, error) {
	start := clock.Now()
	rules, err := e.inner.ListRules(ctx)
	e.registry.RecordEngineCall("list_rules", err, clock.Since(start).Seconds())
	return rules, err
}

func (e *InstrumentedEngine) ApplyChanges(ctx context.Context, changes engine.Changes) error {
	start := clock.Now()
	err := e.inner.ApplyChanges(ctx, changes)
	e.registry.RecordEngineCall("apply_changes", err, clock.Since(start).Seconds())
	return err
}
