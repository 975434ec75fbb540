package metrics

import (
	"context"
	"testing"
	"time"

	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/logging"
)

func seedEngine(t *testing.T, n int) *engine.MemoryEngine {
	t.Helper()
	eng := engine.NewMemoryEngine()
	var add []engine.Rule
	for i := 1; i <= n; i++ {
		add = append(add, engine.Rule{
			ID:       i,
			Priority: 1,
			Action: engine.Action{
				Type: engine.ActionTypeModifyHeaders,
				RequestHeaders: []engine.ModifyHeaderInfo{
					{Header: "x-test", Operation: engine.HeaderSet, Value: "v"},
				},
			},
		})
	}
	if err := eng.ApplyChanges(context.Background(), engine.Changes{AddRules: add}); err != nil {
		t.Fatalf("failed to seed engine: %v", err)
	}
	return eng
}

func TestCollectorSnapshot(t *testing.T) {
	eng := seedEngine(t, 3)
	c := NewCollector(eng, logging.Default(), time.Minute)

	c.collect(context.Background())

	count, at := c.Snapshot()
	if count != 3 {
		t.Errorf("rule count = %d, want 3", count)
	}
	if at.IsZero() {
		t.Error("last update not recorded")
	}
}

func TestCollectorSurvivesEngineError(t *testing.T) {
	eng := seedEngine(t, 1)
	c := NewCollector(eng, logging.Default(), time.Minute)
	c.collect(context.Background())

	eng.FailNext(context.DeadlineExceeded)
	c.collect(context.Background())

	// Failed poll keeps the previous snapshot.
	count, _ := c.Snapshot()
	if count != 1 {
		t.Errorf("rule count = %d, want 1", count)
	}
}

func TestCollectorLifecycle(t *testing.T) {
	eng := seedEngine(t, 0)
	c := NewCollector(eng, logging.Default(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
