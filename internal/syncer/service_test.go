package syncer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/compile"
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/events"
	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/profile"
	"grimm.is/headmod/internal/state"
)

// countingEngine counts ApplyChanges calls so tests can assert how many
// reconciliation passes touched the engine.
type countingEngine struct {
	*engine.MemoryEngine
	applies atomic.Int64
}

func (e *countingEngine) ApplyChanges(ctx context.Context, changes engine.Changes) error {
	e.applies.Add(1)
	return e.MemoryEngine.ApplyChanges(ctx, changes)
}

type serviceFixture struct {
	svc      *Service
	eng      *countingEngine
	profiles *state.ProfileBucket
	settings *state.SettingsBucket
	cancel   context.CancelFunc
	done     chan struct{}
}

// newServiceFixture wires the full stack the daemon runs: store, buckets,
// change-stream adapter, hub, orchestrator, service. Writes to the store
// flow through the adapter into hub events, which drive the service loop.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store, err := state.NewSQLiteStore(state.DefaultOptions(":memory:"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	profiles, err := state.NewProfileBucket(store)
	if err != nil {
		t.Fatalf("failed to create profile bucket: %v", err)
	}
	settings, err := state.NewSettingsBucket(store)
	if err != nil {
		t.Fatalf("failed to create settings bucket: %v", err)
	}
	ruleIDs, err := state.NewRuleIDBucket(store)
	if err != nil {
		t.Fatalf("failed to create rule id bucket: %v", err)
	}
	ruleErrors, err := state.NewRuleErrorBucket(store)
	if err != nil {
		t.Fatalf("failed to create rule error bucket: %v", err)
	}

	hub := events.NewHub()
	eng := &countingEngine{MemoryEngine: engine.NewMemoryEngine()}
	orch := NewOrchestrator(eng, ruleIDs, ruleErrors, hub, nil, logging.Default(), nil,
		compile.Options{NativeResourceTypeBehavior: true})
	svc := NewService(orch, profiles, settings, hub, logging.Default(), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	adapter := events.NewStoreAdapter(hub, store)
	go adapter.Run(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		store.Close()
	})

	return &serviceFixture{
		svc:      svc,
		eng:      eng,
		profiles: profiles,
		settings: settings,
		cancel:   cancel,
		done:     done,
	}
}

func (f *serviceFixture) waitForRules(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rules, err := f.eng.ListRules(context.Background())
		if err == nil && len(rules) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	rules, _ := f.eng.ListRules(context.Background())
	t.Fatalf("engine holds %d rules, want %d", len(rules), want)
}

func testServiceProfile(name string) *profile.Profile {
	return &profile.Profile{
		ID:      uuid.New(),
		Name:    name,
		Enabled: true,
		RequestHeaderModGroups: []profile.ModGroup{{
			ID:   uuid.New(),
			Kind: profile.GroupCheckbox,
			Items: []profile.HeaderMod{{
				ID:        uuid.New(),
				Enabled:   true,
				Name:      "X-" + name,
				Operation: profile.OpSet,
				Value:     "v",
			}},
		}},
	}
}

func TestServiceSyncsOnProfileChange(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.profiles.Set(testServiceProfile("a")); err != nil {
		t.Fatalf("failed to store profile: %v", err)
	}
	f.waitForRules(t, 1)

	if err := f.profiles.Set(testServiceProfile("b")); err != nil {
		t.Fatalf("failed to store profile: %v", err)
	}
	f.waitForRules(t, 2)
}

func TestServiceCoalescesBursts(t *testing.T) {
	f := newServiceFixture(t)

	// Three writes inside the cooldown window should trigger one pass
	// with one engine call per profile, not three passes.
	for _, name := range []string{"a", "b", "c"} {
		if err := f.profiles.Set(testServiceProfile(name)); err != nil {
			t.Fatalf("failed to store profile: %v", err)
		}
	}
	f.waitForRules(t, 3)

	// Let any stray timer fire.
	time.Sleep(100 * time.Millisecond)

	// One ApplyChanges per created profile, nothing more.
	if got := f.eng.applies.Load(); got != 3 {
		t.Errorf("engine calls = %d, want 3", got)
	}
}

func TestServicePowerOffWipesRules(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.profiles.Set(testServiceProfile("a")); err != nil {
		t.Fatalf("failed to store profile: %v", err)
	}
	f.waitForRules(t, 1)

	if err := f.settings.SetPower(false); err != nil {
		t.Fatalf("failed to set power: %v", err)
	}
	f.waitForRules(t, 0)

	view, err := f.settings.LastSyncedView()
	if err != nil {
		t.Fatalf("failed to read synced view: %v", err)
	}
	if view != nil {
		t.Errorf("synced view not cleared: %v", view)
	}

	// Power back on restores everything.
	if err := f.settings.SetPower(true); err != nil {
		t.Fatalf("failed to set power: %v", err)
	}
	f.waitForRules(t, 1)
}

func TestServiceDeleteRemovesRule(t *testing.T) {
	f := newServiceFixture(t)

	p := testServiceProfile("a")
	if err := f.profiles.Set(p); err != nil {
		t.Fatalf("failed to store profile: %v", err)
	}
	f.waitForRules(t, 1)

	if err := f.profiles.Delete(p.ID); err != nil {
		t.Fatalf("failed to delete profile: %v", err)
	}
	f.waitForRules(t, 0)
}

func TestServiceReinitializeRebuilds(t *testing.T) {
	f := newServiceFixture(t)

	if err := f.profiles.Set(testServiceProfile("a")); err != nil {
		t.Fatalf("failed to store profile: %v", err)
	}
	f.waitForRules(t, 1)

	// Yank the rule out from under the daemon, as an engine restart
	// would. The synced view still matches the store, so only a full
	// reinitialize notices.
	rules, err := f.eng.ListRules(context.Background())
	if err != nil {
		t.Fatalf("failed to list rules: %v", err)
	}
	if err := f.eng.MemoryEngine.ApplyChanges(context.Background(),
		engine.Changes{RemoveRuleIDs: []int{rules[0].ID}}); err != nil {
		t.Fatalf("failed to drop rule: %v", err)
	}

	f.svc.Reinitialize()
	f.waitForRules(t, 1)
}

func TestServiceDisabledProfileSyncsNothing(t *testing.T) {
	f := newServiceFixture(t)

	p := testServiceProfile("a")
	p.Enabled = false
	if err := f.profiles.Set(p); err != nil {
		t.Fatalf("failed to store profile: %v", err)
	}

	// Give the loop time to run a pass; the disabled profile must not
	// produce a rule.
	time.Sleep(100 * time.Millisecond)
	if rules, _ := f.eng.ListRules(context.Background()); len(rules) != 0 {
		t.Errorf("engine holds %d rules, want 0", len(rules))
	}
}
