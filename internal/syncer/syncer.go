package syncer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/clock"
	"grimm.is/headmod/internal/compile"
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/events"
	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/metrics"
	"grimm.is/headmod/internal/profile"
	"grimm.is/headmod/internal/state"
)

// Orchestrator applies a computed profile diff to the rule engine and
// records the outcome. All mutations of the id map and error map flow
// through here; callers serialize invocations (see Service).
type Orchestrator struct {
	engine     engine.Engine
	ruleIDs    *state.RuleIDBucket
	ruleErrors *state.RuleErrorBucket
	hub        *events.Hub
	messenger  Messenger
	logger     *logging.Logger
	clock      clock.Clock
	opts       compile.Options
}

// NewOrchestrator wires an orchestrator. A nil messenger defaults to
// NopMessenger; a nil clock to the real one.
func NewOrchestrator(
	eng engine.Engine,
	ruleIDs *state.RuleIDBucket,
	ruleErrors *state.RuleErrorBucket,
	hub *events.Hub,
	messenger Messenger,
	logger *logging.Logger,
	clk clock.Clock,
	opts compile.Options,
) *Orchestrator {
	if messenger == nil {
		messenger = NopMessenger{}
	}
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Orchestrator{
		engine:     eng,
		ruleIDs:    ruleIDs,
		ruleErrors: ruleErrors,
		hub:        hub,
		messenger:  messenger,
		logger:     logger.WithComponent("syncer"),
		clock:      clk,
		opts:       opts,
	}
}

// Result is the per-pass outcome: the deltas applied to the id and error
// maps, plus the rule count after the pass.
type Result struct {
	IDUpserts  map[uuid.UUID]int
	IDDeletes  []uuid.UUID
	ErrUpserts map[uuid.UUID]string
	ErrDeletes []uuid.UUID
	Registered int
}

func newResult() *Result {
	return &Result{
		IDUpserts:  make(map[uuid.UUID]int),
		ErrUpserts: make(map[uuid.UUID]string),
	}
}

// Failed reports how many profiles failed in this pass.
func (r *Result) Failed() int { return len(r.ErrUpserts) }

// UpdateRules reconciles one profile diff against the engine.
//
// Deletions run first so their engine ids are free for reuse by the upsert
// pass. A failure on one profile never blocks the others; per-profile
// failures land in the error map, and only persistence-level failures
// propagate out as an error.
func (o *Orchestrator) UpdateRules(ctx context.Context, changes profile.Changes) (*Result, error) {
	start := o.clock.Now()
	res := newResult()

	metrics.Get().RecordDiff(len(changes.Created), len(changes.Modified), len(changes.Deleted))

	// Delete pass.
	for _, core := range changes.Deleted {
		if err := o.deleteProfile(ctx, core, res); err != nil {
			return nil, err
		}
	}

	// Upsert pass: created then modified, sequential per profile.
	upserts := append(append([]profile.Core{}, changes.Created...), changes.Modified...)
	for _, core := range upserts {
		if err := o.upsertProfile(ctx, core, res); err != nil {
			return nil, err
		}
	}

	if err := o.persist(res); err != nil {
		return nil, err
	}

	mapping, err := o.ruleIDs.All()
	if err != nil {
		return nil, fmt.Errorf("reading rule id map: %w", err)
	}
	res.Registered = len(mapping)
	metrics.Get().RegisteredRules.Set(float64(res.Registered))
	metrics.Get().RecordSyncPass(res.Failed(), o.clock.Since(start).Seconds())

	o.announce(ctx, res)
	return res, nil
}

// deleteProfile removes a deleted profile's engine rule, if it has one.
func (o *Orchestrator) deleteProfile(ctx context.Context, core profile.Core, res *Result) error {
	ruleID, err := o.ruleIDs.Get(core.ID)
	if err != nil {
		return fmt.Errorf("reading rule id for %s: %w", core.ID, err)
	}

	if ruleID == 0 {
		// Nothing registered; just clear any stale error.
		res.ErrDeletes = append(res.ErrDeletes, core.ID)
		return nil
	}

	err = o.engine.ApplyChanges(ctx, engine.Changes{RemoveRuleIDs: []int{ruleID}})
	if err != nil {
		// Mapping stays so the next pass retries the removal.
		o.recordFailure(core.ID, res, "remove", err)
		return nil
	}

	res.IDDeletes = append(res.IDDeletes, core.ID)
	res.ErrDeletes = append(res.ErrDeletes, core.ID)
	return nil
}

// upsertProfile compiles a created or modified profile and registers its
// rule, replacing any previously registered one in a single combined call.
func (o *Orchestrator) upsertProfile(ctx context.Context, core profile.Core, res *Result) error {
	prior, err := o.ruleIDs.Get(core.ID)
	if err != nil {
		return fmt.Errorf("reading rule id for %s: %w", core.ID, err)
	}

	act := compile.Action(core)
	if act.IsEmpty() {
		// Empty action: the profile compiles to no rule. An existing rule
		// becomes an implicit deletion; no error either way.
		if prior == 0 {
			res.ErrDeletes = append(res.ErrDeletes, core.ID)
			return nil
		}
		err := o.engine.ApplyChanges(ctx, engine.Changes{RemoveRuleIDs: []int{prior}})
		if err != nil {
			o.recordFailure(core.ID, res, "remove", err)
			return nil
		}
		res.IDDeletes = append(res.IDDeletes, core.ID)
		res.ErrDeletes = append(res.ErrDeletes, core.ID)
		return nil
	}

	newID, err := AllocateID(ctx, o.engine)
	if err != nil {
		o.recordFailure(core.ID, res, "allocate", err)
		return nil
	}

	rule := engine.Rule{
		ID:        newID,
		Priority:  core.EffectivePriority(),
		Condition: compile.Condition(core, o.opts),
		Action:    act,
	}

	call := engine.Changes{AddRules: []engine.Rule{rule}}
	if prior > 0 {
		call.RemoveRuleIDs = []int{prior}
	}

	if err := o.engine.ApplyChanges(ctx, call); err != nil {
		o.recoverPartialApply(ctx, core.ID, prior, newID, err, res)
		return nil
	}

	res.IDUpserts[core.ID] = newID
	res.ErrDeletes = append(res.ErrDeletes, core.ID)
	return nil
}

// recoverPartialApply sorts out engine state after a failed combined call.
// The engine may have applied neither half, only the removal, or only the
// add; only its own listing can say which.
func (o *Orchestrator) recoverPartialApply(ctx context.Context, profileID uuid.UUID, prior, newID int, applyErr error, res *Result) {
	o.recordFailure(profileID, res, "apply", applyErr)

	rules, err := o.engine.ListRules(ctx)
	if err != nil {
		o.logger.Warn("cannot inspect engine after failed apply",
			"profile", profileID, "error", err)
		return
	}
	present := make(map[int]bool, len(rules))
	for _, r := range rules {
		present[r.ID] = true
	}

	switch {
	case present[newID] && prior > 0 && present[prior]:
		// Add landed but the removal did not: the old rule is dangling.
		metrics.Get().DanglingRules.Inc()
		if err := o.engine.ApplyChanges(ctx, engine.Changes{RemoveRuleIDs: []int{prior}}); err != nil {
			o.logger.Error("follow-up removal of dangling rule failed",
				"profile", profileID, "rule_id", prior, "error", err)
			return
		}
		// Both halves are now in effect; the pass succeeded after all.
		delete(res.ErrUpserts, profileID)
		res.ErrDeletes = append(res.ErrDeletes, profileID)
		res.IDUpserts[profileID] = newID

	case present[newID]:
		// Add landed and the old rule is gone; effectively a success.
		delete(res.ErrUpserts, profileID)
		res.ErrDeletes = append(res.ErrDeletes, profileID)
		res.IDUpserts[profileID] = newID

	case prior > 0 && !present[prior]:
		// Removal committed but the add failed: the profile no longer has
		// a rule, so drop its mapping alongside the recorded error.
		res.IDDeletes = append(res.IDDeletes, profileID)
	}
	// Otherwise nothing changed in the engine; the recorded error stands
	// and the old mapping (if any) remains valid.
}

// recordFailure stores a per-profile failure and emits its event.
func (o *Orchestrator) recordFailure(profileID uuid.UUID, res *Result, op string, err error) {
	msg := err.Error()
	res.ErrUpserts[profileID] = msg
	metrics.Get().ProfileErrors.WithLabelValues(op).Inc()
	o.logger.Warn("profile sync failed", "profile", profileID, "op", op, "error", err)
}

// persist applies the pass's deltas to the persisted id and error maps.
func (o *Orchestrator) persist(res *Result) error {
	for pid, ruleID := range res.IDUpserts {
		if err := o.ruleIDs.Set(pid, ruleID); err != nil {
			return fmt.Errorf("persisting rule id for %s: %w", pid, err)
		}
	}
	for _, pid := range res.IDDeletes {
		if err := o.ruleIDs.Delete(pid); err != nil {
			return fmt.Errorf("deleting rule id for %s: %w", pid, err)
		}
	}
	for _, pid := range res.ErrDeletes {
		if _, failed := res.ErrUpserts[pid]; failed {
			continue
		}
		if err := o.ruleErrors.Clear(pid); err != nil {
			return fmt.Errorf("clearing error for %s: %w", pid, err)
		}
	}
	for pid, msg := range res.ErrUpserts {
		rec := state.RuleError{ProfileID: pid, Message: msg, At: o.clock.Now()}
		if err := o.ruleErrors.Set(rec); err != nil {
			return fmt.Errorf("persisting error for %s: %w", pid, err)
		}
	}
	return nil
}

// announce publishes hub events and notifies observer sessions.
func (o *Orchestrator) announce(ctx context.Context, res *Result) {
	o.hub.EmitRulesSynced(res.Registered, len(res.IDUpserts), len(res.IDDeletes), res.Failed())
	for pid, msg := range res.ErrUpserts {
		o.hub.EmitRulesError(pid, msg)
	}

	if len(res.IDUpserts) > 0 || len(res.IDDeletes) > 0 {
		notify(o.logger, "rule_ids", o.messenger.NotifyRuleIDs(ctx, res.IDUpserts, res.IDDeletes))
	}
	if len(res.ErrUpserts) > 0 || len(res.ErrDeletes) > 0 {
		notify(o.logger, "rule_errors", o.messenger.NotifyRuleErrors(ctx, res.ErrUpserts, res.ErrDeletes))
	}
}

// UnregisterAll removes every registered rule from the engine and clears
// the id map. Used on power-off and as the first half of a reinitialize.
func (o *Orchestrator) UnregisterAll(ctx context.Context) error {
	rules, err := o.engine.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("listing rules: %w", err)
	}

	if len(rules) > 0 {
		ids := make([]int, len(rules))
		for i, r := range rules {
			ids[i] = r.ID
		}
		if err := o.engine.ApplyChanges(ctx, engine.Changes{RemoveRuleIDs: ids}); err != nil {
			return fmt.Errorf("removing all rules: %w", err)
		}
	}

	if err := o.ruleIDs.Clear(); err != nil {
		return fmt.Errorf("clearing rule id map: %w", err)
	}

	metrics.Get().RegisteredRules.Set(0)
	o.hub.EmitRulesSynced(0, 0, len(rules), 0)
	notify(o.logger, "unregister_all", o.messenger.NotifyUnregisterAll(ctx))
	return nil
}
