package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// MemoryEngine is an in-process Engine with per-rule validation. It serves
// as the reference implementation for local deployments and tests.
//
// ApplyChanges validates the whole change set before committing anything, so
// a call either applies fully or not at all. Setting PartialApply simulates
// an engine without cross-operation atomicity: removals commit even when a
// subsequent add is rejected, which is the failure mode the synchronizer's
// dangling-rule recovery exists for.
type MemoryEngine struct {
	mu           sync.Mutex
	rules        map[int]Rule
	PartialApply bool

	// injectErr, when set, fails the next ApplyChanges call.
	injectErr error
}

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{rules: make(map[int]Rule)}
}

// FailNext makes the next ApplyChanges call fail with err, before any state
// change. Test hook.
func (m *MemoryEngine) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.injectErr = err
}

// ListRules returns all registered rules ordered by id.
func (m *MemoryEngine) ListRules(ctx context.Context) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ApplyChanges removes then adds rules. Removals of ids the engine does not
// hold are ignored.
func (m *MemoryEngine) ApplyChanges(ctx context.Context, changes Changes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.injectErr != nil {
		err := m.injectErr
		m.injectErr = nil
		return err
	}

	if m.PartialApply {
		// Removals land first and stick even if an add is rejected.
		for _, id := range changes.RemoveRuleIDs {
			delete(m.rules, id)
		}
		for _, r := range changes.AddRules {
			if err := m.validateAdd(r, changes.RemoveRuleIDs); err != nil {
				return err
			}
			m.rules[r.ID] = r
		}
		return nil
	}

	// Validate everything before touching state.
	for _, r := range changes.AddRules {
		if err := m.validateAdd(r, changes.RemoveRuleIDs); err != nil {
			return err
		}
	}

	for _, id := range changes.RemoveRuleIDs {
		delete(m.rules, id)
	}
	for _, r := range changes.AddRules {
		m.rules[r.ID] = r
	}
	return nil
}

// validateAdd checks a rule to be added. removed lists ids being removed in
// the same call; an add may reuse one of those.
func (m *MemoryEngine) validateAdd(r Rule, removed []int) error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: rule id must be positive, got %d", ErrInvalidRule, r.ID)
	}
	if _, taken := m.rules[r.ID]; taken {
		reusesRemoved := false
		for _, id := range removed {
			if id == r.ID {
				reusesRemoved = true
				break
			}
		}
		if !reusesRemoved {
			return fmt.Errorf("%w: id %d", ErrDuplicateRuleID, r.ID)
		}
	}
	if r.Priority <= 0 {
		return fmt.Errorf("%w: rule %d: priority must be positive", ErrInvalidRule, r.ID)
	}
	if r.Action.Type != ActionTypeModifyHeaders {
		return fmt.Errorf("%w: rule %d: unsupported action type %q", ErrInvalidRule, r.ID, r.Action.Type)
	}
	if r.Action.IsEmpty() {
		return fmt.Errorf("%w: rule %d: action modifies no headers", ErrInvalidRule, r.ID)
	}
	if r.Condition.URLFilter != "" && r.Condition.RegexFilter != "" {
		return fmt.Errorf("%w: rule %d: urlFilter and regexFilter are mutually exclusive", ErrInvalidRule, r.ID)
	}
	if r.Condition.RegexFilter != "" {
		if _, err := regexp.Compile(r.Condition.RegexFilter); err != nil {
			return fmt.Errorf("%w: rule %d: regexFilter: %v", ErrInvalidRule, r.ID, err)
		}
	}
	for _, h := range append(append([]ModifyHeaderInfo{}, r.Action.RequestHeaders...), r.Action.ResponseHeaders...) {
		if err := validateHeaderInfo(h); err != nil {
			return fmt.Errorf("%w: rule %d: %v", ErrInvalidRule, r.ID, err)
		}
	}
	return nil
}

func validateHeaderInfo(h ModifyHeaderInfo) error {
	if h.Header == "" {
		return fmt.Errorf("header name is empty")
	}
	if strings.ContainsAny(h.Header, " \t\r\n:") {
		return fmt.Errorf("invalid header name %q", h.Header)
	}
	switch h.Operation {
	case HeaderRemove:
		if h.Value != "" {
			return fmt.Errorf("remove of %q carries a value", h.Header)
		}
	case HeaderSet, HeaderAppend:
		if h.Value == "" {
			return fmt.Errorf("%s of %q has no value", h.Operation, h.Header)
		}
	default:
		return fmt.Errorf("unknown operation %q", h.Operation)
	}
	return nil
}
