package engine

import (
	"context"
	"errors"
	"testing"
)

func testRule(id int) Rule {
	return Rule{
		ID:       id,
		Priority: 1,
		Action: Action{
			Type: ActionTypeModifyHeaders,
			RequestHeaders: []ModifyHeaderInfo{
				{Header: "x-test", Operation: HeaderSet, Value: "v"},
			},
		},
	}
}

func TestMemoryEngine_AddAndList(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(2), testRule(1)}})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	rules, err := m.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != 1 || rules[1].ID != 2 {
		t.Errorf("rules not ordered by id: %v, %v", rules[0].ID, rules[1].ID)
	}
}

func TestMemoryEngine_RemoveUnknownIgnored(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	if err := m.ApplyChanges(ctx, Changes{RemoveRuleIDs: []int{42}}); err != nil {
		t.Fatalf("removal of unknown id should be ignored, got %v", err)
	}
}

func TestMemoryEngine_DuplicateID(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	if err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(1)}}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(1)}})
	if !errors.Is(err, ErrDuplicateRuleID) {
		t.Errorf("expected ErrDuplicateRuleID, got %v", err)
	}
}

func TestMemoryEngine_ReuseRemovedIDInSameCall(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	if err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(3)}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Combined remove+add reusing the same id must succeed.
	err := m.ApplyChanges(ctx, Changes{RemoveRuleIDs: []int{3}, AddRules: []Rule{testRule(3)}})
	if err != nil {
		t.Errorf("combined remove+add with same id should succeed, got %v", err)
	}
}

func TestMemoryEngine_AtomicOnValidationFailure(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	if err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(1)}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	bad := testRule(2)
	bad.Action.RequestHeaders = nil

	err := m.ApplyChanges(ctx, Changes{RemoveRuleIDs: []int{1}, AddRules: []Rule{bad}})
	if err == nil {
		t.Fatal("expected validation failure")
	}

	// Rule 1 must survive: nothing commits on a failed call.
	rules, _ := m.ListRules(ctx)
	if len(rules) != 1 || rules[0].ID != 1 {
		t.Errorf("expected rule 1 to survive failed call, got %v", rules)
	}
}

func TestMemoryEngine_PartialApplyLeavesRemovalCommitted(t *testing.T) {
	m := NewMemoryEngine()
	m.PartialApply = true
	ctx := context.Background()

	if err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(1)}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	bad := testRule(2)
	bad.Action.RequestHeaders = nil

	err := m.ApplyChanges(ctx, Changes{RemoveRuleIDs: []int{1}, AddRules: []Rule{bad}})
	if err == nil {
		t.Fatal("expected validation failure")
	}

	// In partial mode the removal sticks even though the add failed.
	rules, _ := m.ListRules(ctx)
	if len(rules) != 0 {
		t.Errorf("expected removal to have committed, got %v", rules)
	}
}

func TestMemoryEngine_RejectsBadRegex(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	r := testRule(1)
	r.Condition.RegexFilter = "("
	err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{r}})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule for bad regex, got %v", err)
	}
}

func TestMemoryEngine_RejectsConflictingFilters(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	r := testRule(1)
	r.Condition.URLFilter = "example"
	r.Condition.RegexFilter = "ex.*"
	err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{r}})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule for conflicting filters, got %v", err)
	}
}

func TestMemoryEngine_FailNext(t *testing.T) {
	m := NewMemoryEngine()
	ctx := context.Background()

	injected := errors.New("engine offline")
	m.FailNext(injected)

	if err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(1)}}); !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	// The injected error is one-shot.
	if err := m.ApplyChanges(ctx, Changes{AddRules: []Rule{testRule(1)}}); err != nil {
		t.Fatalf("second call should succeed, got %v", err)
	}
}
