package engine

import (
	"context"
	"errors"
)

// Engine is the external rule-matching engine boundary. The engine owns the
// numeric rule-id namespace; callers must treat ListRules as the only source
// of truth for which ids are taken.
type Engine interface {
	// ListRules returns the engine's authoritative current rule set.
	ListRules(ctx context.Context) ([]Rule, error)

	// ApplyChanges removes and adds rules in one call. Removals of unknown
	// ids are ignored; adding a rule whose id is already registered is an
	// error.
	ApplyChanges(ctx context.Context, changes Changes) error
}

// Sentinel errors surfaced by engine implementations.
var (
	ErrDuplicateRuleID = errors.New("rule id already registered")
	ErrInvalidRule     = errors.New("invalid rule")
)
