// Package syncer reconciles the persisted profile set with the external
// rule engine: it diffs profile snapshots, compiles changed profiles into
// rules, allocates engine rule ids, and propagates per-profile results to
// observers.
package syncer

import (
	"context"
	"fmt"

	"grimm.is/headmod/internal/engine"
)

// AllocateID returns the smallest positive rule id not currently registered
// in the engine. The engine is queried on every allocation: the daemon can
// be restarted at any time, so no in-memory counter or persisted mapping is
// ever trusted over the engine's own listing.
func AllocateID(ctx context.Context, eng engine.Engine) (int, error) {
	rules, err := eng.ListRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing rules for id allocation: %w", err)
	}
	used := make(map[int]bool, len(rules))
	for _, r := range rules {
		used[r.ID] = true
	}
	// First-fit lowest. Rule counts are bounded by the profile count, so a
	// linear scan is fine, and low ids stay stable and readable.
	for id := 1; ; id++ {
		if !used[id] {
			return id, nil
		}
	}
}
