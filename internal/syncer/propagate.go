package syncer

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/metrics"
)

// ErrNoReceiver reports that no observer session is currently connected.
// It is the expected state whenever no UI is open and is never logged as a
// failure; persisted state already carries the deltas for late joiners.
var ErrNoReceiver = errors.New("no receiving end")

// Messenger delivers reconciliation deltas to live observer sessions.
// Implementations return ErrNoReceiver when nobody is connected.
type Messenger interface {
	// NotifyRuleIDs announces changes to the profile-to-rule-id mapping.
	NotifyRuleIDs(ctx context.Context, upserts map[uuid.UUID]int, deletes []uuid.UUID) error

	// NotifyRuleErrors announces changes to the per-profile error map.
	NotifyRuleErrors(ctx context.Context, upserts map[uuid.UUID]string, deletes []uuid.UUID) error

	// NotifyUnregisterAll announces that every rule was just wiped.
	NotifyUnregisterAll(ctx context.Context) error
}

// NopMessenger is a Messenger with no transport. Used when the daemon runs
// headless; every send lands in the persisted-state fallback.
type NopMessenger struct{}

func (NopMessenger) NotifyRuleIDs(context.Context, map[uuid.UUID]int, []uuid.UUID) error {
	return ErrNoReceiver
}

func (NopMessenger) NotifyRuleErrors(context.Context, map[uuid.UUID]string, []uuid.UUID) error {
	return ErrNoReceiver
}

func (NopMessenger) NotifyUnregisterAll(context.Context) error {
	return ErrNoReceiver
}

// notify sends one notification and classifies the outcome. ErrNoReceiver
// is silent; anything else is logged as unexpected. Either way the caller
// has already persisted the same deltas, so delivery failure loses nothing.
func notify(logger *logging.Logger, kind string, err error) {
	reg := metrics.Get()
	switch {
	case err == nil:
		reg.NotifyDeliveries.WithLabelValues("delivered").Inc()
	case errors.Is(err, ErrNoReceiver):
		reg.NotifyDeliveries.WithLabelValues("no_receiver").Inc()
	default:
		reg.NotifyDeliveries.WithLabelValues("failed").Inc()
		logger.Warn("observer notification failed", "kind", kind, "error", err)
	}
}
