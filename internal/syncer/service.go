package syncer

import (
	"context"
	"fmt"
	"time"

	"grimm.is/headmod/internal/events"
	"grimm.is/headmod/internal/logging"
	"grimm.is/headmod/internal/profile"
	"grimm.is/headmod/internal/state"
)

// DefaultCooldown is how long the service waits after a state change before
// reconciling, coalescing bursts of edits into one pass.
const DefaultCooldown = 500 * time.Millisecond

// Service drives the orchestrator from the event stream. It is the single
// writer: every reconciliation pass runs on its own loop goroutine, so
// passes never interleave, and a state change arriving mid-pass coalesces
// into one follow-up pass.
type Service struct {
	orch     *Orchestrator
	profiles *state.ProfileBucket
	settings *state.SettingsBucket
	hub      *events.Hub
	logger   *logging.Logger
	cooldown time.Duration

	reinitCh chan struct{}
}

// NewService wires the reconciliation service.
func NewService(
	orch *Orchestrator,
	profiles *state.ProfileBucket,
	settings *state.SettingsBucket,
	hub *events.Hub,
	logger *logging.Logger,
	cooldown time.Duration,
) *Service {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Service{
		orch:     orch,
		profiles: profiles,
		settings: settings,
		hub:      hub,
		logger:   logger.WithComponent("syncer"),
		cooldown: cooldown,
		reinitCh: make(chan struct{}, 1),
	}
}

// Reinitialize requests a full from-scratch re-sync: wipe every engine
// rule, forget the synced view, rebuild from the current profile set.
// Safe to call from any goroutine; requests collapse into one.
func (s *Service) Reinitialize() {
	select {
	case s.reinitCh <- struct{}{}:
	default:
	}
}

// Run processes change events until the context is cancelled. The first
// action is always a full reinitialize: the engine may have restarted and
// dropped its rules while the daemon was down, so the persisted mapping is
// not trusted at startup.
func (s *Service) Run(ctx context.Context) {
	changes := s.hub.Subscribe(64, events.EventProfilesChanged, events.EventPowerChanged)
	defer s.hub.Unsubscribe(changes)

	s.reinitialize(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-changes:
			// Single-slot coalescing: an armed timer absorbs the burst.
			if timerC == nil {
				timer = time.NewTimer(s.cooldown)
				timerC = timer.C
			}

		case <-s.reinitCh:
			if timer != nil {
				timer.Stop()
				timerC = nil
			}
			s.reinitialize(ctx)

		case <-timerC:
			timerC = nil
			if err := s.syncOnce(ctx); err != nil {
				s.logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

// syncOnce runs one reconciliation pass against the current stored state.
func (s *Service) syncOnce(ctx context.Context) error {
	on, err := s.settings.Power()
	if err != nil {
		return fmt.Errorf("reading power state: %w", err)
	}

	if !on {
		if err := s.orch.UnregisterAll(ctx); err != nil {
			return err
		}
		return s.settings.SetLastSyncedView(nil)
	}

	current, err := s.profiles.List()
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}
	previous, err := s.settings.LastSyncedView()
	if err != nil {
		return fmt.Errorf("reading synced view: %w", err)
	}

	diff := profile.Diff(previous, current)
	if diff.Empty() {
		return nil
	}

	if _, err := s.orch.UpdateRules(ctx, diff); err != nil {
		return err
	}

	// The view advances even when individual profiles failed: failures
	// live in the error map and are retried on the next natural change
	// or an explicit reinitialize, not by replaying the same diff.
	return s.settings.SetLastSyncedView(current)
}

// reinitialize wipes the engine and rebuilds every rule from scratch.
func (s *Service) reinitialize(ctx context.Context) {
	s.logger.Info("reinitializing all rules")

	if err := s.orch.UnregisterAll(ctx); err != nil {
		s.logger.Error("failed to unregister rules", "error", err)
		return
	}
	if err := s.settings.SetLastSyncedView(nil); err != nil {
		s.logger.Error("failed to reset synced view", "error", err)
		return
	}
	if err := s.syncOnce(ctx); err != nil {
		s.logger.Error("reinitialization sync failed", "error", err)
	}
}
