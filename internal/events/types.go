// Package events provides a unified pub/sub event bus for Headmod.
// Profile edits, power toggles and reconciliation results all flow through
// this hub on their way to connected UI sessions and metrics.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the category of event.
type EventType string

const (
	// Profile lifecycle events
	EventProfilesChanged  EventType = "profiles.changed"
	EventSelectionChanged EventType = "selection.changed"

	// Global toggle events
	EventPowerChanged EventType = "power.changed"

	// Reconciliation events
	EventRulesSynced EventType = "rules.synced"
	EventRulesError  EventType = "rules.error"
)

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"` // Component that emitted: "store", "syncer", "api"
	Data      interface{} `json:"data"`   // Type-specific payload
}

// ProfilesChangedData is the payload for EventProfilesChanged. It carries
// only the touched profile id; observers re-read the store for content.
type ProfilesChangedData struct {
	ProfileID uuid.UUID `json:"profileId"`
	Removed   bool      `json:"removed,omitempty"`
}

// PowerChangedData is the payload for EventPowerChanged.
type PowerChangedData struct {
	On bool `json:"on"`
}

// SelectionChangedData is the payload for EventSelectionChanged.
type SelectionChangedData struct {
	ProfileID uuid.UUID `json:"profileId"`
}

// RulesSyncedData is the payload for EventRulesSynced. Counts describe the
// reconciliation pass that just finished.
type RulesSyncedData struct {
	Registered int `json:"registered"` // Rules now live in the engine
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	Failed     int `json:"failed"`
}

// RulesErrorData is the payload for EventRulesError, one per failed profile.
type RulesErrorData struct {
	ProfileID uuid.UUID `json:"profileId"`
	Message   string    `json:"message"`
}
