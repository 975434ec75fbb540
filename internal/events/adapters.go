// Event adapters wire the persistence layer's change stream to the Hub.
// This gives UI sessions and the reconciler one unified event stream rather
// than each consumer watching raw store changes.
package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/state"
)

// StoreAdapter translates raw store changes into typed hub events.
type StoreAdapter struct {
	hub   *Hub
	store state.Store
}

// NewStoreAdapter creates a store adapter.
func NewStoreAdapter(hub *Hub, store state.Store) *StoreAdapter {
	return &StoreAdapter{hub: hub, store: store}
}

// Run consumes the store's change stream until the context is cancelled.
// Call this in its own goroutine.
func (a *StoreAdapter) Run(ctx context.Context) {
	ch := a.store.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			a.handle(change)
		}
	}
}

// handle maps one store change to zero or one hub events. Bookkeeping
// buckets (rule ids, rule errors) are written by the reconciler itself and
// deliberately do not echo back into the stream it listens on.
func (a *StoreAdapter) handle(c state.Change) {
	switch c.Bucket {
	case state.BucketProfiles:
		id, err := uuid.Parse(c.Key)
		if err != nil {
			return
		}
		a.hub.EmitProfilesChanged("store", id, c.Type == state.ChangeDelete)

	case state.BucketSettings:
		switch c.Key {
		case state.KeyPower:
			var on bool
			if err := json.Unmarshal(c.Value, &on); err != nil {
				return
			}
			a.hub.EmitPowerChanged("store", on)
		case state.KeySelected:
			var raw string
			if err := json.Unmarshal(c.Value, &raw); err != nil {
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return
			}
			a.hub.Publish(Event{
				Type:   EventSelectionChanged,
				Source: "store",
				Data:   SelectionChangedData{ProfileID: id},
			})
		}
	}
}
