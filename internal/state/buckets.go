package state

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/profile"
)

// Standard bucket names
const (
	BucketProfiles   = "profiles"    // Profile documents keyed by profile id
	BucketSettings   = "settings"    // Daemon-wide toggles and selections
	BucketRuleIDs    = "rule_ids"    // Profile id -> engine rule id mapping
	BucketRuleErrors = "rule_errors" // Last sync failure per profile
)

// Settings keys. Exported so change-stream consumers can tell which
// setting a store notification refers to.
const (
	KeyPower          = "power"
	KeySelected       = "selected_profile"
	KeyLastSyncedView = "last_synced_view"
)

// ensureBucket creates a bucket unless it already exists.
func ensureBucket(store Store, name string) error {
	if err := store.CreateBucket(name); err != nil && !errors.Is(err, ErrBucketExists) {
		return err
	}
	return nil
}

// ProfileBucket provides typed access to stored profiles.
type ProfileBucket struct {
	store  Store
	bucket string
}

// NewProfileBucket creates the profile bucket accessor.
func NewProfileBucket(store Store) (*ProfileBucket, error) {
	if err := ensureBucket(store, BucketProfiles); err != nil {
		return nil, err
	}
	return &ProfileBucket{store: store, bucket: BucketProfiles}, nil
}

// Get retrieves a profile by id.
func (b *ProfileBucket) Get(id uuid.UUID) (*profile.Profile, error) {
	var p profile.Profile
	if err := b.store.GetJSON(b.bucket, id.String(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Set stores a profile. The profile is cloned first so later caller
// mutations cannot race the write.
func (b *ProfileBucket) Set(p *profile.Profile) error {
	return b.store.SetJSON(b.bucket, p.ID.String(), p.Clone())
}

// Delete removes a profile.
func (b *ProfileBucket) Delete(id uuid.UUID) error {
	return b.store.Delete(b.bucket, id.String())
}

// List returns all profiles ordered by position, then name for stability.
func (b *ProfileBucket) List() ([]profile.Profile, error) {
	data, err := b.store.List(b.bucket)
	if err != nil {
		return nil, err
	}

	profiles := make([]profile.Profile, 0, len(data))
	for _, raw := range data {
		var p profile.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			// A corrupt document must not take down the whole listing.
			continue
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Position != profiles[j].Position {
			return profiles[i].Position < profiles[j].Position
		}
		return profiles[i].Name < profiles[j].Name
	})
	return profiles, nil
}

// SettingsBucket provides typed access to daemon-wide settings.
type SettingsBucket struct {
	store  Store
	bucket string
}

// NewSettingsBucket creates the settings bucket accessor.
func NewSettingsBucket(store Store) (*SettingsBucket, error) {
	if err := ensureBucket(store, BucketSettings); err != nil {
		return nil, err
	}
	return &SettingsBucket{store: store, bucket: BucketSettings}, nil
}

// Power reports whether rule registration is globally enabled.
// A missing key defaults to on.
func (b *SettingsBucket) Power() (bool, error) {
	var on bool
	err := b.store.GetJSON(b.bucket, KeyPower, &on)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return on, nil
}

// SetPower persists the global power toggle.
func (b *SettingsBucket) SetPower(on bool) error {
	return b.store.SetJSON(b.bucket, KeyPower, on)
}

// SelectedProfile returns the profile the UI currently focuses, or
// uuid.Nil when none is selected.
func (b *SettingsBucket) SelectedProfile() (uuid.UUID, error) {
	var raw string
	err := b.store.GetJSON(b.bucket, KeySelected, &raw)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil
	}
	return id, nil
}

// SetSelectedProfile persists the UI focus.
func (b *SettingsBucket) SetSelectedProfile(id uuid.UUID) error {
	return b.store.SetJSON(b.bucket, KeySelected, id.String())
}

// LastSyncedView returns the profile snapshot of the most recent
// successful reconciliation. Changes observers that missed live
// notifications read this to catch up.
func (b *SettingsBucket) LastSyncedView() ([]profile.Profile, error) {
	var view []profile.Profile
	err := b.store.GetJSON(b.bucket, KeyLastSyncedView, &view)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SetLastSyncedView persists the post-reconciliation snapshot.
func (b *SettingsBucket) SetLastSyncedView(view []profile.Profile) error {
	return b.store.SetJSON(b.bucket, KeyLastSyncedView, view)
}

// RuleIDBucket maps stable profile identifiers to engine rule ids.
// The mapping is bookkeeping, never authority: the engine's own rule
// listing is consulted before any id is trusted or reused.
type RuleIDBucket struct {
	store  Store
	bucket string
}

// NewRuleIDBucket creates the rule-id bucket accessor.
func NewRuleIDBucket(store Store) (*RuleIDBucket, error) {
	if err := ensureBucket(store, BucketRuleIDs); err != nil {
		return nil, err
	}
	return &RuleIDBucket{store: store, bucket: BucketRuleIDs}, nil
}

// Get returns the engine rule id mapped to a profile, or 0 if unmapped.
func (b *RuleIDBucket) Get(profileID uuid.UUID) (int, error) {
	var id int
	err := b.store.GetJSON(b.bucket, profileID.String(), &id)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Set records a profile's engine rule id.
func (b *RuleIDBucket) Set(profileID uuid.UUID, ruleID int) error {
	return b.store.SetJSON(b.bucket, profileID.String(), ruleID)
}

// Delete removes a profile's mapping. Missing mappings are not an error.
func (b *RuleIDBucket) Delete(profileID uuid.UUID) error {
	err := b.store.Delete(b.bucket, profileID.String())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// All returns the full profile-to-rule-id mapping.
func (b *RuleIDBucket) All() (map[uuid.UUID]int, error) {
	data, err := b.store.List(b.bucket)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(data))
	for key, raw := range data {
		pid, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		var id int
		if err := json.Unmarshal(raw, &id); err != nil {
			continue
		}
		out[pid] = id
	}
	return out, nil
}

// Clear drops every mapping. Used when all rules are unregistered at once.
func (b *RuleIDBucket) Clear() error {
	keys, err := b.store.ListKeys(b.bucket)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := b.store.Delete(b.bucket, key); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// RuleError records why a profile's last reconciliation attempt failed.
type RuleError struct {
	ProfileID uuid.UUID `json:"profileId"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// RuleErrorBucket provides typed access to per-profile sync failures.
type RuleErrorBucket struct {
	store  Store
	bucket string
}

// NewRuleErrorBucket creates the rule-error bucket accessor.
func NewRuleErrorBucket(store Store) (*RuleErrorBucket, error) {
	if err := ensureBucket(store, BucketRuleErrors); err != nil {
		return nil, err
	}
	return &RuleErrorBucket{store: store, bucket: BucketRuleErrors}, nil
}

// Set records a failure for a profile. The record stays until the profile
// syncs successfully or is deleted or disabled; it never ages out on its
// own.
func (b *RuleErrorBucket) Set(rec RuleError) error {
	return b.store.SetJSON(b.bucket, rec.ProfileID.String(), rec)
}

// Clear removes a profile's failure record, if any.
func (b *RuleErrorBucket) Clear(profileID uuid.UUID) error {
	err := b.store.Delete(b.bucket, profileID.String())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// All returns every recorded failure.
func (b *RuleErrorBucket) All() ([]RuleError, error) {
	data, err := b.store.List(b.bucket)
	if err != nil {
		return nil, err
	}
	out := make([]RuleError, 0, len(data))
	for _, raw := range data {
		var rec RuleError
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}
