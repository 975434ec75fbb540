package profile

import (
	"encoding/json"
	"reflect"

	"github.com/google/uuid"
)

// Core is the reduced projection of a Profile containing only the fields
// that affect compiled engine output. Cosmetic fields (name, emoji,
// comments, position) are deliberately absent so the diff engine ignores
// them.
type Core struct {
	ID                      uuid.UUID     `json:"id"`
	Enabled                 bool          `json:"enabled"`
	Priority                int           `json:"priority,omitempty"`
	RequestHeaderModGroups  []ModGroup    `json:"requestHeaderModGroups"`
	ResponseHeaderModGroups []ModGroup    `json:"responseHeaderModGroups"`
	SyncCookieGroups        []CookieGroup `json:"syncCookieGroups"`
	Filters                 Filters       `json:"filters"`
}

// CoreOf projects a Profile onto its compilation-relevant subset.
func CoreOf(p *Profile) Core {
	return Core{
		ID:                      p.ID,
		Enabled:                 p.Enabled,
		Priority:                p.Priority,
		RequestHeaderModGroups:  p.RequestHeaderModGroups,
		ResponseHeaderModGroups: p.ResponseHeaderModGroups,
		SyncCookieGroups:        p.SyncCookieGroups,
		Filters:                 p.Filters,
	}
}

// EffectivePriority returns the priority passed to the engine.
func (c *Core) EffectivePriority() int {
	if c.Priority > 0 {
		return c.Priority
	}
	return DefaultPriority
}

// Equal reports deep equality of the watched field subset.
func (c Core) Equal(other Core) bool {
	return reflect.DeepEqual(c, other)
}

// Clone returns a fully-materialized deep copy of the profile. State handed
// to the persistence layer must be a plain value with no live bindings
// attached; callers mutating profiles concurrently with persistence go
// through this.
func (p *Profile) Clone() *Profile {
	// Round-tripping through JSON severs every slice and pointer alias in
	// one place instead of tracking each nested field by hand.
	data, err := json.Marshal(p)
	if err != nil {
		// Profile contains only marshalable fields; this cannot fail.
		panic("profile: clone marshal: " + err.Error())
	}
	var out Profile
	if err := json.Unmarshal(data, &out); err != nil {
		panic("profile: clone unmarshal: " + err.Error())
	}
	return &out
}
