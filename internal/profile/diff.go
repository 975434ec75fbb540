package profile

import "github.com/google/uuid"

// Changes is the three-way reconciliation between two successive profile-set
// snapshots. Buckets hold core projections in snapshot order. Downstream
// processing must fully handle Deleted (freeing engine ids) before Created
// and Modified, so freed ids are reusable within the same pass.
type Changes struct {
	Created  []Core
	Modified []Core
	Deleted  []Core
}

// Empty reports whether no bucket has entries.
func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Diff computes created/modified/deleted profile sets between two snapshots.
// Profiles are matched by id. Enable-flag transitions translate to
// created/deleted rather than modified: a rule either exists in the engine
// or it does not. Profiles disabled in both snapshots never appear in any
// bucket, no matter how much their contents changed.
func Diff(old, new []Profile) Changes {
	oldByID := make(map[uuid.UUID]Core, len(old))
	for i := range old {
		oldByID[old[i].ID] = CoreOf(&old[i])
	}
	newIDs := make(map[uuid.UUID]bool, len(new))
	for i := range new {
		newIDs[new[i].ID] = true
	}

	var changes Changes

	// Present in old, absent in new: deleted if it was enabled.
	for i := range old {
		if newIDs[old[i].ID] {
			continue
		}
		if old[i].Enabled {
			changes.Deleted = append(changes.Deleted, CoreOf(&old[i]))
		}
	}

	for i := range new {
		newCore := CoreOf(&new[i])
		oldCore, existed := oldByID[new[i].ID]

		switch {
		case !existed:
			if newCore.Enabled {
				changes.Created = append(changes.Created, newCore)
			}
		case oldCore.Enabled && !newCore.Enabled:
			changes.Deleted = append(changes.Deleted, newCore)
		case !oldCore.Enabled && newCore.Enabled:
			changes.Created = append(changes.Created, newCore)
		case oldCore.Enabled && newCore.Enabled:
			if !oldCore.Equal(newCore) {
				changes.Modified = append(changes.Modified, newCore)
			}
		default:
			// Disabled in both: invisible, regardless of internal changes.
		}
	}

	return changes
}
