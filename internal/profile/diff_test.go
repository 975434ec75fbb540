package profile

import (
	"testing"

	"github.com/google/uuid"
)

func testProfile(name string, enabled bool) *Profile {
	p := New(name)
	p.Enabled = enabled
	p.RequestHeaderModGroups = []ModGroup{{
		ID:   uuid.New(),
		Kind: GroupCheckbox,
		Items: []HeaderMod{{
			ID:        uuid.New(),
			Enabled:   true,
			Name:      "X-" + name,
			Operation: OpSet,
			Value:     "v",
		}},
	}}
	return p
}

func ids(cores []Core) []uuid.UUID {
	out := make([]uuid.UUID, len(cores))
	for i, c := range cores {
		out[i] = c.ID
	}
	return out
}

func wantBuckets(t *testing.T, got Changes, created, modified, deleted int) {
	t.Helper()
	if len(got.Created) != created || len(got.Modified) != modified || len(got.Deleted) != deleted {
		t.Errorf("buckets = created:%d modified:%d deleted:%d, want %d/%d/%d",
			len(got.Created), len(got.Modified), len(got.Deleted), created, modified, deleted)
	}
}

func TestDiffIdentical(t *testing.T) {
	a := testProfile("a", true)
	b := testProfile("b", false)
	snap := []Profile{*a, *b}

	got := Diff(snap, snap)
	if !got.Empty() {
		t.Errorf("diff of identical snapshots = %+v, want empty", got)
	}
}

func TestDiffFromEmpty(t *testing.T) {
	on := testProfile("on", true)
	off := testProfile("off", false)

	got := Diff(nil, []Profile{*on, *off})
	wantBuckets(t, got, 1, 0, 0)
	if len(got.Created) == 1 && got.Created[0].ID != on.ID {
		t.Errorf("created = %v, want %v", ids(got.Created), on.ID)
	}
}

func TestDiffToEmpty(t *testing.T) {
	on := testProfile("on", true)
	off := testProfile("off", false)

	got := Diff([]Profile{*on, *off}, nil)
	wantBuckets(t, got, 0, 0, 1)
	if len(got.Deleted) == 1 && got.Deleted[0].ID != on.ID {
		t.Errorf("deleted = %v, want %v", ids(got.Deleted), on.ID)
	}
}

func TestDiffEnableTransitions(t *testing.T) {
	p := testProfile("p", true)

	disabled := *p
	disabled.Enabled = false

	// Enabled to disabled is a delete, not a modify.
	got := Diff([]Profile{*p}, []Profile{disabled})
	wantBuckets(t, got, 0, 0, 1)

	// Disabled to enabled is a create.
	got = Diff([]Profile{disabled}, []Profile{*p})
	wantBuckets(t, got, 1, 0, 0)
}

func TestDiffDisabledInBothInvisible(t *testing.T) {
	p := testProfile("p", false)

	changed := p.Clone()
	changed.RequestHeaderModGroups[0].Items[0].Value = "completely different"
	changed.Filters.URLFilter = []FilterEntry{{ID: uuid.New(), Enabled: true, Value: "||x"}}

	got := Diff([]Profile{*p}, []Profile{*changed})
	if !got.Empty() {
		t.Errorf("disabled-in-both profile produced diff %+v", got)
	}
}

func TestDiffCosmeticChangesIgnored(t *testing.T) {
	p := testProfile("p", true)

	renamed := p.Clone()
	renamed.Name = "renamed"
	renamed.Emoji = "🦊"
	renamed.Comments = "new remarks"
	renamed.Position = 42

	got := Diff([]Profile{*p}, []Profile{*renamed})
	if !got.Empty() {
		t.Errorf("cosmetic-only change produced diff %+v", got)
	}
}

func TestDiffWatchedFieldChanges(t *testing.T) {
	base := testProfile("p", true)

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"header mod value", func(p *Profile) {
			p.RequestHeaderModGroups[0].Items[0].Value = "other"
		}},
		{"priority", func(p *Profile) {
			p.Priority = 9
		}},
		{"filters", func(p *Profile) {
			p.Filters.URLFilter = []FilterEntry{{ID: uuid.New(), Enabled: true, Value: "||x"}}
		}},
		{"cookie groups", func(p *Profile) {
			p.SyncCookieGroups = []CookieGroup{{
				ID:    uuid.New(),
				Kind:  GroupCheckbox,
				Items: []SyncCookie{{ID: uuid.New(), Enabled: true, Name: "s", Value: "v"}},
			}}
		}},
		{"response mods", func(p *Profile) {
			p.ResponseHeaderModGroups = []ModGroup{{
				ID:   uuid.New(),
				Kind: GroupCheckbox,
				Items: []HeaderMod{{
					ID: uuid.New(), Enabled: true, Name: "Server", Operation: OpRemove,
				}},
			}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base.Clone()
			tt.mutate(changed)
			got := Diff([]Profile{*base}, []Profile{*changed})
			wantBuckets(t, got, 0, 1, 0)
		})
	}
}

func TestDiffMixed(t *testing.T) {
	stays := testProfile("stays", true)
	goes := testProfile("goes", true)
	edited := testProfile("edited", true)
	fresh := testProfile("fresh", true)

	editedV2 := edited.Clone()
	editedV2.Priority = 5

	old := []Profile{*stays, *goes, *edited}
	now := []Profile{*stays, *editedV2, *fresh}

	got := Diff(old, now)
	wantBuckets(t, got, 1, 1, 1)
	if len(got.Created) == 1 && got.Created[0].ID != fresh.ID {
		t.Errorf("created = %v, want fresh", ids(got.Created))
	}
	if len(got.Modified) == 1 && got.Modified[0].ID != edited.ID {
		t.Errorf("modified = %v, want edited", ids(got.Modified))
	}
	if len(got.Deleted) == 1 && got.Deleted[0].ID != goes.ID {
		t.Errorf("deleted = %v, want goes", ids(got.Deleted))
	}
}

func TestCoreOfDropsCosmetics(t *testing.T) {
	a := testProfile("a", true)
	b := a.Clone()
	b.Name = "b"
	b.Emoji = "🎭"

	if !CoreOf(a).Equal(CoreOf(b)) {
		t.Error("cores differ on cosmetic fields")
	}
}
