package archive

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/profile"
)

func sampleProfile() profile.Profile {
	return profile.Profile{
		ID:      uuid.New(),
		Name:    "Staging auth",
		Emoji:   "🔑",
		Enabled: true,
		RequestHeaderModGroups: []profile.ModGroup{{
			ID:   uuid.New(),
			Kind: profile.GroupCheckbox,
			Items: []profile.HeaderMod{{
				ID:        uuid.New(),
				Enabled:   true,
				Name:      "Authorization",
				Operation: profile.OpSet,
				Value:     "Bearer token",
			}},
		}},
		SyncCookieGroups: []profile.CookieGroup{{
			ID:   uuid.New(),
			Kind: profile.GroupCheckbox,
			Items: []profile.SyncCookie{{
				ID: uuid.New(), Enabled: true, Domain: "staging.example.com",
				Name: "session", Value: "abc",
			}},
		}},
		Filters: profile.Filters{
			URLFilter: []profile.FilterEntry{{ID: uuid.New(), Enabled: true, Value: "||example.com"}},
			RequestDomains: &profile.DomainList{
				Kind:  profile.GroupCheckbox,
				Items: []profile.DomainItem{{ID: uuid.New(), Enabled: true, Value: "example.com"}},
			},
			CaseSensitive: &profile.BoolToggle{Enabled: true, Value: false},
			ResourceTypes: []profile.TypeSelection{{
				ID: uuid.New(), Enabled: true, Value: []string{"xmlhttprequest"},
			}},
			TabID: &profile.IntToggle{Enabled: true, Value: 42},
		},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	orig := sampleProfile()

	data, err := Export([]profile.Profile{orig}, "2026-09-01T00:00:00Z")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	got, err := Import(data)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("imported %d profiles, want 1", len(got))
	}

	p := got[0]
	if p.ID != orig.ID || p.Name != orig.Name || p.Emoji != orig.Emoji {
		t.Errorf("identity fields lost: %+v", p)
	}
	if !profile.CoreOf(&p).Equal(profile.CoreOf(&orig)) {
		t.Errorf("compiled-relevant fields changed through round trip")
	}
	if p.Filters.TabID == nil || p.Filters.TabID.Value != 42 {
		t.Errorf("tabId lost: %+v", p.Filters.TabID)
	}
}

func TestImportGeneratesMissingIDs(t *testing.T) {
	doc := `
version: 1
profiles:
  - name: Minimal
    enabled: true
`
	got, err := Import([]byte(doc))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if got[0].ID == uuid.Nil {
		t.Error("missing id was not generated")
	}
}

func TestImportRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"wrong version",
			"version: 9\nprofiles: []\n",
			"unsupported archive version",
		},
		{
			"missing name",
			"version: 1\nprofiles:\n  - enabled: true\n",
			"missing name",
		},
		{
			"bad id",
			"version: 1\nprofiles:\n  - id: not-a-uuid\n    name: X\n",
			"invalid id",
		},
		{
			"unknown operation",
			`version: 1
profiles:
  - name: X
    requestHeaderModGroups:
      - type: checkbox
        items:
          - name: H
            operation: replace
`,
			"unknown operation",
		},
		{
			"unknown field",
			"version: 1\nbogus: true\nprofiles: []\n",
			"parsing archive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestImportRejectsDuplicateIDs(t *testing.T) {
	id := uuid.New().String()
	doc := "version: 1\nprofiles:\n  - id: " + id + "\n    name: A\n  - id: " + id + "\n    name: B\n"
	if _, err := Import([]byte(doc)); err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Errorf("duplicate id not rejected: %v", err)
	}
}
