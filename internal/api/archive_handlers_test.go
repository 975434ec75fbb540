package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/profile"
)

func TestExportImportRoundTrip(t *testing.T) {
	s := testServer(t)

	p := profile.Profile{ID: uuid.New(), Name: "Exported", Enabled: true}
	if err := s.profiles.Set(&p); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}

	rr := doJSON(t, s, "GET", "/api/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	exported := rr.Body.Bytes()

	// Wipe, then import the archive back.
	if err := s.profiles.Delete(p.ID); err != nil {
		t.Fatalf("failed to delete profile: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/import", bytes.NewReader(exported))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}

	restored, err := s.profiles.Get(p.ID)
	if err != nil {
		t.Fatalf("profile not restored: %v", err)
	}
	if restored.Name != "Exported" {
		t.Errorf("restored name = %q", restored.Name)
	}
}

func TestImportReplacesExistingProfiles(t *testing.T) {
	s := testServer(t)

	old := profile.Profile{ID: uuid.New(), Name: "Old", Enabled: true}
	if err := s.profiles.Set(&old); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}

	doc := "version: 1\nprofiles:\n  - name: New\n    enabled: true\n"
	req := httptest.NewRequest("POST", "/api/import", strings.NewReader(doc))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}

	list, err := s.profiles.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "New" {
		t.Errorf("profiles after import = %+v", list)
	}
}

func TestImportRejectsInvalidArchive(t *testing.T) {
	s := testServer(t)

	keep := profile.Profile{ID: uuid.New(), Name: "Keep", Enabled: true}
	if err := s.profiles.Set(&keep); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/import", strings.NewReader("version: 9\nprofiles: []\n"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("import status = %d", rec.Code)
	}

	// The existing set is untouched.
	if _, err := s.profiles.Get(keep.ID); err != nil {
		t.Errorf("existing profile lost: %v", err)
	}
}

func TestImportRateLimited(t *testing.T) {
	s := testServer(t)

	doc := "version: 1\nprofiles: []\n"
	for i := 0; i < importRateLimit; i++ {
		req := httptest.NewRequest("POST", "/api/import", strings.NewReader(doc))
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("import %d status = %d: %s", i+1, rec.Code, rec.Body)
		}
	}

	req := httptest.NewRequest("POST", "/api/import", strings.NewReader(doc))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("import past the limit status = %d", rec.Code)
	}
}
