package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPEngine_ListRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rules" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Rule{testRule(7)})
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL)
	rules, err := e.ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != 7 {
		t.Errorf("unexpected rules: %+v", rules)
	}
}

func TestHTTPEngine_ApplyChanges(t *testing.T) {
	var got Changes
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rules/changes" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL)
	err := e.ApplyChanges(context.Background(), Changes{
		RemoveRuleIDs: []int{3},
		AddRules:      []Rule{testRule(4)},
	})
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if len(got.RemoveRuleIDs) != 1 || got.RemoveRuleIDs[0] != 3 {
		t.Errorf("remove ids not transmitted: %+v", got)
	}
	if len(got.AddRules) != 1 || got.AddRules[0].ID != 4 {
		t.Errorf("add rules not transmitted: %+v", got)
	}
}

func TestHTTPEngine_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "regexFilter is not supported"})
	}))
	defer srv.Close()

	e := NewHTTPEngine(srv.URL)
	err := e.ApplyChanges(context.Background(), Changes{AddRules: []Rule{testRule(1)}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "regexFilter is not supported") {
		t.Errorf("engine reason not surfaced: %v", err)
	}
}
