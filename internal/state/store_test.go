package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"grimm.is/headmod/internal/clock"
)

func memStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(DefaultOptions(":memory:"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	store := memStore(t)
	if store.CurrentVersion() != 0 {
		t.Errorf("expected version 0, got %d", store.CurrentVersion())
	}
}

func TestNewSQLiteStore_FileBackend(t *testing.T) {
	path := t.TempDir() + "/state.db"

	store, err := NewSQLiteStore(DefaultOptions(path))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	store.CreateBucket("persisted")
	store.Set("persisted", "key", []byte("survives"))
	store.Close()

	// Reopen and verify the data and version survived.
	store2, err := NewSQLiteStore(DefaultOptions(path))
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store2.Close()

	val, err := store2.Get("persisted", "key")
	if err != nil {
		t.Fatalf("failed to read persisted key: %v", err)
	}
	if string(val) != "survives" {
		t.Errorf("wrong persisted value: %s", val)
	}
	if store2.CurrentVersion() != 1 {
		t.Errorf("expected version 1 after reopen, got %d", store2.CurrentVersion())
	}
}

func TestBucketOperations(t *testing.T) {
	store := memStore(t)

	if err := store.CreateBucket("test"); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	if err := store.CreateBucket("test"); err != ErrBucketExists {
		t.Errorf("expected ErrBucketExists, got %v", err)
	}

	buckets, err := store.ListBuckets()
	if err != nil {
		t.Fatalf("failed to list buckets: %v", err)
	}
	if len(buckets) != 1 || buckets[0] != "test" {
		t.Errorf("unexpected buckets: %v", buckets)
	}

	if err := store.DeleteBucket("test"); err != nil {
		t.Fatalf("failed to delete bucket: %v", err)
	}
	if err := store.DeleteBucket("test"); err != ErrBucketMissing {
		t.Errorf("expected ErrBucketMissing, got %v", err)
	}
}

func TestKeyValueOperations(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("kv")

	if err := store.Set("kv", "key1", []byte("value1")); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	val, err := store.Get("kv", "key1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("expected value1, got %s", val)
	}

	if _, err := store.Get("kv", "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set("kv", "key1", []byte("updated")); err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	val, _ = store.Get("kv", "key1")
	if string(val) != "updated" {
		t.Errorf("expected updated, got %s", val)
	}

	if err := store.Delete("kv", "key1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := store.Get("kv", "key1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete("kv", "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetWithMeta(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("meta")
	store.Set("meta", "key1", []byte("value1"))

	entry, err := store.GetWithMeta("meta", "key1")
	if err != nil {
		t.Fatalf("failed to get with meta: %v", err)
	}
	if string(entry.Value) != "value1" {
		t.Errorf("wrong value: %s", entry.Value)
	}
	if entry.Version != 1 {
		t.Errorf("expected version 1, got %d", entry.Version)
	}
	if entry.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestSetWithTTL(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	opts := DefaultOptions(":memory:")
	opts.Clock = clk
	store, err := NewSQLiteStore(opts)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	store.CreateBucket("ttl")
	if err := store.SetWithTTL("ttl", "expires", []byte("soon"), time.Minute); err != nil {
		t.Fatalf("failed to set with TTL: %v", err)
	}

	// Visible before expiry.
	val, err := store.Get("ttl", "expires")
	if err != nil {
		t.Fatalf("should exist: %v", err)
	}
	if string(val) != "soon" {
		t.Errorf("wrong value: %s", val)
	}

	// Invisible once the clock passes the deadline.
	clk.Advance(2 * time.Minute)
	if _, err := store.Get("ttl", "expires"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestListOperations(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("list")
	store.Set("list", "a", []byte("1"))
	store.Set("list", "b", []byte("2"))
	store.Set("list", "c", []byte("3"))

	all, err := store.List("list")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %d", len(all))
	}

	keys, err := store.ListKeys("list")
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("keys not sorted: %v", keys)
	}
}

func TestJSONOperations(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("json")

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := store.SetJSON("json", "obj", doc{Name: "test", Count: 42}); err != nil {
		t.Fatalf("failed to set JSON: %v", err)
	}

	var result doc
	if err := store.GetJSON("json", "obj", &result); err != nil {
		t.Fatalf("failed to get JSON: %v", err)
	}
	if result.Name != "test" || result.Count != 42 {
		t.Errorf("wrong JSON data: %+v", result)
	}
}

func TestChangeTracking(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("changes")

	store.Set("changes", "k1", []byte("v1"))
	store.Set("changes", "k2", []byte("v2"))
	store.Set("changes", "k1", []byte("v1-updated"))
	store.Delete("changes", "k2")

	if store.CurrentVersion() != 4 {
		t.Errorf("expected version 4, got %d", store.CurrentVersion())
	}

	changes, err := store.GetChangesSince(0)
	if err != nil {
		t.Fatalf("failed to get changes: %v", err)
	}
	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %d", len(changes))
	}
	if changes[0].Type != ChangeInsert {
		t.Errorf("expected insert, got %s", changes[0].Type)
	}
	if changes[2].Type != ChangeUpdate {
		t.Errorf("expected update, got %s", changes[2].Type)
	}
	if changes[3].Type != ChangeDelete {
		t.Errorf("expected delete, got %s", changes[3].Type)
	}

	changes, _ = store.GetChangesSince(2)
	if len(changes) != 2 {
		t.Errorf("expected 2 changes, got %d", len(changes))
	}
}

func TestSubscribe(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("sub")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := store.Subscribe(ctx)
	store.Set("sub", "key", []byte("value"))

	select {
	case change := <-ch:
		if change.Key != "key" || change.Type != ChangeInsert {
			t.Errorf("unexpected change: %+v", change)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("did not receive change")
	}
}

func TestSnapshot(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("snap1")
	store.CreateBucket("snap2")
	store.Set("snap1", "a", []byte("1"))
	store.Set("snap1", "b", []byte("2"))
	store.Set("snap2", "x", []byte("X"))

	snapshot, err := store.CreateSnapshot()
	if err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}
	if len(snapshot.Buckets) != 2 {
		t.Errorf("expected 2 buckets in snapshot, got %d", len(snapshot.Buckets))
	}
	if len(snapshot.Buckets["snap1"]) != 2 {
		t.Errorf("expected 2 entries in snap1, got %d", len(snapshot.Buckets["snap1"]))
	}

	// Mutate, then roll back.
	store.Set("snap1", "c", []byte("3"))
	store.Delete("snap1", "a")

	if err := store.RestoreSnapshot(snapshot); err != nil {
		t.Fatalf("failed to restore snapshot: %v", err)
	}

	val, err := store.Get("snap1", "a")
	if err != nil {
		t.Errorf("should have restored 'a': %v", err)
	}
	if string(val) != "1" {
		t.Errorf("wrong value for 'a': %s", val)
	}
	if _, err := store.Get("snap1", "c"); err != ErrNotFound {
		t.Errorf("'c' should not exist after restore")
	}
}

func TestClosedStore(t *testing.T) {
	store, _ := NewSQLiteStore(DefaultOptions(":memory:"))
	store.Close()

	if err := store.CreateBucket("test"); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := store.Get("test", "key"); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := store.Set("test", "key", []byte("value")); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestConcurrency(t *testing.T) {
	store := memStore(t)
	store.CreateBucket("concurrent")

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("key-%d", id)
			if err := store.Set("concurrent", key, []byte("val")); err != nil {
				t.Errorf("concurrent set failed: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key-%d", i)
		if _, err := store.Get("concurrent", key); err != nil {
			t.Errorf("missing key %s: %v", key, err)
		}
	}
}
