// Package state provides persistent key-value storage with change tracking.
//
// The state store provides:
// - Persistent storage via SQLite with WAL mode for performance
// - Typed buckets for profiles, settings and rule bookkeeping
// - Real-time change streams for subscribers
// - Snapshot and restore for import rollback and backups
//
// Callers interact with the store through buckets without knowing about the
// underlying schema. The store handles serialization, persistence, and
// change propagation.
//
// The driver is modernc.org/sqlite (pure Go, no CGO), so the daemon
// cross-compiles without a C toolchain.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"grimm.is/headmod/internal/clock"
)

// Common errors
var (
	ErrNotFound      = errors.New("key not found")
	ErrBucketExists  = errors.New("bucket already exists")
	ErrBucketMissing = errors.New("bucket does not exist")
	ErrStoreClosed   = errors.New("store is closed")
)

// ChangeType represents the type of state change.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change represents a single state change delivered to subscribers.
type Change struct {
	ID        uint64     `json:"id"`
	Bucket    string     `json:"bucket"`
	Key       string     `json:"key"`
	Value     []byte     `json:"value,omitempty"` // nil for deletes
	Type      ChangeType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Version   uint64     `json:"version"` // Monotonic store version
}

// Snapshot represents a point-in-time snapshot of the entire store.
type Snapshot struct {
	Version   uint64            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Buckets   map[string]Bucket `json:"buckets"`
}

// Bucket represents a collection of key-value pairs.
type Bucket map[string]Entry

// Entry represents a single stored value with metadata.
type Entry struct {
	Value     []byte    `json:"value"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // Zero means no expiry
}

// Store is the main state storage interface.
type Store interface {
	// Bucket operations
	CreateBucket(name string) error
	DeleteBucket(name string) error
	ListBuckets() ([]string, error)

	// Key-value operations
	Get(bucket, key string) ([]byte, error)
	GetWithMeta(bucket, key string) (*Entry, error)
	Set(bucket, key string, value []byte) error
	SetWithTTL(bucket, key string, value []byte, ttl time.Duration) error
	Delete(bucket, key string) error
	List(bucket string) (map[string][]byte, error)
	ListKeys(bucket string) ([]string, error)

	// Typed helpers
	GetJSON(bucket, key string, v interface{}) error
	SetJSON(bucket, key string, v interface{}) error
	SetJSONWithTTL(bucket, key string, v interface{}, ttl time.Duration) error

	// Change tracking
	Subscribe(ctx context.Context) <-chan Change
	GetChangesSince(version uint64) ([]Change, error)
	CurrentVersion() uint64

	// Snapshot operations
	CreateSnapshot() (*Snapshot, error)
	RestoreSnapshot(snapshot *Snapshot) error

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.RWMutex
	version uint64
	closed  bool
	clock   clock.Clock

	// Change subscribers
	subMu       sync.RWMutex
	subscribers map[uint64]chan Change
	nextSubID   uint64

	// Background cleanup
	ctx    context.Context
	cancel context.CancelFunc
}

// Options configures the SQLite store.
type Options struct {
	Path            string        // Database file path (":memory:" for in-memory)
	WALMode         bool          // Enable WAL mode for better concurrency
	CleanupInterval time.Duration // How often to clean expired entries
	ChangeRetention time.Duration // How long to keep change history
	Clock           clock.Clock   // Optional: time source (defaults to RealClock if nil)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions(path string) Options {
	return Options{
		Path:            path,
		WALMode:         true,
		CleanupInterval: 5 * time.Minute,
		ChangeRetention: 24 * time.Hour,
	}
}

// NewSQLiteStore creates a new SQLite-backed state store.
func NewSQLiteStore(opts Options) (*SQLiteStore, error) {
	dsn := opts.Path
	if opts.WALMode && opts.Path != ":memory:" {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// mmap_size: memory map the DB (up to 256MB) for zero-copy reads
	// temp_store: keep temporary tables/indices in RAM
	pragmas := []string{
		"PRAGMA mmap_size = 268435456",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma %q: %w", p, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	clk := opts.Clock
	if clk == nil {
		clk = &clock.RealClock{}
	}

	s := &SQLiteStore{
		db:          db,
		clock:       clk,
		subscribers: make(map[uint64]chan Change),
		ctx:         ctx,
		cancel:      cancel,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.loadVersion(); err != nil {
		db.Close()
		cancel()
		return nil, fmt.Errorf("failed to load version: %w", err)
	}

	if opts.CleanupInterval > 0 {
		go s.cleanupLoop(opts.CleanupInterval, opts.ChangeRetention)
	}

	return s, nil
}

// initSchema creates the database tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
		-- Buckets table
		CREATE TABLE IF NOT EXISTS buckets (
			name TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL
		);

		-- Key-value store
		CREATE TABLE IF NOT EXISTS entries (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB,
			version INTEGER NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME,
			PRIMARY KEY (bucket, key),
			FOREIGN KEY (bucket) REFERENCES buckets(name) ON DELETE CASCADE
		);

		-- Change log feeding the subscriber stream
		CREATE TABLE IF NOT EXISTS changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB,
			change_type TEXT NOT NULL,
			version INTEGER NOT NULL,
			timestamp DATETIME NOT NULL
		);

		-- Metadata
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		);

		-- Indexes
		CREATE INDEX IF NOT EXISTS idx_entries_expires ON entries(expires_at) WHERE expires_at IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_changes_version ON changes(version);
		CREATE INDEX IF NOT EXISTS idx_changes_timestamp ON changes(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// loadVersion loads the current version from the database.
func (s *SQLiteStore) loadVersion() error {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM changes").Scan(&version)
	if err != nil {
		return err
	}
	if version.Valid {
		s.version = uint64(version.Int64)
	}
	return nil
}

// cleanupLoop periodically removes expired entries and old changes.
func (s *SQLiteStore) cleanupLoop(interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(retention)
		}
	}
}

// cleanup removes expired entries and old change history.
func (s *SQLiteStore) cleanup(retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := s.clock.Now()

	_, _ = s.db.Exec(
		"DELETE FROM entries WHERE expires_at IS NOT NULL AND expires_at < ?",
		now,
	)

	cutoff := now.Add(-retention)
	_, _ = s.db.Exec("DELETE FROM changes WHERE timestamp < ?", cutoff)
}

// CreateBucket creates a new bucket.
func (s *SQLiteStore) CreateBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec("INSERT INTO buckets (name, created_at) VALUES (?, ?)", name, s.clock.Now())
	if err != nil {
		// Unique constraint violation
		return ErrBucketExists
	}
	return nil
}

// DeleteBucket removes a bucket and all its entries.
func (s *SQLiteStore) DeleteBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	result, err := s.db.Exec("DELETE FROM buckets WHERE name = ?", name)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBucketMissing
	}
	return nil
}

// ListBuckets returns all bucket names.
func (s *SQLiteStore) ListBuckets() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query("SELECT name FROM buckets ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		buckets = append(buckets, name)
	}
	return buckets, rows.Err()
}

// Get retrieves a value by bucket and key.
func (s *SQLiteStore) Get(bucket, key string) ([]byte, error) {
	entry, err := s.GetWithMeta(bucket, key)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// GetWithMeta retrieves a value with its metadata.
func (s *SQLiteStore) GetWithMeta(bucket, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var entry Entry
	var expiresAt sql.NullTime

	err := s.db.QueryRow(`
		SELECT value, version, updated_at, expires_at
		FROM entries
		WHERE bucket = ? AND key = ?
		  AND (expires_at IS NULL OR expires_at > ?)
	`, bucket, key, s.clock.Now()).Scan(&entry.Value, &entry.Version, &entry.UpdatedAt, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		entry.ExpiresAt = expiresAt.Time
	}

	return &entry, nil
}

// Set stores a value.
func (s *SQLiteStore) Set(bucket, key string, value []byte) error {
	return s.setInternal(bucket, key, value, time.Time{})
}

// SetWithTTL stores a value with a time-to-live.
func (s *SQLiteStore) SetWithTTL(bucket, key string, value []byte, ttl time.Duration) error {
	return s.setInternal(bucket, key, value, s.clock.Now().Add(ttl))
}

// setInternal handles the actual set operation.
func (s *SQLiteStore) setInternal(bucket, key string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	now := s.clock.Now()
	// Optimistic version increment (rolled back on error)
	s.version++
	version := s.version

	tx, err := s.db.Begin()
	if err != nil {
		s.version--
		return err
	}
	defer tx.Rollback()

	// Insert or update?
	var exists bool
	err = tx.QueryRow(
		"SELECT 1 FROM entries WHERE bucket = ? AND key = ?",
		bucket, key,
	).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		s.version--
		return err
	}
	isUpdate := err == nil

	var expiresAtPtr interface{}
	if !expiresAt.IsZero() {
		expiresAtPtr = expiresAt
	}

	_, err = tx.Exec(`
		INSERT INTO entries (bucket, key, value, version, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET
			value = excluded.value,
			version = excluded.version,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`, bucket, key, value, version, now, expiresAtPtr)
	if err != nil {
		s.version--
		return err
	}

	changeType := ChangeInsert
	if isUpdate {
		changeType = ChangeUpdate
	}

	change := Change{
		Bucket:    bucket,
		Key:       key,
		Value:     value,
		Type:      changeType,
		Timestamp: now,
		Version:   version,
	}

	if err := s.recordChangeTx(tx, &change); err != nil {
		s.version--
		return err
	}

	if err := tx.Commit(); err != nil {
		s.version--
		return err
	}

	// Notify subscribers (after commit)
	s.notifySubscribers(change)

	return nil
}

// Delete removes a key.
func (s *SQLiteStore) Delete(bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"DELETE FROM entries WHERE bucket = ? AND key = ?",
		bucket, key,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	now := s.clock.Now()
	s.version++

	change := Change{
		Bucket:    bucket,
		Key:       key,
		Type:      ChangeDelete,
		Timestamp: now,
		Version:   s.version,
	}

	if err := s.recordChangeTx(tx, &change); err != nil {
		s.version--
		return err
	}

	if err := tx.Commit(); err != nil {
		s.version--
		return err
	}

	s.notifySubscribers(change)

	return nil
}

// List returns all key-value pairs in a bucket.
func (s *SQLiteStore) List(bucket string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT key, value FROM entries
		WHERE bucket = ? AND (expires_at IS NULL OR expires_at > ?)
	`, bucket, s.clock.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

// ListKeys returns all keys in a bucket.
func (s *SQLiteStore) ListKeys(bucket string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT key FROM entries
		WHERE bucket = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key
	`, bucket, s.clock.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// GetJSON retrieves and unmarshals a JSON value.
func (s *SQLiteStore) GetJSON(bucket, key string, v interface{}) error {
	data, err := s.Get(bucket, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SetJSON marshals and stores a JSON value.
func (s *SQLiteStore) SetJSON(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(bucket, key, data)
}

// SetJSONWithTTL marshals and stores a JSON value with TTL.
func (s *SQLiteStore) SetJSONWithTTL(bucket, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SetWithTTL(bucket, key, data, ttl)
}

// recordChangeTx writes a change to the change log using an existing transaction.
func (s *SQLiteStore) recordChangeTx(tx *sql.Tx, change *Change) error {
	result, err := tx.Exec(`
		INSERT INTO changes (bucket, key, value, change_type, version, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, change.Bucket, change.Key, change.Value, change.Type, change.Version, change.Timestamp)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	change.ID = uint64(id)
	return nil
}

// notifySubscribers sends a change to all subscribers.
func (s *SQLiteStore) notifySubscribers(change Change) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- change:
		default:
			// Subscriber is slow, skip
		}
	}
}

// Subscribe returns a channel that receives all changes.
func (s *SQLiteStore) Subscribe(ctx context.Context) <-chan Change {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Change, 100)
	s.subscribers[id] = ch
	s.subMu.Unlock()

	// Cleanup on context cancellation
	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		defer s.subMu.Unlock()
		// Only close if still registered (prevents double-close)
		if _, exists := s.subscribers[id]; exists {
			delete(s.subscribers, id)
			close(ch)
		}
	}()

	return ch
}

// GetChangesSince returns all changes since a given version.
func (s *SQLiteStore) GetChangesSince(version uint64) ([]Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, bucket, key, value, change_type, version, timestamp
		FROM changes
		WHERE version > ?
		ORDER BY version
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		var changeType string
		if err := rows.Scan(&c.ID, &c.Bucket, &c.Key, &c.Value, &changeType, &c.Version, &c.Timestamp); err != nil {
			return nil, err
		}
		c.Type = ChangeType(changeType)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// CurrentVersion returns the current version number.
func (s *SQLiteStore) CurrentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// CreateSnapshot creates a point-in-time snapshot.
func (s *SQLiteStore) CreateSnapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snapshot := &Snapshot{
		Version:   s.version,
		Timestamp: s.clock.Now(),
		Buckets:   make(map[string]Bucket),
	}

	buckets, err := s.db.Query("SELECT name FROM buckets")
	if err != nil {
		return nil, err
	}
	defer buckets.Close()

	var bucketNames []string
	for buckets.Next() {
		var name string
		if err := buckets.Scan(&name); err != nil {
			return nil, err
		}
		bucketNames = append(bucketNames, name)
	}

	for _, bucketName := range bucketNames {
		rows, err := s.db.Query(`
			SELECT key, value, version, updated_at, expires_at
			FROM entries
			WHERE bucket = ?
		`, bucketName)
		if err != nil {
			return nil, err
		}

		bucket := make(Bucket)
		for rows.Next() {
			var key string
			var entry Entry
			var expiresAt sql.NullTime

			if err := rows.Scan(&key, &entry.Value, &entry.Version, &entry.UpdatedAt, &expiresAt); err != nil {
				rows.Close()
				return nil, err
			}
			if expiresAt.Valid {
				entry.ExpiresAt = expiresAt.Time
			}
			bucket[key] = entry
		}
		rows.Close()

		snapshot.Buckets[bucketName] = bucket
	}

	return snapshot, nil
}

// RestoreSnapshot restores the store from a snapshot.
func (s *SQLiteStore) RestoreSnapshot(snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM buckets"); err != nil {
		return err
	}

	for bucketName, bucket := range snapshot.Buckets {
		if _, err := tx.Exec("INSERT INTO buckets (name, created_at) VALUES (?, ?)", bucketName, s.clock.Now()); err != nil {
			return err
		}

		for key, entry := range bucket {
			var expiresAt interface{}
			if !entry.ExpiresAt.IsZero() {
				expiresAt = entry.ExpiresAt
			}

			if _, err := tx.Exec(`
				INSERT INTO entries (bucket, key, value, version, updated_at, expires_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, bucketName, key, entry.Value, entry.Version, entry.UpdatedAt, expiresAt); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.version = snapshot.Version
	return nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.cancel()

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	return s.db.Close()
}
