package cachestore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/precache/internal/model"
)

// DatabaseFile is the file name of the SQLite database inside the data dir.
const DatabaseFile = "precache.db"

var (
	// ErrNotCacheable is returned by Put for responses whose status is not
	// 200 or opaque.
	ErrNotCacheable = errors.New("response status is not cacheable")

	// ErrEmptyCacheName is returned when a cache is opened without a name.
	ErrEmptyCacheName = errors.New("cache name must not be empty")
)

// Store is the SQLite-backed durable cache store.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// maxEntries bounds the number of records per named cache.
	// Zero disables the bound.
	maxEntries int
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool

	// MaxEntries bounds the number of records kept per named cache. When a put
	// exceeds the bound the oldest records are evicted. Zero means unbounded.
	MaxEntries int
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxEntries:        200,
	}
}

// Usage summarizes how much the store holds.
type Usage struct {
	// Caches is the number of named caches.
	Caches int `json:"caches"`

	// Entries is the number of stored records across all caches.
	Entries int `json:"entries"`

	// Bytes is the total body size across all records.
	Bytes int64 `json:"bytes"`
}

// Open opens or creates a Store in the given directory.
func Open(dir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dir, DatabaseFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:         db,
		dbPath:     dbPath,
		maxEntries: opts.MaxEntries,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS caches (
		name TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_entries (
		cache_name TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		headers TEXT NOT NULL,
		body BLOB,
		digest TEXT NOT NULL,
		stored_at INTEGER NOT NULL,
		PRIMARY KEY (cache_name, url)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_stored ON cache_entries(cache_name, stored_at);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Open opens the named cache, creating it if needed.
func (s *Store) Open(ctx context.Context, name string) (*Cache, error) {
	if name == "" {
		return nil, ErrEmptyCacheName
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO caches (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %q: %w", name, err)
	}
	return &Cache{store: s, name: name}, nil
}

// Has reports whether a cache with the given name exists.
func (s *Store) Has(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM caches WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check cache %q: %w", name, err)
	}
	return count > 0, nil
}

// Names returns the names of all caches in alphabetical order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan cache name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteCache deletes the named cache and all of its records.
// It reports whether the cache existed.
func (s *Store) DeleteCache(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_name = ?`, name); err != nil {
		return false, fmt.Errorf("failed to delete entries of %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit cache deletion: %w", err)
	}
	return n > 0, nil
}

// DeleteAll deletes every named cache and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, name := range names {
		ok, err := s.DeleteCache(ctx, name)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// URLs returns every cached URL across all caches, deduplicated and sorted.
func (s *Store) URLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT url FROM cache_entries ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached urls: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Usage returns a storage estimate for the whole store.
func (s *Store) Usage(ctx context.Context) (Usage, error) {
	var u Usage
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM caches`).Scan(&u.Caches); err != nil {
		return Usage{}, fmt.Errorf("failed to count caches: %w", err)
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(body)), 0) FROM cache_entries`,
	).Scan(&u.Entries, &u.Bytes)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to measure cache entries: %w", err)
	}
	return u, nil
}

// Cache is a handle to one named cache.
type Cache struct {
	store *Store
	name  string
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.name
}

// Put stores a record, replacing any record with the same URL.
// Records with a non-cacheable status are rejected with ErrNotCacheable.
func (c *Cache) Put(ctx context.Context, rec model.CacheRecord) error {
	if !model.IsCacheableStatus(rec.Status) {
		return fmt.Errorf("%w: %d for %s", ErrNotCacheable, rec.Status, rec.URL)
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now()
	}
	if rec.Digest == "" {
		rec.Digest = Digest(rec.Body)
	}
	headerJSON, err := json.Marshal(rec.Header)
	if err != nil {
		return fmt.Errorf("failed to serialize headers: %w", err)
	}

	// The cache may have been deleted since this handle was opened.
	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO caches (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		c.name, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to recreate cache %q: %w", c.name, err)
	}

	query := `
	INSERT INTO cache_entries (cache_name, url, status, headers, body, digest, stored_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_name, url) DO UPDATE SET
		status = excluded.status,
		headers = excluded.headers,
		body = excluded.body,
		digest = excluded.digest,
		stored_at = excluded.stored_at
	`
	_, err = c.store.db.ExecContext(ctx, query,
		c.name,
		rec.URL,
		rec.Status,
		string(headerJSON),
		rec.Body,
		rec.Digest,
		rec.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", rec.URL, err)
	}

	return c.evictOverflow(ctx)
}

// evictOverflow removes the oldest records beyond the per-cache bound.
func (c *Cache) evictOverflow(ctx context.Context) error {
	if c.store.maxEntries <= 0 {
		return nil
	}
	query := `
	DELETE FROM cache_entries
	WHERE cache_name = ? AND rowid NOT IN (
		SELECT rowid FROM cache_entries
		WHERE cache_name = ?
		ORDER BY stored_at DESC, rowid DESC
		LIMIT ?
	)
	`
	if _, err := c.store.db.ExecContext(ctx, query, c.name, c.name, c.store.maxEntries); err != nil {
		return fmt.Errorf("failed to evict overflow in %q: %w", c.name, err)
	}
	return nil
}

// Match returns the record stored for url.
func (c *Cache) Match(ctx context.Context, url string) (model.CacheRecord, bool, error) {
	query := `
	SELECT url, status, headers, body, digest, stored_at
	FROM cache_entries
	WHERE cache_name = ? AND url = ?
	`

	var (
		rec        model.CacheRecord
		headerJSON string
		storedAt   int64
	)
	err := c.store.db.QueryRowContext(ctx, query, c.name, url).Scan(
		&rec.URL,
		&rec.Status,
		&headerJSON,
		&rec.Body,
		&rec.Digest,
		&storedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheRecord{}, false, nil
	}
	if err != nil {
		return model.CacheRecord{}, false, fmt.Errorf("failed to match %s: %w", url, err)
	}

	rec.StoredAt = time.Unix(0, storedAt)
	rec.Header = make(http.Header)
	if headerJSON != "" && headerJSON != "null" {
		if err := json.Unmarshal([]byte(headerJSON), &rec.Header); err != nil {
			return model.CacheRecord{}, false, fmt.Errorf("failed to parse headers: %w", err)
		}
	}
	return rec, true, nil
}

// Keys returns the URLs stored in this cache in write order.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT url FROM cache_entries WHERE cache_name = ? ORDER BY stored_at, rowid`,
		c.name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %q: %w", c.name, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes the record stored for url and reports whether one existed.
func (c *Cache) Delete(ctx context.Context, url string) (bool, error) {
	res, err := c.store.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_name = ? AND url = ?`, c.name, url,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Digest returns the hex-encoded BLAKE2b-256 digest of body.
func Digest(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}
