package imagecache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	entryPrefix = "e:"
	metaPrefix  = "m:"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("image cache is closed")

// Entry is a cached image response.
type Entry struct {
	URL         string
	ContentType string
	Header      http.Header
	Body        []byte
	StoredAt    time.Time
}

type meta struct {
	Size       int64
	LastAccess int64
}

// Cache is a size-bounded image store. It is safe for concurrent use.
type Cache struct {
	maxBytes int64

	mu        sync.Mutex
	db        *leveldb.DB
	index     map[string]meta
	totalSize int64
}

// Open opens (or creates) the cache at path. A maxBytes of zero or less
// disables eviction.
func Open(path string, maxBytes int64) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open image cache: %w", err)
	}
	c := &Cache{
		maxBytes: maxBytes,
		db:       db,
		index:    map[string]meta{},
	}
	if err := c.loadIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load image cache index: %w", err)
	}
	return c, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Cache) loadIndex() error {
	it := c.db.NewIterator(util.BytesPrefix([]byte(metaPrefix)), nil)
	defer it.Release()

	var total int64
	idx := map[string]meta{}
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), []byte(metaPrefix)))
		var m meta
		if err := decodeGob(it.Value(), &m); err != nil {
			continue
		}
		idx[key] = m
		total += m.Size
	}
	if err := it.Error(); err != nil {
		return err
	}
	c.index = idx
	c.totalSize = total
	return nil
}

// Put stores ent under its URL, replacing any previous entry.
func (c *Cache) Put(ent Entry) error {
	if ent.StoredAt.IsZero() {
		ent.StoredAt = time.Now()
	}
	if ent.Header != nil {
		ent.Header = ent.Header.Clone()
	}
	b, err := encodeGob(ent)
	if err != nil {
		return fmt.Errorf("failed to encode image entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return ErrClosed
	}

	m := meta{Size: int64(len(b)), LastAccess: time.Now().UnixNano()}
	mb, err := encodeGob(m)
	if err != nil {
		return fmt.Errorf("failed to encode image meta: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(entryPrefix+ent.URL), b)
	batch.Put([]byte(metaPrefix+ent.URL), mb)
	if err := c.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write image entry: %w", err)
	}

	if old, ok := c.index[ent.URL]; ok {
		c.totalSize -= old.Size
	}
	c.index[ent.URL] = m
	c.totalSize += m.Size

	if c.maxBytes > 0 && c.totalSize > c.maxBytes {
		c.evictLocked(ent.URL)
	}
	return nil
}

// Get returns the entry for url and marks it as recently used.
func (c *Cache) Get(url string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return Entry{}, false, ErrClosed
	}

	b, err := c.db.Get([]byte(entryPrefix+url), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read image entry: %w", err)
	}
	var ent Entry
	if err := decodeGob(b, &ent); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode image entry: %w", err)
	}

	c.touchLocked(url)
	return ent, true, nil
}

// Touch marks url as recently used without reading its body. It reports
// whether url is cached.
func (c *Cache) Touch(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return false
	}
	return c.touchLocked(url)
}

func (c *Cache) touchLocked(url string) bool {
	m, ok := c.index[url]
	if !ok {
		return false
	}
	m.LastAccess = time.Now().UnixNano()
	c.index[url] = m
	if mb, err := encodeGob(m); err == nil {
		_ = c.db.Put([]byte(metaPrefix+url), mb, nil)
	}
	return true
}

// Has reports whether url is cached.
func (c *Cache) Has(url string) bool {
	c.mu.Lock()
	_, ok := c.index[url]
	c.mu.Unlock()
	return ok
}

// Keys returns the cached URLs in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.index))
	for k := range c.index {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// TotalSize returns the encoded size of all entries in bytes.
func (c *Cache) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

// Delete removes url. It reports whether an entry existed.
func (c *Cache) Delete(url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return false, ErrClosed
	}
	_, ok := c.index[url]
	if err := c.deleteLocked(url); err != nil {
		return false, err
	}
	return ok, nil
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return 0, ErrClosed
	}

	n := len(c.index)
	batch := new(leveldb.Batch)
	for k := range c.index {
		batch.Delete([]byte(entryPrefix + k))
		batch.Delete([]byte(metaPrefix + k))
	}
	if err := c.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("failed to clear image cache: %w", err)
	}
	c.index = map[string]meta{}
	c.totalSize = 0
	return n, nil
}

func (c *Cache) deleteLocked(url string) error {
	batch := new(leveldb.Batch)
	batch.Delete([]byte(entryPrefix + url))
	batch.Delete([]byte(metaPrefix + url))
	if err := c.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to delete image entry: %w", err)
	}
	if m, ok := c.index[url]; ok {
		c.totalSize -= m.Size
		delete(c.index, url)
	}
	return nil
}

// evictLocked drops least recently used entries until the cache fits,
// never evicting keep.
func (c *Cache) evictLocked(keep string) {
	type item struct {
		key string
		m   meta
	}
	items := make([]item, 0, len(c.index))
	for k, m := range c.index {
		if k == keep {
			continue
		}
		items = append(items, item{k, m})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].m.LastAccess < items[j].m.LastAccess
	})

	for _, it := range items {
		if c.totalSize <= c.maxBytes {
			return
		}
		_ = c.deleteLocked(it.key)
	}
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
