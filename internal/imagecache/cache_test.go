package imagecache

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
)

func setupTestCache(t *testing.T, maxBytes int64) (*Cache, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "images")
	c, err := Open(path, maxBytes)
	if err != nil {
		t.Fatalf("failed to open image cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c, _ := setupTestCache(t, 0)
	body := []byte{0x89, 'P', 'N', 'G'}
	err := c.Put(Entry{
		URL:         "https://cdn.example/a.png",
		ContentType: "image/png",
		Header:      http.Header{"Cache-Control": []string{"max-age=60"}},
		Body:        body,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get("https://cdn.example/a.png")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Body, body) {
		t.Errorf("body mismatch: %v", got.Body)
	}
	if got.ContentType != "image/png" || got.Header.Get("Cache-Control") != "max-age=60" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.StoredAt.IsZero() {
		t.Error("expected StoredAt to be set")
	}
	if !c.Has("https://cdn.example/a.png") || c.Len() != 1 || c.TotalSize() <= 0 {
		t.Errorf("unexpected index state: len=%d size=%d", c.Len(), c.TotalSize())
	}

	if _, ok, err := c.Get("https://cdn.example/missing.png"); ok || err != nil {
		t.Errorf("expected clean miss, ok=%v err=%v", ok, err)
	}
}

func TestCacheReplaceKeepsSizeAccurate(t *testing.T) {
	t.Parallel()

	c, _ := setupTestCache(t, 0)
	_ = c.Put(Entry{URL: "u", Body: make([]byte, 100)})
	first := c.TotalSize()
	_ = c.Put(Entry{URL: "u", Body: make([]byte, 100)})

	if c.TotalSize() != first || c.Len() != 1 {
		t.Errorf("replacing an entry changed accounting: size %d -> %d, len %d", first, c.TotalSize(), c.Len())
	}
}

func TestCacheIndexSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "images")
	c, err := Open(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = c.Put(Entry{URL: "https://cdn.example/1.jpg", Body: []byte("1")})
	_ = c.Put(Entry{URL: "https://cdn.example/2.jpg", Body: []byte("2")})
	size := c.TotalSize()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	c2, err := Open(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	keys := c2.Keys()
	if len(keys) != 2 || keys[0] != "https://cdn.example/1.jpg" {
		t.Errorf("unexpected keys after reopen: %v", keys)
	}
	if c2.TotalSize() != size {
		t.Errorf("size after reopen = %d, want %d", c2.TotalSize(), size)
	}
}

func TestCacheEviction(t *testing.T) {
	t.Parallel()

	probe, _ := setupTestCache(t, 0)
	_ = probe.Put(Entry{URL: "x", Body: make([]byte, 1000)})
	one := probe.TotalSize()

	c, _ := setupTestCache(t, one*2+one/2)
	_ = c.Put(Entry{URL: "a", Body: make([]byte, 1000)})
	_ = c.Put(Entry{URL: "b", Body: make([]byte, 1000)})
	if _, _, err := c.Get("a"); err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = c.Put(Entry{URL: "c", Body: make([]byte, 1000)})

	if c.Has("b") {
		t.Error("least recently used entry should have been evicted")
	}
	if !c.Has("a") || !c.Has("c") {
		t.Errorf("unexpected keys after eviction: %v", c.Keys())
	}
}

func TestCacheTouch(t *testing.T) {
	t.Parallel()

	probe, _ := setupTestCache(t, 0)
	_ = probe.Put(Entry{URL: "x", Body: make([]byte, 1000)})
	one := probe.TotalSize()

	c, _ := setupTestCache(t, one*2+one/2)
	_ = c.Put(Entry{URL: "a", Body: make([]byte, 1000)})
	_ = c.Put(Entry{URL: "b", Body: make([]byte, 1000)})

	if !c.Touch("a") {
		t.Fatal("expected Touch to find a")
	}
	if c.Touch("missing") {
		t.Error("Touch reported an uncached url")
	}
	_ = c.Put(Entry{URL: "c", Body: make([]byte, 1000)})

	if c.Has("b") {
		t.Error("untouched entry should have been evicted")
	}
	if !c.Has("a") || !c.Has("c") {
		t.Errorf("touched entry was evicted: %v", c.Keys())
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Touch("a") {
		t.Error("Touch after Close should report false")
	}
}

func TestCacheDeleteClear(t *testing.T) {
	t.Parallel()

	c, _ := setupTestCache(t, 0)
	_ = c.Put(Entry{URL: "a", Body: []byte("a")})
	_ = c.Put(Entry{URL: "b", Body: []byte("b")})

	ok, err := c.Delete("a")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := c.Delete("a"); ok {
		t.Error("second delete should report no entry")
	}

	n, err := c.Clear()
	if err != nil || n != 1 {
		t.Fatalf("clear: n=%d err=%v", n, err)
	}
	if c.Len() != 0 || c.TotalSize() != 0 {
		t.Errorf("cache not empty after clear: len=%d size=%d", c.Len(), c.TotalSize())
	}
}

func TestCacheClosed(t *testing.T) {
	t.Parallel()

	c, _ := setupTestCache(t, 0)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Put(Entry{URL: "a"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
