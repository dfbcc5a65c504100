package cachestore

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/precache/internal/model"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T, opts Options) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func okRecord(url, body string) model.CacheRecord {
	return model.CacheRecord{
		URL:    url,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(body),
	}
}

// TestOpen tests store opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "a", "b")
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dir, DatabaseFile)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("unexpected error message: %v", err)
		}
	})

	t.Run("data survives reopen", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		ctx := context.Background()

		s1, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		c, err := s1.Open(ctx, "vercel-api-cache")
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		if err := c.Put(ctx, okRecord("https://api.example/api/kategori", `{"data":[]}`)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		_ = s1.Close()

		s2, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		defer s2.Close()
		c2, err := s2.Open(ctx, "vercel-api-cache")
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		_, ok, err := c2.Match(ctx, "https://api.example/api/kategori")
		if err != nil || !ok {
			t.Errorf("expected record after reopen, ok=%v err=%v", ok, err)
		}
	})
}

// TestCachePutMatch tests storing and matching records.
func TestCachePutMatch(t *testing.T) {
	t.Parallel()

	t.Run("stores body and headers verbatim", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := setupTestStore(t, DefaultOptions())
		c, err := s.Open(ctx, "api")
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		rec := okRecord("https://api.example/api/berita?sort=newest&limit=30", `{"data":[{"id":1}]}`)
		if err := c.Put(ctx, rec); err != nil {
			t.Fatalf("put: %v", err)
		}

		got, ok, err := c.Match(ctx, rec.URL)
		if err != nil || !ok {
			t.Fatalf("match failed: ok=%v err=%v", ok, err)
		}
		if string(got.Body) != string(rec.Body) {
			t.Errorf("body mismatch: %q", got.Body)
		}
		if got.Header.Get("Content-Type") != "application/json" {
			t.Errorf("header mismatch: %v", got.Header)
		}
		if got.Digest != Digest(rec.Body) {
			t.Errorf("digest mismatch: %q", got.Digest)
		}
		if got.StoredAt.IsZero() {
			t.Error("expected StoredAt to be set")
		}
	})

	t.Run("rejects non-cacheable status", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := setupTestStore(t, DefaultOptions())
		c, _ := s.Open(ctx, "api")

		rec := okRecord("https://api.example/x", "oops")
		rec.Status = http.StatusInternalServerError
		if err := c.Put(ctx, rec); !errors.Is(err, ErrNotCacheable) {
			t.Errorf("expected ErrNotCacheable, got %v", err)
		}
		if _, ok, _ := c.Match(ctx, rec.URL); ok {
			t.Error("non-cacheable record must not be stored")
		}
	})

	t.Run("accepts opaque status", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := setupTestStore(t, DefaultOptions())
		c, _ := s.Open(ctx, "api")

		rec := okRecord("https://cdn.example/x", "")
		rec.Status = model.StatusOpaque
		if err := c.Put(ctx, rec); err != nil {
			t.Errorf("expected opaque status to be cacheable, got %v", err)
		}
	})

	t.Run("last write wins for the same key", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := setupTestStore(t, DefaultOptions())
		c, _ := s.Open(ctx, "api")

		url := "https://api.example/api/berita/featured"
		_ = c.Put(ctx, okRecord(url, "first"))
		_ = c.Put(ctx, okRecord(url, "second"))

		got, _, _ := c.Match(ctx, url)
		if string(got.Body) != "second" {
			t.Errorf("expected last write to win, got %q", got.Body)
		}
		keys, _ := c.Keys(ctx)
		if len(keys) != 1 {
			t.Errorf("expected 1 key, got %d", len(keys))
		}
	})

	t.Run("miss returns false without error", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := setupTestStore(t, DefaultOptions())
		c, _ := s.Open(ctx, "api")

		_, ok, err := c.Match(ctx, "https://api.example/none")
		if err != nil || ok {
			t.Errorf("expected clean miss, ok=%v err=%v", ok, err)
		}
	})

	t.Run("caches are isolated by name", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := setupTestStore(t, DefaultOptions())
		a, _ := s.Open(ctx, "a")
		b, _ := s.Open(ctx, "b")

		_ = a.Put(ctx, okRecord("https://api.example/1", "a"))
		if _, ok, _ := b.Match(ctx, "https://api.example/1"); ok {
			t.Error("record leaked across caches")
		}
	})
}

// TestCacheEviction tests the per-cache entry bound.
func TestCacheEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t, Options{CreateIfNotExists: true, EnableWAL: true, MaxEntries: 2})
	c, _ := s.Open(ctx, "api")

	base := time.Now()
	for i, u := range []string{"https://api.example/1", "https://api.example/2", "https://api.example/3"} {
		rec := okRecord(u, "x")
		rec.StoredAt = base.Add(time.Duration(i) * time.Second)
		if err := c.Put(ctx, rec); err != nil {
			t.Fatalf("put %s: %v", u, err)
		}
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "https://api.example/2" || keys[1] != "https://api.example/3" {
		t.Errorf("expected oldest entry evicted, got %v", keys)
	}
}

// TestStoreCacheManagement tests names, deletion, urls and usage.
func TestStoreCacheManagement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t, DefaultOptions())
	a, _ := s.Open(ctx, "api-cache")
	b, _ := s.Open(ctx, "vercel-api-cache")
	_ = a.Put(ctx, okRecord("https://api.example/1", "12345"))
	_ = b.Put(ctx, okRecord("https://api.example/1", "123"))
	_ = b.Put(ctx, okRecord("https://api.example/2", "12"))

	names, err := s.Names(ctx)
	if err != nil || len(names) != 2 || names[0] != "api-cache" {
		t.Fatalf("unexpected names %v (err=%v)", names, err)
	}

	urls, err := s.URLs(ctx)
	if err != nil || len(urls) != 2 {
		t.Fatalf("expected 2 distinct urls, got %v (err=%v)", urls, err)
	}

	usage, err := s.Usage(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Caches != 2 || usage.Entries != 3 || usage.Bytes != 10 {
		t.Errorf("unexpected usage %+v", usage)
	}

	ok, err := s.DeleteCache(ctx, "api-cache")
	if err != nil || !ok {
		t.Fatalf("delete cache: ok=%v err=%v", ok, err)
	}
	if has, _ := s.Has(ctx, "api-cache"); has {
		t.Error("deleted cache still present")
	}

	n, err := s.DeleteAll(ctx)
	if err != nil || n != 1 {
		t.Errorf("expected 1 remaining cache deleted, got %d (err=%v)", n, err)
	}
	if usage, _ := s.Usage(ctx); usage.Entries != 0 {
		t.Errorf("expected no entries after DeleteAll, got %d", usage.Entries)
	}
}

// TestStatusRecord tests the persisted status record.
func TestStatusRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t, DefaultOptions())
	r := NewStatusRecord(s)

	got, err := r.Read(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected no status initially, got %+v (err=%v)", got, err)
	}

	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := model.PreCacheStatus{
		Version:     model.StatusVersion,
		Timestamp:   done,
		IsComplete:  true,
		TotalItems:  61,
		TotalImages: 40,
		CompletedAt: &done,
	}
	if err := r.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err = r.Read(ctx)
	if err != nil || got == nil {
		t.Fatalf("read: %+v (err=%v)", got, err)
	}
	if !got.IsComplete || got.TotalItems != 61 || got.TotalImages != 40 || !got.CompletedAt.Equal(done) {
		t.Errorf("unexpected status %+v", got)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := r.Read(ctx); got != nil {
		t.Errorf("expected status to be cleared, got %+v", got)
	}
}
