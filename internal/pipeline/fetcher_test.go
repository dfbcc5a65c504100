package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcherGet(t *testing.T) {
	t.Parallel()

	t.Run("reads body and headers", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ua := r.Header.Get("User-Agent"); ua != "precache-test" {
				t.Errorf("unexpected user agent %q", ua)
			}
			w.Header().Set("X-Test", "1")
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		f := NewFetcher(newMemCache(), WithHTTPClient(srv.Client()), WithUserAgent("precache-test"))
		resp, err := f.Get(context.Background(), srv.URL+"/api/kategori")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Status != http.StatusOK || resp.Header.Get("X-Test") != "1" || string(resp.Body) != `{"data":[]}` {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("non-cacheable status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		f := NewFetcher(newMemCache(), WithHTTPClient(srv.Client()))
		if _, err := f.Get(context.Background(), srv.URL); !errors.Is(err, ErrNotCacheable) {
			t.Errorf("expected ErrNotCacheable, got %v", err)
		}
	})

	t.Run("body over the limit", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
		}))
		defer srv.Close()

		f := NewFetcher(newMemCache(), WithHTTPClient(srv.Client()), WithMaxBodySize(32))
		if _, err := f.Get(context.Background(), srv.URL); !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("per-request timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		f := NewFetcher(newMemCache(), WithHTTPClient(srv.Client()), WithRequestTimeout(50*time.Millisecond))
		start := time.Now()
		_, err := f.Get(context.Background(), srv.URL)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if time.Since(start) > 2*time.Second {
			t.Errorf("timeout not enforced, took %v", time.Since(start))
		}
	})
}

func TestFetcherStore(t *testing.T) {
	t.Parallel()

	t.Run("stores original bytes with digest", func(t *testing.T) {
		t.Parallel()

		cache := newMemCache()
		f := NewFetcher(cache)
		body := []byte(`{"data":[{"id":1}]}`)
		if err := f.Store(context.Background(), &Response{URL: "https://api.example/x", Status: 200, Body: body}); err != nil {
			t.Fatalf("Store: %v", err)
		}
		rec, ok := cache.get("https://api.example/x")
		if !ok || !bytes.Equal(rec.Body, body) || rec.Digest == "" || rec.StoredAt.IsZero() {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("wraps cache errors as storage errors", func(t *testing.T) {
		t.Parallel()

		cache := newMemCache()
		cache.err = errors.New("readonly")
		err := NewFetcher(cache).Store(context.Background(), &Response{URL: "u", Status: 200})
		if !errors.Is(err, ErrStorage) || !strings.Contains(err.Error(), "readonly") {
			t.Errorf("unexpected error %v", err)
		}
	})
}
