package prefetch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nao1215/precache/internal/imagecache"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func setupImageCache(t *testing.T) *imagecache.Cache {
	t.Helper()

	c, err := imagecache.Open(filepath.Join(t.TempDir(), "images"), 0)
	if err != nil {
		t.Fatalf("open image cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHTTPLoader(t *testing.T) {
	t.Parallel()

	img := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write(img)
		case "/photo.webp":
			w.Header().Set("Content-Type", "image/webp")
			_, _ = w.Write([]byte("RIFF....WEBP"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	// Not parallel: it counts server hits.
	t.Run("stores decodable image once", func(t *testing.T) {
		store := setupImageCache(t)
		l := NewHTTPLoader(store, WithHTTPClient(srv.Client()))
		url := srv.URL + "/ok.png"

		if err := l.Load(context.Background(), url); err != nil {
			t.Fatalf("Load: %v", err)
		}
		ent, ok, err := store.Get(url)
		if err != nil || !ok {
			t.Fatalf("image not stored: ok=%v err=%v", ok, err)
		}
		if ent.ContentType != "image/png" || !bytes.Equal(ent.Body, img) {
			t.Errorf("unexpected entry type=%q len=%d", ent.ContentType, len(ent.Body))
		}

		before := hits.Load()
		if err := l.Load(context.Background(), url); err != nil {
			t.Fatalf("second Load: %v", err)
		}
		if hits.Load() != before {
			t.Error("cached image was requested again")
		}
	})

	t.Run("accepts declared image type without decoder", func(t *testing.T) {
		t.Parallel()

		store := setupImageCache(t)
		l := NewHTTPLoader(store, WithHTTPClient(srv.Client()))
		if err := l.Load(context.Background(), srv.URL+"/photo.webp"); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !store.Has(srv.URL + "/photo.webp") {
			t.Error("webp image not stored")
		}
	})

	t.Run("rejects non-image", func(t *testing.T) {
		t.Parallel()

		l := NewHTTPLoader(setupImageCache(t), WithHTTPClient(srv.Client()))
		if err := l.Load(context.Background(), srv.URL+"/page.html"); !errors.Is(err, ErrNotImage) {
			t.Errorf("expected ErrNotImage, got %v", err)
		}
	})

	t.Run("rejects non-200", func(t *testing.T) {
		t.Parallel()

		l := NewHTTPLoader(setupImageCache(t), WithHTTPClient(srv.Client()))
		if err := l.Load(context.Background(), srv.URL+"/missing.png"); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("rejects oversized image", func(t *testing.T) {
		t.Parallel()

		l := NewHTTPLoader(setupImageCache(t), WithHTTPClient(srv.Client()), WithMaxImageSize(8))
		if err := l.Load(context.Background(), srv.URL+"/ok.png"); !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("expected ErrImageTooLarge, got %v", err)
		}
	})
}

func TestHTTPLoaderKeepsCachedImagesWarm(t *testing.T) {
	t.Parallel()

	img := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(img)
	}))
	defer srv.Close()
	ctx := context.Background()

	sizing := setupImageCache(t)
	if err := NewHTTPLoader(sizing, WithHTTPClient(srv.Client())).Load(ctx, srv.URL+"/a.png"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	one := sizing.TotalSize()

	store, err := imagecache.Open(filepath.Join(t.TempDir(), "images"), one*2+one/2)
	if err != nil {
		t.Fatalf("open image cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	l := NewHTTPLoader(store, WithHTTPClient(srv.Client()))

	for _, name := range []string{"/a.png", "/b.png", "/a.png", "/c.png"} {
		if err := l.Load(ctx, srv.URL+name); err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
	}

	if !store.Has(srv.URL + "/a.png") {
		t.Error("image reused by a later load was evicted")
	}
	if store.Has(srv.URL + "/b.png") {
		t.Error("expected the least recently used image to be evicted")
	}
}
