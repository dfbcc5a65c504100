package model

import (
	"errors"
	"testing"
)

// TestDecodeItems tests decoding of response envelopes.
func TestDecodeItems(t *testing.T) {
	t.Parallel()

	t.Run("decodes article array with numeric and string ids", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{"success":true,"data":[{"id":7,"judul":"A","gambar_url":"https://img.example/a.jpg"},{"id":"x-9"}],"pagination":{"page":1}}`)
		items, err := DecodeItems(body, KindArticle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].ID != "7" {
			t.Errorf("expected id 7, got %q", items[0].ID)
		}
		if items[1].ID != "x-9" {
			t.Errorf("expected id x-9, got %q", items[1].ID)
		}
		if items[0].Article == nil || items[0].Article.ImageURL != "https://img.example/a.jpg" {
			t.Errorf("expected article image url to be decoded, got %+v", items[0].Article)
		}
	})

	t.Run("single object data yields one item", func(t *testing.T) {
		t.Parallel()

		items, err := DecodeItems([]byte(`{"data":{"id":3,"konten":"<p>x</p>"}}`), KindArticle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 1 || items[0].ID != "3" {
			t.Errorf("expected single item with id 3, got %+v", items)
		}
	})

	t.Run("null data yields no items", func(t *testing.T) {
		t.Parallel()

		items, err := DecodeItems([]byte(`{"data":null}`), KindCategory)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %d", len(items))
		}
	})

	t.Run("missing data is an error", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeItems([]byte(`{"success":false}`), KindCategory)
		if !errors.Is(err, ErrMissingData) {
			t.Errorf("expected ErrMissingData, got %v", err)
		}
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := DecodeItems([]byte(`<html>`), KindArticle); err == nil {
			t.Error("expected error for non-json body")
		}
	})
}

// TestItemKey tests that keys are namespaced by kind.
func TestItemKey(t *testing.T) {
	t.Parallel()

	a := Item{Kind: KindArticle, ID: "1"}
	c := Item{Kind: KindCategory, ID: "1"}
	if a.Key() == c.Key() {
		t.Errorf("expected distinct keys, both were %q", a.Key())
	}
}

// TestIsCacheableStatus tests the cacheable status rule.
func TestIsCacheableStatus(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]bool{200: true, 0: true, 201: false, 204: false, 304: false, 404: false, 500: false} {
		if got := IsCacheableStatus(status); got != want {
			t.Errorf("IsCacheableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

// TestPreCacheStatusIsCurrent tests the completion check.
func TestPreCacheStatusIsCurrent(t *testing.T) {
	t.Parallel()

	var nilStatus *PreCacheStatus
	if nilStatus.IsCurrent() {
		t.Error("nil status must not be current")
	}
	if (&PreCacheStatus{Version: "0.9.0", IsComplete: true}).IsCurrent() {
		t.Error("old version must not be current")
	}
	if (&PreCacheStatus{Version: StatusVersion}).IsCurrent() {
		t.Error("incomplete status must not be current")
	}
	if !(&PreCacheStatus{Version: StatusVersion, IsComplete: true}).IsCurrent() {
		t.Error("complete status with current version must be current")
	}
}

// TestReachabilityState tests derived reachability flags.
func TestReachabilityState(t *testing.T) {
	t.Parallel()

	if !(ReachabilityState{ConnectionType: Connection2G}).IsSlow() {
		t.Error("2g should be slow")
	}
	if (ReachabilityState{ConnectionType: Connection4G}).IsSlow() {
		t.Error("4g should not be slow")
	}
	if !(ReachabilityState{IsOnline: true, WasOffline: true}).Recovering() {
		t.Error("online after offline should be recovering")
	}
}
