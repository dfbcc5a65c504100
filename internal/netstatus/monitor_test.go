package netstatus

import (
	"sync"
	"testing"
	"time"

	"github.com/nao1215/precache/internal/model"
)

func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestMonitorInitialState(t *testing.T) {
	t.Parallel()

	m := NewMonitor(true)
	defer m.Close()

	s := m.State()
	if !s.IsOnline || s.WasOffline || s.ConnectionType != model.ConnectionUnknown {
		t.Errorf("unexpected initial state %+v", s)
	}
}

func TestMonitorGraceWindow(t *testing.T) {
	t.Parallel()

	t.Run("offline sets wasOffline synchronously", func(t *testing.T) {
		t.Parallel()

		m := NewMonitor(true)
		defer m.Close()

		m.SetOffline()
		s := m.State()
		if s.IsOnline || !s.WasOffline {
			t.Errorf("unexpected state after offline %+v", s)
		}
	})

	t.Run("wasOffline clears after the grace window", func(t *testing.T) {
		t.Parallel()

		m := NewMonitor(true, WithGraceWindow(60*time.Millisecond))
		defer m.Close()

		m.SetOffline()
		m.SetOnline()
		s := m.State()
		if !s.IsOnline || !s.WasOffline {
			t.Fatalf("expected recovering state, got %+v", s)
		}
		if !waitFor(t, time.Second, func() bool { return !m.State().WasOffline }) {
			t.Error("wasOffline was not cleared after the grace window")
		}
	})

	t.Run("extra online events do not restart the window", func(t *testing.T) {
		t.Parallel()

		m := NewMonitor(true, WithGraceWindow(200*time.Millisecond))
		defer m.Close()

		m.SetOffline()
		start := time.Now()
		m.SetOnline()
		time.Sleep(150 * time.Millisecond)
		m.SetOnline()

		if !waitFor(t, time.Second, func() bool { return !m.State().WasOffline }) {
			t.Fatal("wasOffline was not cleared")
		}
		if elapsed := time.Since(start); elapsed > 320*time.Millisecond {
			t.Errorf("window appears restarted, cleared after %v", elapsed)
		}
	})

	t.Run("going offline again cancels the pending clear", func(t *testing.T) {
		t.Parallel()

		m := NewMonitor(true, WithGraceWindow(40*time.Millisecond))
		defer m.Close()

		m.SetOffline()
		m.SetOnline()
		m.SetOffline()
		time.Sleep(120 * time.Millisecond)

		s := m.State()
		if s.IsOnline || !s.WasOffline {
			t.Errorf("expected offline with wasOffline, got %+v", s)
		}
	})
}

func TestMonitorSubscribe(t *testing.T) {
	t.Parallel()

	m := NewMonitor(true, WithGraceWindow(time.Hour))
	defer m.Close()

	var mu sync.Mutex
	var got []model.ReachabilityState
	unsubscribe := m.Subscribe(func(s model.ReachabilityState) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	m.SetOffline()
	m.SetOffline()
	m.SetConnectionType(model.Connection3G)
	unsubscribe()
	m.SetOnline()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %+v", len(got), got)
	}
	if got[0].IsOnline || !got[0].WasOffline {
		t.Errorf("unexpected first notification %+v", got[0])
	}
	if got[1].ConnectionType != model.Connection3G {
		t.Errorf("unexpected second notification %+v", got[1])
	}
}

func TestMonitorClose(t *testing.T) {
	t.Parallel()

	m := NewMonitor(false)
	called := false
	m.Subscribe(func(model.ReachabilityState) { called = true })
	m.Close()
	m.SetOnline()

	if called {
		t.Error("subscriber notified after Close")
	}
	if m.State().IsOnline {
		t.Error("state changed after Close")
	}
}
