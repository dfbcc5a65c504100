package netstatus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/precache/internal/model"
)

// DefaultGraceWindow is how long WasOffline stays set after reconnecting.
const DefaultGraceWindow = 4 * time.Second

// Option configures a Monitor.
type Option func(*Monitor)

// WithGraceWindow sets the recovery grace window.
func WithGraceWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.grace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Monitor holds the reachability state. It is safe for concurrent use.
type Monitor struct {
	grace  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	state  model.ReachabilityState
	timer  *time.Timer
	gen    uint64
	subs   map[uint64]func(model.ReachabilityState)
	nextID uint64
	closed bool

	// emitMu serializes notifications so subscribers see states in order.
	emitMu sync.Mutex
}

// NewMonitor returns a Monitor whose initial online flag is online.
func NewMonitor(online bool, opts ...Option) *Monitor {
	m := &Monitor{
		grace:  DefaultGraceWindow,
		logger: slog.Default(),
		state: model.ReachabilityState{
			IsOnline:       online,
			ConnectionType: model.ConnectionUnknown,
		},
		subs: map[uint64]func(model.ReachabilityState){},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Monitor) State() model.ReachabilityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOnline reports the current online flag.
func (m *Monitor) IsOnline() bool {
	return m.State().IsOnline
}

// SetOffline records an offline event. WasOffline becomes true immediately
// and any pending grace timer is cancelled.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	changed := m.state.IsOnline || !m.state.WasOffline
	m.state.IsOnline = false
	m.state.WasOffline = true
	state := m.state
	m.mu.Unlock()

	if changed {
		m.logger.Info("network offline")
		m.notify(state)
	}
}

// SetOnline records an online event. WasOffline is cleared once the grace
// window elapses. Online events while already online and inside the
// window do not restart it.
func (m *Monitor) SetOnline() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.state.IsOnline {
		m.mu.Unlock()
		return
	}
	m.state.IsOnline = true
	if m.state.WasOffline {
		m.gen++
		gen := m.gen
		m.timer = time.AfterFunc(m.grace, func() { m.clearWasOffline(gen) })
	}
	state := m.state
	m.mu.Unlock()

	m.logger.Info("network online", slog.Bool("recovering", state.WasOffline))
	m.notify(state)
}

// SetConnectionType records the connection quality.
func (m *Monitor) SetConnectionType(ct model.ConnectionType) {
	if ct == "" {
		ct = model.ConnectionUnknown
	}
	m.mu.Lock()
	if m.closed || m.state.ConnectionType == ct {
		m.mu.Unlock()
		return
	}
	m.state.ConnectionType = ct
	state := m.state
	m.mu.Unlock()

	m.logger.Debug("connection type changed", slog.String("type", string(ct)))
	m.notify(state)
}

// Subscribe registers fn for state changes. The returned function removes
// the registration.
func (m *Monitor) Subscribe(fn func(model.ReachabilityState)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Close stops the grace timer and drops all subscribers.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimerLocked()
	m.subs = map[uint64]func(model.ReachabilityState){}
}

func (m *Monitor) clearWasOffline(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen || !m.state.IsOnline {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.state.WasOffline = false
	state := m.state
	m.mu.Unlock()

	m.notify(state)
}

func (m *Monitor) stopTimerLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) notify(state model.ReachabilityState) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	subs := make([]func(model.ReachabilityState), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
