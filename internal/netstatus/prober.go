package netstatus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/precache/internal/model"
)

// Round-trip thresholds used to derive the effective connection type.
const (
	slow2GRTT = 2000 * time.Millisecond
	twoGRTT   = 1400 * time.Millisecond
	threeGRTT = 270 * time.Millisecond
)

// ClassifyRTT maps a probe round-trip time to a connection type.
func ClassifyRTT(rtt time.Duration) model.ConnectionType {
	switch {
	case rtt <= 0:
		return model.ConnectionUnknown
	case rtt >= slow2GRTT:
		return model.ConnectionSlow2G
	case rtt >= twoGRTT:
		return model.Connection2G
	case rtt >= threeGRTT:
		return model.Connection3G
	default:
		return model.Connection4G
	}
}

// Prober periodically issues a HEAD request and feeds the result into a
// Monitor.
type Prober struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	quality  bool
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithInterval sets the delay between probes.
func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithProbeTimeout bounds a single probe.
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithQuality enables or disables connection type classification.
func WithQuality(enabled bool) ProberOption {
	return func(p *Prober) {
		p.quality = enabled
	}
}

// WithHTTPClient sets the HTTP client used for probes.
func WithHTTPClient(client *http.Client) ProberOption {
	return func(p *Prober) {
		if client != nil {
			p.client = client
		}
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProber returns a Prober targeting url.
func NewProber(url string, opts ...ProberOption) *Prober {
	p := &Prober{
		url:      url,
		interval: 30 * time.Second,
		timeout:  5 * time.Second,
		quality:  true,
		client:   http.DefaultClient,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe issues a single request and returns the round-trip time. Any HTTP
// response counts as reachable; only transport errors mean offline.
func (p *Prober) Probe(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create probe request: %w", err)
	}

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return p.now().Sub(start), nil
}

// Update probes once and applies the result to m. It returns whether the
// target was reachable.
func (p *Prober) Update(ctx context.Context, m *Monitor) bool {
	rtt, err := p.Probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return m.IsOnline()
		}
		p.logger.Debug("reachability probe failed", slog.String("error", err.Error()))
		m.SetOffline()
		return false
	}
	m.SetOnline()
	if p.quality {
		m.SetConnectionType(ClassifyRTT(rtt))
	}
	p.logger.Debug("reachability probe ok", slog.Duration("rtt", rtt))
	return true
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context, m *Monitor) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Update(ctx, m)
		}
	}
}
