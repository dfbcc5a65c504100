package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nao1215/precache/internal/i18n"
	"github.com/nao1215/precache/internal/model"
	"github.com/nao1215/precache/internal/precache"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Track connectivity and pre-cache when needed",
		Long: `Watch probes the API periodically and prints a notice when the
connection drops or comes back. When nothing has been cached yet, a run
starts shortly after startup and again after connectivity returns.

Stop with Ctrl+C.`,
		RunE: runWatchCmd,
	}
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := a.open(ctx); err != nil {
		a.Close()
		return err
	}
	defer a.Close()

	w := newWatcher(a, cmd.OutOrStdout())
	return w.run(ctx)
}

// watcher turns monitor and orchestrator changes into banner lines.
type watcher struct {
	a   *app
	out io.Writer

	mu        sync.Mutex
	lastState precache.State
	cancels   []func()
}

func newWatcher(a *app, out io.Writer) *watcher {
	return &watcher{a: a, out: out}
}

func (w *watcher) run(ctx context.Context) error {
	a := w.a
	a.prober.Update(ctx, a.monitor)
	if !a.monitor.IsOnline() {
		w.banner(a.printer.Sprintf(i18n.BannerOffline))
	}

	unsubNet := a.monitor.Subscribe(func(s model.ReachabilityState) {
		w.onReachability(ctx, s)
	})
	defer unsubNet()
	unsubRun := a.orch.Subscribe(w.onSnapshot)
	defer unsubRun()

	a.orch.Check(ctx)
	w.autoStart(ctx)

	go a.prober.Run(ctx, a.monitor)

	<-ctx.Done()
	w.mu.Lock()
	for _, c := range w.cancels {
		c()
	}
	w.mu.Unlock()
	a.logger.Debug("watch stopped", slog.String("reason", ctx.Err().Error()))
	return nil
}

func (w *watcher) autoStart(ctx context.Context) {
	cancel := w.a.orch.AutoStart(ctx)
	w.mu.Lock()
	w.cancels = append(w.cancels, cancel)
	w.mu.Unlock()
}

func (w *watcher) onReachability(ctx context.Context, s model.ReachabilityState) {
	p := w.a.printer
	switch {
	case !s.IsOnline:
		w.banner(p.Sprintf(i18n.BannerOffline))
	case s.Recovering():
		w.banner(p.Sprintf(i18n.BannerRestored))
		if w.a.orch.IsFirstVisit() {
			w.autoStart(ctx)
		}
	}
	if s.IsSlow() {
		w.a.logger.Info("slow connection", slog.String("type", string(s.ConnectionType)))
	}
}

func (w *watcher) onSnapshot(s precache.Snapshot) {
	w.mu.Lock()
	changed := s.State != w.lastState
	w.lastState = s.State
	w.mu.Unlock()
	if !changed {
		return
	}

	p := w.a.printer
	switch s.State {
	case precache.StateRunning:
		w.banner(s.Progress.Status)
	case precache.StateComplete:
		w.banner(p.Sprintf(i18n.BannerSynced, s.Progress.ItemsCached))
	case precache.StateFailed:
		w.banner(p.Sprintf(i18n.BannerFailed, s.ErrorMessage))
	}
}

func (w *watcher) banner(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, msg)
}
