package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/precache/internal/i18n"
	"github.com/nao1215/precache/internal/precache"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Pre-cache the news API once",
		Long: `Run probes the API, then stores categories, article lists, article
details and images for offline reading.

The run is skipped when a previous run completed, unless --force or
--refresh is given.

Examples:
  # Pre-cache on first use only
  precache run

  # Pre-cache again on top of what is stored
  precache run --force

  # Delete everything that is stored, then pre-cache
  precache run --refresh`,
		RunE: runRunCmd,
	}

	cmd.Flags().BoolP("force", "f", false, "Run even if a previous run completed")
	cmd.Flags().BoolP("refresh", "r", false, "Clear all caches before running")

	return cmd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	refresh, err := cmd.Flags().GetBool("refresh")
	if err != nil {
		return err
	}

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

	return runOnce(ctx, a, cmd.OutOrStdout(), force, refresh)
}

// runOnce performs a single run and prints its progress to out.
func runOnce(ctx context.Context, a *app, out io.Writer, force, refresh bool) error {
	a.prober.Update(ctx, a.monitor)

	if !refresh {
		if first := a.orch.Check(ctx); !first && !force {
			if status := a.orch.CacheStatus(ctx); status != nil {
				fmt.Fprintf(out, "Already cached: %d items, %d images (completed %s).\n",
					status.TotalItems, status.TotalImages, formatCompleted(status.CompletedAt))
			}
			fmt.Fprintln(out, "Use --force to run again or --refresh to start over.")
			return nil
		}
	}

	progress := newProgressPrinter(out)
	unsubscribe := a.orch.Subscribe(progress.print)
	defer unsubscribe()

	var err error
	if refresh {
		err = a.orch.Refresh(ctx)
	} else {
		err = a.orch.Start(ctx)
	}
	if err != nil {
		if errors.Is(err, precache.ErrOffline) {
			return errors.New(a.printer.Sprintf(i18n.Offline))
		}
		return fmt.Errorf("pre-cache failed: %w", err)
	}

	status := a.orch.CacheStatus(ctx)
	if status == nil {
		return errors.New("pre-cache finished but no status was recorded")
	}
	fmt.Fprintf(out, "Cached %d items and %d images.\n", status.TotalItems, status.TotalImages)
	return nil
}

func formatCompleted(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// progressPrinter prints one line per distinct progress event.
type progressPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) print(s precache.Snapshot) {
	if !s.IsPreCaching && !s.IsComplete {
		return
	}
	line := fmt.Sprintf("[%3.0f%%] %s", s.Progress.Percentage, s.Progress.Status)

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}
