package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/precache/internal/cachestore"
	"github.com/nao1215/precache/internal/config"
	"github.com/nao1215/precache/internal/extract"
	"github.com/nao1215/precache/internal/i18n"
	"github.com/nao1215/precache/internal/imagecache"
	plog "github.com/nao1215/precache/internal/log"
	"github.com/nao1215/precache/internal/netstatus"
	"github.com/nao1215/precache/internal/pipeline"
	"github.com/nao1215/precache/internal/precache"
	"github.com/nao1215/precache/internal/prefetch"
)

// app holds everything a subcommand needs. Fields are nil until the
// matching open call succeeds.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	printer *i18n.Printer

	store   *cachestore.Store
	images  *imagecache.Cache
	monitor *netstatus.Monitor
	prober  *netstatus.Prober
	orch    *precache.Orchestrator
}

// loadApp reads the configuration and sets up logging.
func loadApp(cmd *cobra.Command) (*app, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg.Verbose = getVerboseFlag(cmd)

	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}
	logger := plog.New(cmd.ErrOrStderr(), plog.Options{
		Verbose: cfg.Verbose,
		Format:  plog.Format(format),
	})
	slog.SetDefault(logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		printer: i18n.NewPrinter(cfg.Language),
	}, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// openStores opens the response store and the image cache.
func (a *app) openStores() error {
	store, err := cachestore.Open(a.cfg.StorePath(), cachestore.Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxEntries:        a.cfg.MaxCacheEntries,
	})
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	a.store = store
	a.logger.Debug("cache store opened", slog.String("path", store.Path()))

	images, err := imagecache.Open(a.cfg.ImageCachePath(), int64(a.cfg.ImageCacheMax))
	if err != nil {
		return fmt.Errorf("failed to open image cache: %w", err)
	}
	a.images = images
	return nil
}

// openNetwork creates the reachability monitor and its prober. The monitor
// starts offline until the first probe says otherwise.
func (a *app) openNetwork() {
	a.monitor = netstatus.NewMonitor(false,
		netstatus.WithGraceWindow(a.cfg.GraceWindow),
		netstatus.WithLogger(a.logger),
	)
	a.prober = netstatus.NewProber(a.cfg.EffectiveProbeURL(),
		netstatus.WithInterval(a.cfg.ProbeInterval),
		netstatus.WithQuality(a.cfg.ProbeQuality),
		netstatus.WithProberLogger(a.logger),
	)
}

// openOrchestrator wires the pipeline, the image prefetcher and the
// orchestrator on top of the opened stores and network monitor.
func (a *app) openOrchestrator(ctx context.Context) error {
	if a.store == nil || a.images == nil || a.monitor == nil {
		return errors.New("stores and network must be opened first")
	}

	cache, err := a.store.Open(ctx, a.cfg.CacheName)
	if err != nil {
		return fmt.Errorf("failed to open cache %q: %w", a.cfg.CacheName, err)
	}
	fetcher := pipeline.NewFetcher(cache,
		pipeline.WithRequestTimeout(a.cfg.RequestTimeout),
		pipeline.WithMaxBodySize(int64(a.cfg.MaxBodySize)),
		pipeline.WithUserAgent(a.cfg.UserAgent),
		pipeline.WithFetcherLogger(a.logger),
	)
	runner := pipeline.New(a.cfg.APIBaseURL, fetcher,
		pipeline.WithLogger(a.logger),
		pipeline.WithPrinter(a.printer),
		pipeline.WithPrecondition(precache.RequireOnline(a.monitor)),
		pipeline.WithStages(pipeline.DefaultStages(a.cfg.ArticleLimit, a.cfg.DetailLimit)...),
	)

	extractor, err := extract.New(a.cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("failed to create image extractor: %w", err)
	}
	loader := prefetch.NewHTTPLoader(a.images,
		prefetch.WithImageTimeout(a.cfg.RequestTimeout),
		prefetch.WithLoaderUserAgent(a.cfg.UserAgent),
		prefetch.WithLoaderLogger(a.logger),
	)
	prefetcher := prefetch.New(loader,
		prefetch.WithBatchSize(a.cfg.ImageBatchSize),
		prefetch.WithLogger(a.logger),
		prefetch.WithPrinter(a.printer),
	)

	lock, err := precache.NewFileLock(a.cfg.DataDir)
	if err != nil {
		return err
	}

	orch, err := precache.New(precache.Components{
		Status:     cachestore.NewStatusRecord(a.store),
		Pipeline:   runner,
		Prefetcher: prefetcher,
		Images:     extractor,
	},
		precache.WithLogger(a.logger),
		precache.WithPrinter(a.printer),
		precache.WithReachability(a.monitor),
		precache.WithLocker(lock),
		precache.WithCacheClearer(a.store),
		precache.WithImageClearer(a.images),
		precache.WithAlwaysReprime(a.cfg.AlwaysReprime),
		precache.WithAutoDismiss(a.cfg.AutoDismiss),
		precache.WithSettleDelay(a.cfg.SettleDelay),
	)
	if err != nil {
		return err
	}
	a.orch = orch
	return nil
}

// open opens everything a run needs.
func (a *app) open(ctx context.Context) error {
	if err := a.openStores(); err != nil {
		return err
	}
	a.openNetwork()
	return a.openOrchestrator(ctx)
}

// Close releases everything that was opened, in reverse order.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.monitor != nil {
		a.monitor.Close()
	}
	if a.images != nil {
		if err := a.images.Close(); err != nil {
			a.logger.Warn("failed to close image cache", slog.String("error", err.Error()))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close cache store", slog.String("error", err.Error()))
		}
	}
}
