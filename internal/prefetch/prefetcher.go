package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/precache/internal/i18n"
	"github.com/nao1215/precache/internal/model"
)

// DefaultBatchSize is the number of images loaded concurrently.
const DefaultBatchSize = 5

// Progress range covered by image loading.
const (
	progressStart = 90.0
	progressSpan  = 10.0
)

// DefaultExclusions match URLs that must never be cached: authenticated,
// per-user and admin resources.
var DefaultExclusions = []*regexp.Regexp{
	regexp.MustCompile(`/api/auth/`),
	regexp.MustCompile(`/api/bookmarks/`),
	regexp.MustCompile(`/admin/`),
	regexp.MustCompile(`/profil`),
}

// Loader loads one image into the platform cache.
type Loader interface {
	Load(ctx context.Context, url string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string) error

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Prefetcher loads images in bounded batches.
type Prefetcher struct {
	loader     Loader
	batchSize  int
	exclusions []*regexp.Regexp
	logger     *slog.Logger
	printer    *i18n.Printer
}

// Option configures a Prefetcher.
type Option func(*Prefetcher)

// WithBatchSize sets the number of concurrent loads per batch.
func WithBatchSize(n int) Option {
	return func(p *Prefetcher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithExclusions replaces the exclusion patterns.
func WithExclusions(patterns ...*regexp.Regexp) Option {
	return func(p *Prefetcher) {
		p.exclusions = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prefetcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPrinter sets the printer used for progress labels.
func WithPrinter(printer *i18n.Printer) Option {
	return func(p *Prefetcher) {
		if printer != nil {
			p.printer = printer
		}
	}
}

// New returns a Prefetcher using loader.
func New(loader Loader, opts ...Option) *Prefetcher {
	p := &Prefetcher{
		loader:     loader,
		batchSize:  DefaultBatchSize,
		exclusions: DefaultExclusions,
		logger:     slog.Default(),
		printer:    i18n.NewPrinter(""),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result summarizes a prefetch.
type Result struct {
	// Total is the number of URLs attempted.
	Total int

	// Loaded is the number of successful loads.
	Loaded int

	// Failed is the number of failed loads.
	Failed int

	// Excluded is the number of URLs dropped by the exclusion filter.
	Excluded int
}

// Filter removes duplicates, empty strings and excluded URLs. It returns
// the kept URLs and the number excluded.
func (p *Prefetcher) Filter(urls []string) ([]string, int) {
	seen := make(map[string]struct{}, len(urls))
	kept := make([]string, 0, len(urls))
	excluded := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		if p.isExcluded(u) {
			excluded++
			continue
		}
		kept = append(kept, u)
	}
	return kept, excluded
}

func (p *Prefetcher) isExcluded(url string) bool {
	for _, re := range p.exclusions {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// Prefetch loads urls and reports progress from 90 to 100. itemsCached is
// passed through unchanged in every event. The error is non-nil only when
// ctx is cancelled between batches.
func (p *Prefetcher) Prefetch(ctx context.Context, urls []string, itemsCached int, onProgress model.ProgressFunc) (Result, error) {
	emit := func(pct float64, status string) {
		if onProgress != nil {
			onProgress(model.Progress{Percentage: pct, Status: status, ItemsCached: itemsCached})
		}
	}

	kept, excluded := p.Filter(urls)
	result := Result{Total: len(kept), Excluded: excluded}
	if excluded > 0 {
		p.logger.Debug("image urls excluded", slog.Int("count", excluded))
	}

	emit(progressStart, p.printer.Sprintf(i18n.LoadingImages))
	if len(kept) == 0 {
		emit(progressStart+progressSpan, p.printer.Sprintf(i18n.ImageProgress, 0, 0))
		return result, nil
	}

	p.logger.Info("starting image prefetch",
		slog.Int("total", len(kept)),
		slog.Int("batch_size", p.batchSize),
	)

	var mu sync.Mutex
	done := 0
	complete := func(url string, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			result.Failed++
			p.logger.Debug("image load failed",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		} else {
			result.Loaded++
		}
		pct := progressStart + progressSpan*float64(done)/float64(len(kept))
		emit(pct, p.printer.Sprintf(i18n.ImageProgress, done, len(kept)))
	}

	for start := 0; start < len(kept); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("image prefetch cancelled",
				slog.Int("done", done),
				slog.Int("total", len(kept)),
			)
			return result, fmt.Errorf("image prefetch cancelled: %w", err)
		}

		end := min(start+p.batchSize, len(kept))
		var g errgroup.Group
		for _, url := range kept[start:end] {
			g.Go(func() error {
				complete(url, p.loader.Load(ctx, url))
				return nil
			})
		}
		_ = g.Wait()
	}

	p.logger.Info("image prefetch complete",
		slog.Int("loaded", result.Loaded),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
