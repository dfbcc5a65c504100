package precache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/precache/internal/i18n"
	plog "github.com/nao1215/precache/internal/log"
	"github.com/nao1215/precache/internal/model"
	"github.com/nao1215/precache/internal/pipeline"
	"github.com/nao1215/precache/internal/prefetch"
)

// Default timings.
const (
	DefaultAutoDismiss = 5 * time.Second
	DefaultSettleDelay = 1500 * time.Millisecond
)

// StatusStore persists the PreCacheStatus record.
type StatusStore interface {
	Read(ctx context.Context) (*model.PreCacheStatus, error)
	Write(ctx context.Context, status model.PreCacheStatus) error
	Clear(ctx context.Context) error
}

// Reachability reports whether the network is currently reachable.
type Reachability interface {
	IsOnline() bool
}

// Runner executes the fetch-and-store pipeline.
type Runner interface {
	Execute(ctx context.Context, onProgress model.ProgressFunc) (*pipeline.Result, error)
}

// ImagePrefetcher warms the image cache.
type ImagePrefetcher interface {
	Prefetch(ctx context.Context, urls []string, itemsCached int, onProgress model.ProgressFunc) (prefetch.Result, error)
}

// ImageSource lists the image URLs referenced by articles.
type ImageSource interface {
	Images(articles []model.Article) []string
}

// CacheClearer deletes every named response cache.
type CacheClearer interface {
	DeleteAll(ctx context.Context) (int, error)
}

// ImageClearer deletes every cached image.
type ImageClearer interface {
	Clear() (int, error)
}

// Components are the collaborators an Orchestrator cannot run without.
type Components struct {
	Status     StatusStore
	Pipeline   Runner
	Prefetcher ImagePrefetcher
	Images     ImageSource
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPrinter sets the printer for user-facing messages.
func WithPrinter(printer *i18n.Printer) Option {
	return func(o *Orchestrator) {
		if printer != nil {
			o.printer = printer
		}
	}
}

// WithReachability sets the reachability source consulted by Start.
func WithReachability(r Reachability) Option {
	return func(o *Orchestrator) {
		o.reach = r
	}
}

// WithLocker sets a cross-process lock held for the duration of a run.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// WithCacheClearer sets the response caches deleted by ClearCache.
func WithCacheClearer(c CacheClearer) Option {
	return func(o *Orchestrator) {
		o.caches = c
	}
}

// WithImageClearer sets the image cache deleted by ClearCache.
func WithImageClearer(c ImageClearer) Option {
	return func(o *Orchestrator) {
		o.images = c
	}
}

// WithAlwaysReprime makes every check report that a run is needed, even
// after a completed run.
func WithAlwaysReprime(always bool) Option {
	return func(o *Orchestrator) {
		o.alwaysReprime = always
	}
}

// WithAutoDismiss sets the delay after which a complete run returns to idle.
func WithAutoDismiss(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.autoDismiss = d
		}
	}
}

// WithSettleDelay sets the delay AutoStart waits before starting.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.settleDelay = d
		}
	}
}

// Orchestrator runs pre-cache runs and tracks their state. It is safe for
// concurrent use.
type Orchestrator struct {
	status     StatusStore
	pipeline   Runner
	prefetcher ImagePrefetcher
	source     ImageSource

	reach         Reachability
	locker        Locker
	caches        CacheClearer
	images        ImageClearer
	logger        *slog.Logger
	printer       *i18n.Printer
	sampler       *plog.ProgressSampler
	alwaysReprime bool
	autoDismiss   time.Duration
	settleDelay   time.Duration
	now           func() time.Time

	mu         sync.Mutex
	state      State
	firstVisit bool
	progress   model.Progress
	err        error
	runID      string
	hidden     bool
	clearing   bool
	gen        uint64
	timer      *time.Timer
	subs       map[uint64]func(Snapshot)
	nextSub    uint64
	closed     bool

	// emitMu keeps notifications in order.
	emitMu sync.Mutex
}

// New returns an Orchestrator in the idle state.
func New(c Components, opts ...Option) (*Orchestrator, error) {
	switch {
	case c.Status == nil:
		return nil, fmt.Errorf("%w: status store", ErrMissingComponent)
	case c.Pipeline == nil:
		return nil, fmt.Errorf("%w: pipeline", ErrMissingComponent)
	case c.Prefetcher == nil:
		return nil, fmt.Errorf("%w: image prefetcher", ErrMissingComponent)
	case c.Images == nil:
		return nil, fmt.Errorf("%w: image source", ErrMissingComponent)
	}

	o := &Orchestrator{
		status:      c.Status,
		pipeline:    c.Pipeline,
		prefetcher:  c.Prefetcher,
		source:      c.Images,
		logger:      slog.Default(),
		printer:     i18n.NewPrinter(""),
		sampler:     plog.NewProgressSampler(10),
		autoDismiss: DefaultAutoDismiss,
		settleDelay: DefaultSettleDelay,
		now:         time.Now,
		state:       StateIdle,
		firstVisit:  true,
		subs:        map[uint64]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RequireOnline returns a pipeline precondition that fails with ErrOffline
// when r reports the network as unreachable.
func RequireOnline(r Reachability) pipeline.Precondition {
	return func(context.Context) error {
		if r != nil && !r.IsOnline() {
			return ErrOffline
		}
		return nil
	}
}

// Check reads the persisted status and decides whether a run is needed.
// An unreadable status counts as absent. Only an idle orchestrator passes
// through the checking state; a complete or failed one keeps its state
// until it is dismissed.
func (o *Orchestrator) Check(ctx context.Context) bool {
	o.mu.Lock()
	if o.state == StateRunning {
		first := o.firstVisit
		o.mu.Unlock()
		return first
	}
	entered := o.state == StateIdle
	if entered {
		o.state = StateChecking
	}
	o.mu.Unlock()
	if entered {
		o.notify()
	}

	status, err := o.status.Read(ctx)
	if err != nil {
		o.logger.Warn("failed to read pre-cache status", slog.String("error", err.Error()))
		status = nil
	}
	first := o.alwaysReprime || !status.IsCurrent()

	o.mu.Lock()
	o.firstVisit = first
	if o.state == StateChecking {
		o.state = StateIdle
	}
	o.mu.Unlock()
	o.notify()

	o.logger.Debug("pre-cache status checked", slog.Bool("first_visit", first))
	return first
}

// IsFirstVisit returns the decision of the last Check or run.
func (o *Orchestrator) IsFirstVisit() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.firstVisit
}

// CacheStatus returns the persisted status, or nil when it is absent or
// unreadable.
func (o *Orchestrator) CacheStatus(ctx context.Context) *model.PreCacheStatus {
	status, err := o.status.Read(ctx)
	if err != nil {
		o.logger.Warn("failed to read pre-cache status", slog.String("error", err.Error()))
		return nil
	}
	return status
}

// Start performs a run and blocks until it ends. It is a no-op returning
// nil while a run is in progress. When the network is unreachable it
// returns ErrOffline, moves to the failed state and leaves the persisted
// status untouched. Other run-level errors are persisted and returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.clearing {
		o.mu.Unlock()
		o.logger.Warn("pre-cache refused", slog.String("reason", "cache clear in progress"))
		return ErrRunInProgress
	}
	if o.state == StateRunning {
		o.mu.Unlock()
		o.logger.Debug("start ignored, run already in progress")
		return nil
	}
	if o.reach != nil && !o.reach.IsOnline() {
		o.stopTimerLocked()
		o.state = StateFailed
		o.err = ErrOffline
		o.hidden = false
		o.mu.Unlock()
		o.logger.Warn("pre-cache refused", slog.String("reason", "offline"))
		o.notify()
		return ErrOffline
	}

	if o.locker != nil {
		ok, err := o.locker.TryLock()
		if err != nil {
			o.mu.Unlock()
			return fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			o.mu.Unlock()
			o.logger.Warn("pre-cache refused", slog.String("reason", "locked by another process"))
			return ErrRunInProgress
		}
	}

	runID := uuid.NewString()
	o.stopTimerLocked()
	o.state = StateRunning
	o.err = nil
	o.hidden = false
	o.runID = runID
	o.progress = model.Progress{Percentage: 0, Status: o.printer.Sprintf(i18n.Starting)}
	o.mu.Unlock()
	o.notify()

	if o.locker != nil {
		defer func() {
			if err := o.locker.Unlock(); err != nil {
				o.logger.Warn("failed to release run lock", slog.String("error", err.Error()))
			}
		}()
	}

	logger := o.logger.With(slog.String("run_id", runID))
	o.sampler.Reset()
	logger.Info("pre-cache run started")

	totalItems, totalImages, err := o.run(ctx, logger)
	if err != nil {
		return o.fail(ctx, logger, runID, err)
	}
	return o.succeed(ctx, logger, runID, totalItems, totalImages)
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger) (int, int, error) {
	forward := func(p model.Progress) {
		if o.sampler.ShouldLog(p.Percentage, stageOf(p.Percentage)) {
			logger.Info("pre-cache progress",
				slog.Float64("percentage", p.Percentage),
				slog.String("status", p.Status),
				slog.Int("items_cached", p.ItemsCached),
			)
		}
		o.setProgress(p)
	}

	res, err := o.pipeline.Execute(ctx, forward)
	if err != nil {
		return 0, 0, err
	}
	if failed := res.Failed(); len(failed) > 0 {
		logger.Warn("some stages failed", slog.Any("stages", failed))
	}

	urls := o.source.Images(res.Articles)
	img, err := o.prefetcher.Prefetch(ctx, urls, res.TotalItems, forward)
	if err != nil {
		return 0, 0, err
	}
	if img.Failed > 0 {
		logger.Info("some images failed to load", slog.Int("failed", img.Failed))
	}

	forward(model.Progress{
		Percentage:  100,
		Status:      o.printer.Sprintf(i18n.Done),
		ItemsCached: res.TotalItems,
	})
	return res.TotalItems, img.Total, nil
}

// stageOf buckets a percentage into the stage that emits it, for log
// sampling.
func stageOf(pct float64) string {
	switch {
	case pct < 10:
		return "categories"
	case pct < 40:
		return "newest"
	case pct < 70:
		return "popular"
	case pct < 85:
		return "featured"
	case pct < 90:
		return "details"
	case pct < 100:
		return "images"
	default:
		return "done"
	}
}

func (o *Orchestrator) succeed(ctx context.Context, logger *slog.Logger, runID string, items, images int) error {
	now := o.now()
	status := model.PreCacheStatus{
		Version:     model.StatusVersion,
		Timestamp:   now,
		IsComplete:  true,
		TotalItems:  items,
		TotalImages: images,
		CompletedAt: &now,
		RunID:       runID,
	}
	if err := o.status.Write(context.WithoutCancel(ctx), status); err != nil {
		return o.fail(ctx, logger, runID, fmt.Errorf("%w: %w", ErrStatusPersist, err))
	}

	o.mu.Lock()
	o.firstVisit = o.alwaysReprime
	o.err = nil
	if o.hidden {
		o.state = StateIdle
		o.hidden = false
	} else {
		o.state = StateComplete
		o.gen++
		gen := o.gen
		o.timer = time.AfterFunc(o.autoDismiss, func() { o.dismissIf(gen) })
	}
	o.mu.Unlock()
	o.notify()

	logger.Info("pre-cache run complete",
		slog.Int("total_items", items),
		slog.Int("total_images", images),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, runID string, runErr error) error {
	now := o.now()
	status := model.PreCacheStatus{
		Version:    model.StatusVersion,
		Timestamp:  now,
		IsComplete: false,
		Error:      o.message(runErr),
		FailedAt:   &now,
		RunID:      runID,
	}
	if err := o.status.Write(context.WithoutCancel(ctx), status); err != nil {
		logger.Error("failed to persist failure status", slog.String("error", err.Error()))
	}

	o.mu.Lock()
	o.err = runErr
	if o.hidden {
		o.state = StateIdle
		o.hidden = false
	} else {
		o.state = StateFailed
	}
	o.mu.Unlock()
	o.notify()

	logger.Error("pre-cache run failed", slog.String("error", runErr.Error()))
	return runErr
}

// Retry clears the last error and starts a new run.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	o.err = nil
	o.mu.Unlock()
	return o.Start(ctx)
}

// Dismiss returns a complete or failed run to idle. During a run it only
// hides the run; the run continues and lands in idle when it ends.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	switch o.state {
	case StateComplete, StateFailed:
		o.stopTimerLocked()
		o.state = StateIdle
		o.err = nil
	case StateRunning:
		o.hidden = true
	default:
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) dismissIf(gen uint64) {
	o.mu.Lock()
	if o.gen != gen || o.state != StateComplete {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.state = StateIdle
	o.mu.Unlock()
	o.notify()
}

// AutoStart schedules Start after the settle delay when a run is needed and
// none is in progress. The returned function cancels the scheduled start.
func (o *Orchestrator) AutoStart(ctx context.Context) (cancel func()) {
	o.mu.Lock()
	needed := o.firstVisit && o.state != StateRunning && !o.closed
	o.mu.Unlock()
	if !needed {
		return func() {}
	}

	t := time.AfterFunc(o.settleDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := o.Start(ctx); err != nil {
			o.logger.Debug("auto-started run ended with error", slog.String("error", err.Error()))
		}
	})
	return func() { t.Stop() }
}

// ClearCache deletes every response cache, the image cache and the status
// record. It refuses while a run or another clear is in progress, here or
// in another process holding the run lock. Start is refused until it ends.
func (o *Orchestrator) ClearCache(ctx context.Context) ClearResult {
	o.mu.Lock()
	if o.state == StateRunning || o.clearing {
		o.mu.Unlock()
		return ClearResult{Err: ErrRunInProgress}
	}
	if o.locker != nil {
		ok, err := o.locker.TryLock()
		if err != nil {
			o.mu.Unlock()
			return ClearResult{Err: fmt.Errorf("failed to acquire run lock: %w", err)}
		}
		if !ok {
			o.mu.Unlock()
			return ClearResult{Err: ErrRunInProgress}
		}
	}
	o.clearing = true
	o.mu.Unlock()

	defer func() {
		if o.locker != nil {
			if err := o.locker.Unlock(); err != nil {
				o.logger.Warn("failed to release run lock", slog.String("error", err.Error()))
			}
		}
		o.mu.Lock()
		o.clearing = false
		o.mu.Unlock()
	}()

	var errs []error
	if o.caches != nil {
		n, err := o.caches.DeleteAll(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to delete caches: %w", err))
		} else {
			o.logger.Info("response caches deleted", slog.Int("count", n))
		}
	}
	if o.images != nil {
		n, err := o.images.Clear()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to clear image cache: %w", err))
		} else {
			o.logger.Info("image cache cleared", slog.Int("count", n))
		}
	}
	if err := o.status.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear status: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return ClearResult{Err: err}
	}

	o.mu.Lock()
	o.firstVisit = true
	o.mu.Unlock()
	o.notify()
	return ClearResult{Success: true}
}

// Refresh clears every cache and starts a new run.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if res := o.ClearCache(ctx); !res.Success {
		return res.Err
	}
	return o.Start(ctx)
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn is called synchronously and must not call back into the
// Orchestrator.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Close stops pending timers and drops subscribers. A run in progress is
// not interrupted.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.stopTimerLocked()
	o.subs = map[uint64]func(Snapshot){}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        o.state,
		IsFirstVisit: o.firstVisit,
		IsPreCaching: o.state == StateRunning && !o.hidden,
		Progress:     o.progress,
		IsComplete:   o.state == StateComplete,
		Err:          o.err,
		RunID:        o.runID,
	}
	if o.err != nil {
		s.ErrorMessage = o.message(o.err)
	}
	return s
}

func (o *Orchestrator) message(err error) string {
	if errors.Is(err, ErrOffline) {
		return o.printer.Sprintf(i18n.Offline)
	}
	return err.Error()
}

func (o *Orchestrator) setProgress(p model.Progress) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) stopTimerLocked() {
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) notify() {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	snap := o.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
