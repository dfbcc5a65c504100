package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/precache/internal/i18n"
	"github.com/nao1215/precache/internal/model"
)

// Precondition is checked once before the first stage.
type Precondition func(ctx context.Context) error

// Pipeline runs stages in order against one API base URL.
type Pipeline struct {
	baseURL      string
	fetcher      *Fetcher
	stages       []Stage
	logger       *slog.Logger
	printer      *i18n.Printer
	precondition Precondition
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPrinter sets the printer used for progress labels.
func WithPrinter(printer *i18n.Printer) Option {
	return func(p *Pipeline) {
		p.printer = printer
	}
}

// WithPrecondition sets a check that must pass before any stage runs.
func WithPrecondition(check Precondition) Option {
	return func(p *Pipeline) {
		p.precondition = check
	}
}

// WithStages replaces the stage list.
func WithStages(stages ...Stage) Option {
	return func(p *Pipeline) {
		p.stages = stages
	}
}

// New creates a Pipeline with the default stages.
func New(baseURL string, fetcher *Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		baseURL: baseURL,
		fetcher: fetcher,
		stages:  DefaultStages(DefaultArticleLimit, DefaultDetailLimit),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.printer == nil {
		p.printer = i18n.NewPrinter("")
	}
	return p
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Result is the outcome of a pipeline execution.
type Result struct {
	// TotalItems is the number of unique items decoded by successful stages.
	TotalItems int

	// Articles are the unique articles in first-seen order.
	Articles []model.Article

	// Stages holds one entry per stage that was attempted.
	Stages []StageResult
}

// Failed returns the names of the stages that failed.
func (r *Result) Failed() []string {
	var names []string
	for _, s := range r.Stages {
		if s.Err != nil {
			names = append(names, s.Name)
		}
	}
	return names
}

// Execute runs all stages and reports progress to onProgress, which may be
// nil. Stage failures are logged and skipped. The returned error is non-nil
// only when the precondition fails, ctx is cancelled between stages, or a
// response could not be written to the cache; the partial result is
// returned alongside it.
func (p *Pipeline) Execute(ctx context.Context, onProgress model.ProgressFunc) (*Result, error) {
	emit := func(pct float64, status string, items int) {
		if onProgress != nil {
			onProgress(model.Progress{Percentage: pct, Status: status, ItemsCached: items})
		}
	}

	result := &Result{}
	if p.precondition != nil {
		if err := p.precondition(ctx); err != nil {
			p.logger.Warn("pipeline precondition failed", slog.String("error", err.Error()))
			return result, err
		}
	}

	run := &Run{
		BaseURL: p.baseURL,
		Fetcher: p.fetcher,
		Items:   NewAccumulator(),
		Printer: p.printer,
		Logger:  p.logger,
	}
	finish := func() {
		result.TotalItems = run.Items.Count()
		result.Articles = run.Items.Articles()
	}

	for _, stage := range p.stages {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				slog.String("stage", stage.Name()),
				slog.String("reason", ctx.Err().Error()),
			)
			finish()
			return result, fmt.Errorf("pipeline cancelled before %s: %w", stage.Name(), ctx.Err())
		default:
		}

		w := stage.Weight()
		emit(w.Start, stage.Label(p.printer), run.Items.Count())
		p.logger.Info("executing stage", slog.String("stage", stage.Name()))

		start := time.Now()
		summary, err := stage.Do(ctx, run)
		result.Stages = append(result.Stages, StageResult{
			Name:     stage.Name(),
			Err:      err,
			Duration: time.Since(start),
		})

		if err != nil {
			if errors.Is(err, ErrStorage) {
				p.logger.Error("stage failed to store response",
					slog.String("stage", stage.Name()),
					slog.String("error", err.Error()),
				)
				finish()
				return result, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				finish()
				return result, fmt.Errorf("pipeline cancelled during %s: %w", stage.Name(), ctxErr)
			}
			p.logger.Warn("stage failed",
				slog.String("stage", stage.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		emit(w.End, summary, run.Items.Count())
		p.logger.Debug("stage completed",
			slog.String("stage", stage.Name()),
			slog.Int("items_cached", run.Items.Count()),
		)
	}

	finish()
	return result, nil
}

// StageNames returns the names of all stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name()
	}
	return names
}
