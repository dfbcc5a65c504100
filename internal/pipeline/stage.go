package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/precache/internal/i18n"
	"github.com/nao1215/precache/internal/model"
)

// API endpoint paths relative to the base URL.
const (
	PathCategories = "/api/kategori"
	PathArticles   = "/api/berita"
	PathPopular    = "/api/berita/populer"
	PathFeatured   = "/api/berita/featured"
)

// Default request sizes.
const (
	DefaultArticleLimit = 30
	DefaultDetailLimit  = 10
)

// Weight is the progress range a stage covers.
type Weight struct {
	Start float64
	End   float64
}

// Run is the per-execution state handed to every stage.
type Run struct {
	BaseURL string
	Fetcher *Fetcher
	Items   *Accumulator
	Printer *i18n.Printer
	Logger  *slog.Logger
}

// URL joins path (which may carry a query) onto the base URL.
func (r *Run) URL(path string) string {
	return strings.TrimRight(r.BaseURL, "/") + path
}

// Stage is one step of the pipeline.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string

	// Weight is the progress range of the stage.
	Weight() Weight

	// Label is the progress status shown before the stage starts.
	Label(p *i18n.Printer) string

	// Do performs the stage and returns the progress status to show when it
	// succeeds. A returned error marks the stage as failed.
	Do(ctx context.Context, run *Run) (string, error)
}

// ListStage fetches one list endpoint, decodes its items and stores the
// response.
type ListStage struct {
	name    string
	path    string
	kind    model.ItemKind
	weight  Weight
	label   string
	summary string
}

// NewListStage returns a ListStage. label and summary are i18n message
// keys; summary receives the number of decoded items.
func NewListStage(name, path string, kind model.ItemKind, weight Weight, label, summary string) *ListStage {
	return &ListStage{
		name:    name,
		path:    path,
		kind:    kind,
		weight:  weight,
		label:   label,
		summary: summary,
	}
}

// Name implements Stage.
func (s *ListStage) Name() string { return s.name }

// Weight implements Stage.
func (s *ListStage) Weight() Weight { return s.weight }

// Label implements Stage.
func (s *ListStage) Label(p *i18n.Printer) string { return p.Sprintf(s.label) }

// Path returns the request path including any query.
func (s *ListStage) Path() string { return s.path }

// Do implements Stage.
func (s *ListStage) Do(ctx context.Context, run *Run) (string, error) {
	resp, err := run.Fetcher.Get(ctx, run.URL(s.path))
	if err != nil {
		return "", err
	}
	items, err := decodeCopy(resp.Body, s.kind)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", resp.URL, err)
	}
	if err := run.Fetcher.Store(ctx, resp); err != nil {
		return "", err
	}
	added := run.Items.Add(items)
	run.Logger.Debug("stage items decoded",
		slog.String("stage", s.name),
		slog.Int("items", len(items)),
		slog.Int("new", added),
	)
	return run.Printer.Sprintf(s.summary, len(items)), nil
}

// DetailStage stores the detail response of the first articles collected
// by earlier stages. Requests are issued one at a time; a failed detail is
// skipped.
type DetailStage struct {
	limit  int
	weight Weight
}

// NewDetailStage returns a DetailStage fetching at most limit details.
func NewDetailStage(limit int, weight Weight) *DetailStage {
	if limit < 0 {
		limit = 0
	}
	return &DetailStage{limit: limit, weight: weight}
}

// Name implements Stage.
func (s *DetailStage) Name() string { return "details" }

// Weight implements Stage.
func (s *DetailStage) Weight() Weight { return s.weight }

// Label implements Stage.
func (s *DetailStage) Label(p *i18n.Printer) string { return p.Sprintf(i18n.SavingDetails) }

// DetailPath returns the detail endpoint path for id.
func DetailPath(id model.ItemID) string {
	return PathArticles + "/" + url.PathEscape(id.String())
}

// Do implements Stage. Detail responses are stored verbatim and are not
// counted as new items.
func (s *DetailStage) Do(ctx context.Context, run *Run) (string, error) {
	stored := 0
	for _, id := range s.selectIDs(run.Items.Articles()) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := run.Fetcher.Get(ctx, run.URL(DetailPath(id)))
		if err != nil {
			run.Logger.Debug("article detail skipped",
				slog.String("id", id.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := run.Fetcher.Store(ctx, resp); err != nil {
			return "", err
		}
		stored++
	}
	return run.Printer.Sprintf(i18n.SavedDetails, stored), nil
}

func (s *DetailStage) selectIDs(articles []model.Article) []model.ItemID {
	ids := make([]model.ItemID, 0, s.limit)
	for _, a := range articles {
		if len(ids) >= s.limit {
			break
		}
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// DefaultStages returns the canonical stage list.
func DefaultStages(articleLimit, detailLimit int) []Stage {
	if articleLimit <= 0 {
		articleLimit = DefaultArticleLimit
	}
	limit := strconv.Itoa(articleLimit)
	return []Stage{
		NewListStage("categories", PathCategories, model.KindCategory,
			Weight{0, 10}, i18n.LoadingCategories, i18n.SavedCategories),
		NewListStage("newest", PathArticles+"?sort=newest&limit="+limit, model.KindArticle,
			Weight{10, 40}, i18n.LoadingNewest, i18n.SavedNewest),
		NewListStage("popular", PathPopular+"?limit="+limit, model.KindArticle,
			Weight{40, 70}, i18n.LoadingPopular, i18n.SavedPopular),
		NewListStage("featured", PathFeatured, model.KindArticle,
			Weight{70, 85}, i18n.LoadingFeatured, i18n.SavedFeatured),
		NewDetailStage(detailLimit, Weight{85, 90}),
	}
}
