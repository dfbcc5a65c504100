package pipeline

import (
	"testing"

	"github.com/nao1215/precache/internal/model"
)

func TestAccumulator(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	first := &model.Article{ID: "1", Title: "first"}
	later := &model.Article{ID: "1", Title: "later"}

	added := a.Add([]model.Item{
		{Kind: model.KindCategory, ID: "1"},
		{Kind: model.KindArticle, ID: "1", Article: first},
		{Kind: model.KindArticle, ID: "1", Article: later},
		{Kind: model.KindArticle, Article: &model.Article{Title: "no id"}},
		{Kind: model.KindArticle, Article: &model.Article{Title: "no id either"}},
	})
	if added != 4 || a.Count() != 4 {
		t.Errorf("added=%d count=%d, want 4", added, a.Count())
	}

	articles := a.Articles()
	if len(articles) != 3 || articles[0].Title != "first" {
		t.Errorf("unexpected articles %+v", articles)
	}

	articles[0].Title = "mutated"
	if a.Articles()[0].Title != "first" {
		t.Error("Articles must return a copy")
	}
}

func TestDetailStageSelectIDs(t *testing.T) {
	t.Parallel()

	s := NewDetailStage(2, Weight{85, 90})
	ids := s.selectIDs([]model.Article{{ID: ""}, {ID: "7"}, {ID: "3"}, {ID: "9"}})
	if len(ids) != 2 || ids[0] != "7" || ids[1] != "3" {
		t.Errorf("selectIDs = %v", ids)
	}
	if got := DetailPath("a b"); got != "/api/berita/a%20b" {
		t.Errorf("DetailPath = %q", got)
	}
}
