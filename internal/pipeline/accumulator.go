package pipeline

import "github.com/nao1215/precache/internal/model"

// Accumulator collects decoded items across stages. Items are unique by
// kind and id; the first occurrence of an article wins. Items without an id
// are counted individually.
type Accumulator struct {
	seen     map[string]struct{}
	count    int
	articles []model.Article
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// Add records items and returns how many were new.
func (a *Accumulator) Add(items []model.Item) int {
	added := 0
	for _, it := range items {
		if it.ID != "" {
			key := it.Key()
			if _, ok := a.seen[key]; ok {
				continue
			}
			a.seen[key] = struct{}{}
		}
		added++
		if it.Kind == model.KindArticle && it.Article != nil {
			a.articles = append(a.articles, *it.Article)
		}
	}
	a.count += added
	return added
}

// Count returns the number of unique items seen.
func (a *Accumulator) Count() int {
	return a.count
}

// Articles returns the unique articles in first-seen order.
func (a *Accumulator) Articles() []model.Article {
	out := make([]model.Article, len(a.articles))
	copy(out, a.articles)
	return out
}
