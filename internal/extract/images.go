package extract

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/precache/internal/model"
)

// Extractor resolves image references against a base URL.
type Extractor struct {
	baseURL *url.URL
	inline  bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithInlineImages toggles scanning of article HTML for <img> elements.
// It is enabled by default.
func WithInlineImages(enabled bool) Option {
	return func(e *Extractor) {
		e.inline = enabled
	}
}

// New returns an Extractor that resolves relative URLs against baseURL.
func New(baseURL string, opts ...Option) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	e := &Extractor{baseURL: u, inline: true}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Images returns the image URLs referenced by articles.
func (e *Extractor) Images(articles []model.Article) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(articles))
	add := func(raw string) {
		resolved := e.resolve(raw)
		if resolved == "" {
			return
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}

	for _, a := range articles {
		add(Cover(a))
		if e.inline && a.Content != "" {
			for _, src := range InlineSources(a.Content) {
				add(src)
			}
		}
	}
	return out
}

// Cover returns the first non-empty cover image field of a.
func Cover(a model.Article) string {
	for _, s := range []string{a.ImageURL, a.AltImageURL, a.ThumbnailURL} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// InlineSources returns the src attributes of <img> elements in content,
// in document order. Malformed markup yields whatever the parser recovers.
func InlineSources(content string) []string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var srcs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			src := getAttr(n, "src")
			if src == "" {
				src = getAttr(n, "data-src")
			}
			if src != "" {
				srcs = append(srcs, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return srcs
}

// resolve returns an absolute http(s) URL or "" when raw cannot be fetched.
func (e *Extractor) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "javascript:") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := e.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
