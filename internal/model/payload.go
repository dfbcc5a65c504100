package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingData is returned when a response envelope has no "data" member.
var ErrMissingData = errors.New("response envelope has no data member")

// ItemID is an item identifier. The remote API emits numeric ids, but string
// ids are accepted so that slugs or UUIDs do not break decoding.
type ItemID string

// UnmarshalJSON accepts a JSON number, string or null.
func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return fmt.Errorf("invalid id %s: %w", b, err)
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ItemID(n.String())
	return nil
}

// String returns the identifier as a string.
func (id ItemID) String() string {
	return string(id)
}

// ItemKind distinguishes payload families. Identifiers are only unique within
// a kind.
type ItemKind string

const (
	// KindCategory is a news category.
	KindCategory ItemKind = "category"
	// KindArticle is a news article.
	KindArticle ItemKind = "article"
)

// Article is the subset of an article payload the pre-cache core inspects.
// Every other field is carried opaquely in the stored response.
type Article struct {
	ID           ItemID `json:"id"`
	Title        string `json:"judul,omitempty"`
	Content      string `json:"konten,omitempty"`
	ImageURL     string `json:"gambar_url,omitempty"`
	AltImageURL  string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Category is the subset of a category payload the pre-cache core inspects.
type Category struct {
	ID   ItemID `json:"id"`
	Name string `json:"nama,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// Item is one decoded element of a response envelope.
type Item struct {
	// Kind is the payload family the item was decoded as.
	Kind ItemKind

	// ID is the item identifier; empty when the payload had none.
	ID ItemID

	// Article is populated when Kind is KindArticle.
	Article *Article
}

// Key returns the deduplication key of the item.
func (i Item) Key() string {
	return string(i.Kind) + ":" + string(i.ID)
}

// Envelope is the response shape of every list and detail endpoint:
// {"data": T[] | T, "pagination": {...}}.
type Envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination,omitempty"`
}

// Elements returns the elements of Data. A single object is returned as a
// one-element slice; null yields an empty slice.
func (e Envelope) Elements() ([]json.RawMessage, error) {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 {
		return nil, ErrMissingData
	}
	switch data[0] {
	case 'n':
		return []json.RawMessage{}, nil
	case '{':
		return []json.RawMessage{data}, nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("decode data array: %w", err)
		}
		return elems, nil
	default:
		return nil, fmt.Errorf("unexpected data member %q", data[:1])
	}
}

// DecodeItems decodes a response body into items of the given kind.
func DecodeItems(body []byte, kind ItemKind) ([]Item, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	elems, err := env.Elements()
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(elems))
	for _, raw := range elems {
		switch kind {
		case KindArticle:
			var a Article
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("decode article: %w", err)
			}
			items = append(items, Item{Kind: kind, ID: a.ID, Article: &a})
		default:
			var c Category
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil, fmt.Errorf("decode category: %w", err)
			}
			items = append(items, Item{Kind: kind, ID: c.ID})
		}
	}
	return items, nil
}
