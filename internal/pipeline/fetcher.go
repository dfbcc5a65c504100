package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/precache/internal/cachestore"
	"github.com/nao1215/precache/internal/model"
)

// Default limits for a single request.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultMaxBodySize    = 5 * 1024 * 1024
)

// Cache is the write side of the durable cache used by the pipeline.
type Cache interface {
	Put(ctx context.Context, rec model.CacheRecord) error
}

// Response is a fully read HTTP response.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher issues GET requests and persists their responses.
type Fetcher struct {
	client      *http.Client
	cache       Cache
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRequestTimeout bounds every request, including reading the body.
func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBodySize limits how many bytes of a response are read.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher returns a Fetcher that stores responses into cache.
func NewFetcher(cache Cache, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      http.DefaultClient,
		cache:       cache,
		timeout:     DefaultRequestTimeout,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches url and reads the body once. Responses with a status that
// cannot be cached are returned as ErrNotCacheable.
func (f *Fetcher) Get(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !model.IsCacheableStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodySize))
		return nil, fmt.Errorf("%w: %s returned %d", ErrNotCacheable, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %s (limit %d bytes)", ErrBodyTooLarge, url, f.maxBodySize)
	}

	return &Response{
		URL:    url,
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// Store persists resp verbatim under its request URL. Failures are wrapped
// in ErrStorage.
func (f *Fetcher) Store(ctx context.Context, resp *Response) error {
	rec := model.CacheRecord{
		URL:      resp.URL,
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
		StoredAt: time.Now(),
		Digest:   cachestore.Digest(resp.Body),
	}
	if err := f.cache.Put(ctx, rec); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorage, resp.URL, err)
	}
	f.logger.Debug("stored response",
		slog.String("url", resp.URL),
		slog.Int("bytes", len(resp.Body)),
	)
	return nil
}

// decodeCopy decodes a private copy of body so the stored bytes are never
// touched by the decoder.
func decodeCopy(body []byte, kind model.ItemKind) ([]model.Item, error) {
	return model.DecodeItems(bytes.Clone(body), kind)
}
