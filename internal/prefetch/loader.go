package prefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/precache/internal/imagecache"
)

// Default limits for one image load.
const (
	DefaultImageTimeout = 15 * time.Second
	DefaultMaxImageSize = 10 * 1024 * 1024
)

var (
	// ErrNotImage is returned when a response cannot be recognized as an image.
	ErrNotImage = errors.New("response is not an image")

	// ErrImageTooLarge is returned when an image exceeds the size limit.
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

// ImageStore is the image cache written by HTTPLoader.
type ImageStore interface {
	// Touch marks a cached image as recently used and reports whether it
	// is cached.
	Touch(url string) bool
	Put(ent imagecache.Entry) error
}

// HTTPLoader fetches images over HTTP, verifies them and writes them to an
// ImageStore.
type HTTPLoader struct {
	client    *http.Client
	store     ImageStore
	timeout   time.Duration
	maxSize   int64
	userAgent string
	logger    *slog.Logger
}

// LoaderOption configures an HTTPLoader.
type LoaderOption func(*HTTPLoader)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *HTTPLoader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithImageTimeout bounds a single image load.
func WithImageTimeout(d time.Duration) LoaderOption {
	return func(l *HTTPLoader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxImageSize limits the bytes read per image.
func WithMaxImageSize(n int64) LoaderOption {
	return func(l *HTTPLoader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithLoaderUserAgent sets the User-Agent header.
func WithLoaderUserAgent(ua string) LoaderOption {
	return func(l *HTTPLoader) {
		l.userAgent = ua
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *HTTPLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewHTTPLoader returns a loader writing into store.
func NewHTTPLoader(store ImageStore, opts ...LoaderOption) *HTTPLoader {
	l := &HTTPLoader{
		client:  http.DefaultClient,
		store:   store,
		timeout: DefaultImageTimeout,
		maxSize: DefaultMaxImageSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader. Images already in the store are not requested;
// they are marked as recently used instead.
func (l *HTTPLoader) Load(ctx context.Context, url string) error {
	if l.store.Touch(url) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(body)) > l.maxSize {
		return ErrImageTooLarge
	}

	contentType, err := verifyImage(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	if err := l.store.Put(imagecache.Entry{
		URL:         url,
		ContentType: contentType,
		Header:      resp.Header,
		Body:        body,
		StoredAt:    time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}
	return nil
}

// verifyImage decodes the image header. Formats without a registered
// decoder are accepted when the server declares an image media type.
func verifyImage(body []byte, declared string) (string, error) {
	if _, format, err := image.DecodeConfig(bytes.NewReader(body)); err == nil {
		return "image/" + format, nil
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil && strings.HasPrefix(mediaType, "image/") && len(body) > 0 {
		return mediaType, nil
	}
	return "", ErrNotImage
}
