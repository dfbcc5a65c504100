package config

import "errors"

// Sentinel errors returned by Validate.
var (
	// ErrInvalidBaseURL is returned when api_base_url is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("api base URL must be an absolute http or https URL")

	// ErrInvalidProbeURL is returned when probe_url is set but not an absolute http(s) URL.
	ErrInvalidProbeURL = errors.New("probe URL must be an absolute http or https URL")

	// ErrEmptyCacheName is returned when cache_name is empty.
	ErrEmptyCacheName = errors.New("cache name must not be empty")

	// ErrInvalidTimeout is returned when request_timeout is not positive.
	ErrInvalidTimeout = errors.New("request timeout must be positive")

	// ErrInvalidMaxBodySize is returned when max_body_size is not positive.
	ErrInvalidMaxBodySize = errors.New("max body size must be positive")

	// ErrInvalidLimit is returned when article_limit or detail_limit is negative.
	ErrInvalidLimit = errors.New("article and detail limits must not be negative")

	// ErrInvalidBatchSize is returned when image_batch_size is not positive.
	ErrInvalidBatchSize = errors.New("image batch size must be positive")

	// ErrInvalidImageCacheMax is returned when image_cache_max is negative.
	ErrInvalidImageCacheMax = errors.New("image cache size must not be negative")

	// ErrInvalidMaxEntries is returned when max_cache_entries is negative.
	ErrInvalidMaxEntries = errors.New("max cache entries must not be negative")

	// ErrInvalidDelay is returned when a delay or window is negative.
	ErrInvalidDelay = errors.New("delays must not be negative")

	// ErrInvalidProbeInterval is returned when probe_interval is not positive.
	ErrInvalidProbeInterval = errors.New("probe interval must be positive")

	// ErrUnsupportedLanguage is returned for a language without a message catalog.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)
