package pipeline

import "errors"

var (
	// ErrStorage wraps failures writing to the durable cache. It aborts a run.
	ErrStorage = errors.New("cache storage failed")

	// ErrNotCacheable is returned when a response status cannot be cached.
	ErrNotCacheable = errors.New("response status is not cacheable")

	// ErrBodyTooLarge is returned when a response exceeds the body limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)
