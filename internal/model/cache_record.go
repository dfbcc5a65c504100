package model

import (
	"net/http"
	"time"
)

// StatusOpaque is the status recorded for an opaque (cross-origin, no-cors)
// success. It is treated as cacheable alongside 200.
const StatusOpaque = 0

// CacheRecord is a single entry in the durable cache store.
// The key is the absolute request URL; the value is the response exactly as
// received from the remote API.
type CacheRecord struct {
	// URL is the absolute request URL used as the cache key.
	URL string `json:"url"`

	// Status is the HTTP status code of the stored response.
	Status int `json:"status"`

	// Header contains the response headers.
	Header http.Header `json:"header"`

	// Body is the raw response body. It is never re-encoded.
	Body []byte `json:"-"`

	// StoredAt is when the record was written.
	StoredAt time.Time `json:"stored_at"`

	// Digest is the hex-encoded BLAKE2b-256 digest of Body.
	Digest string `json:"digest"`
}

// IsCacheableStatus reports whether a response with the given status may be
// written to the durable cache.
func IsCacheableStatus(status int) bool {
	return status == http.StatusOK || status == StatusOpaque
}

// Size returns the number of body bytes held by the record.
func (r CacheRecord) Size() int {
	return len(r.Body)
}
