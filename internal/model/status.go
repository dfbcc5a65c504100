package model

import "time"

// StatusVersion is the format version written into every PreCacheStatus.
// A stored status with a different version is treated as absent.
const StatusVersion = "1.0.0"

// PreCacheStatus is the persisted record of the most recent pre-cache run.
// There is one instance per origin and it is overwritten on every run.
type PreCacheStatus struct {
	// Version is the status format version (see StatusVersion).
	Version string `json:"version"`

	// Timestamp is when the record was written.
	Timestamp time.Time `json:"timestamp"`

	// IsComplete is true only when the last run finished successfully.
	IsComplete bool `json:"isComplete"`

	// TotalItems is the number of unique items cached by a successful run.
	TotalItems int `json:"totalItems,omitempty"`

	// TotalImages is the number of images processed (loaded or failed).
	TotalImages int `json:"totalImages,omitempty"`

	// CompletedAt is set on success.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Error holds the run-level error message on failure.
	Error string `json:"error,omitempty"`

	// FailedAt is set on failure.
	FailedAt *time.Time `json:"failedAt,omitempty"`

	// RunID identifies the run that produced this record.
	RunID string `json:"runId,omitempty"`
}

// IsCurrent reports whether the status was written by a completed run using
// the current format version.
func (s *PreCacheStatus) IsCurrent() bool {
	return s != nil && s.Version == StatusVersion && s.IsComplete
}

// Progress is a transient progress event. A new sequence starts with every run.
type Progress struct {
	// Percentage is the overall completion in the range [0, 100].
	Percentage float64 `json:"percentage"`

	// Status is a human-readable label for the current stage.
	Status string `json:"status"`

	// ItemsCached is the number of unique items cached so far.
	ItemsCached int `json:"itemsCached"`
}

// ProgressFunc receives progress events. Implementations must not block for
// long; they are called on the goroutine doing the work.
type ProgressFunc func(Progress)
