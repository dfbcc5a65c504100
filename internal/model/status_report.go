package model

import "time"

// Run states shown in a StatusReport.
const (
	RunStateNever    = "never run"
	RunStateComplete = "complete"
	RunStateFailed   = "failed"
	RunStateOutdated = "outdated"
)

// StorageUsage summarizes the API response store.
type StorageUsage struct {
	Caches  int   `json:"caches"`
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// ImageUsage summarizes the image cache.
type ImageUsage struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`

	// Budget is the configured maximum size. Zero means unlimited.
	Budget int64 `json:"budget"`
}

// StatusReport is everything `precache status` prints.
type StatusReport struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Origin      string    `json:"origin"`
	CacheName   string    `json:"cacheName"`

	// IsFirstVisit is true when the next automatic run would pre-cache.
	IsFirstVisit bool `json:"isFirstVisit"`

	// Status is the persisted run record, nil when no run was recorded.
	Status *PreCacheStatus `json:"status,omitempty"`

	Storage StorageUsage `json:"storage"`
	Images  ImageUsage   `json:"images"`
}

// RunState classifies the persisted status.
func (r *StatusReport) RunState() string {
	switch {
	case r.Status == nil:
		return RunStateNever
	case r.Status.IsCurrent():
		return RunStateComplete
	case r.Status.Version != StatusVersion:
		return RunStateOutdated
	default:
		return RunStateFailed
	}
}
