package precache

import "errors"

var (
	// ErrOffline is returned by Start when the network is unreachable.
	ErrOffline = errors.New("no internet connection")

	// ErrRunInProgress is returned when another run or a cache clear holds
	// the cache, in this process or another.
	ErrRunInProgress = errors.New("a pre-cache run is already in progress")

	// ErrStatusPersist wraps failures writing the status record.
	ErrStatusPersist = errors.New("failed to persist pre-cache status")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("orchestrator is closed")

	// ErrMissingComponent is returned by New when a required component is nil.
	ErrMissingComponent = errors.New("missing orchestrator component")
)
