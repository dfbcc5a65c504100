package precache

import "github.com/nao1215/precache/internal/model"

// State is the orchestrator state.
type State string

const (
	// StateIdle means no run is visible.
	StateIdle State = "idle"
	// StateChecking means the persisted status is being read.
	StateChecking State = "checking"
	// StateRunning means a run is in progress.
	StateRunning State = "running"
	// StateComplete means the last run succeeded.
	StateComplete State = "complete"
	// StateFailed means the last run or start attempt failed.
	StateFailed State = "failed"
)

// Snapshot is the state published to subscribers.
type Snapshot struct {
	State State

	// IsFirstVisit reports whether a run is needed.
	IsFirstVisit bool

	// IsPreCaching is true while a visible run is in progress.
	IsPreCaching bool

	Progress model.Progress

	// IsComplete is true after a successful run until dismissed.
	IsComplete bool

	// Err is the run-level error, if any.
	Err error

	// ErrorMessage is the human-readable form of Err.
	ErrorMessage string

	// RunID identifies the current or last run.
	RunID string
}

// ClearResult is the outcome of ClearCache.
type ClearResult struct {
	Success bool
	Err     error
}
