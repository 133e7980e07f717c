package runstore

import "time"

// Status describes the lifecycle state of a process run.
type Status string

const (
	// StatusLaunched means the process was started but has not passed its
	// readiness probe yet.
	StatusLaunched Status = "launched"
	// StatusReady means the readiness probe succeeded.
	StatusReady Status = "ready"
	// StatusStopped means the process exited or was stopped deliberately.
	StatusStopped Status = "stopped"
	// StatusFailed means the process never became ready or exited with an error.
	StatusFailed Status = "failed"
)

// ProcessBackend is the canonical process name for the backend HTTP server.
const ProcessBackend = "backend"

// Run is one journal entry for a managed process lifetime.
type Run struct {
	ID        string
	Process   string
	PID       int
	Status    Status
	Detail    string
	StartedAt time.Time
	ReadyAt   *time.Time
	StoppedAt *time.Time
	UpdatedAt time.Time
}

// Active reports whether the run still describes a live process.
func (r *Run) Active() bool {
	if r == nil {
		return false
	}
	return r.Status == StatusLaunched || r.Status == StatusReady
}
