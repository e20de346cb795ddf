// Package state records pipeline runs in a SQLite database.
//
// Every `housetax run` creates a Run, appends one StageRun per
// completed stage and finishes with a status. The schema is managed
// with goose migrations embedded in the binary.
package state

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one execution of the pipeline.
type Run struct {
	ID          string
	Status      RunStatus
	Selection   []string
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// StageRun is one completed stage of a run.
type StageRun struct {
	Name     string
	Kind     string
	Output   string
	Rows     int
	Duration time.Duration
	Warning  string
}
