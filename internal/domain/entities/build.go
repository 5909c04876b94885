package entities

import "time"

// BuildState is the lifecycle state of an index build.
type BuildState string

const (
	BuildNotStarted BuildState = "not_started"
	BuildRunning    BuildState = "running"
	BuildCompleted  BuildState = "completed"
	BuildError      BuildState = "error"
)

// Terminal reports whether no further transitions happen from s.
func (s BuildState) Terminal() bool {
	return s == BuildCompleted || s == BuildError
}

// BuildReport summarises one indexing run.
type BuildReport struct {
	Files   int  `json:"files"`
	Failed  int  `json:"failed"`
	Empty   int  `json:"empty"`
	Chunks  int  `json:"chunks"`
	Skipped bool `json:"skipped"` // true when nothing was written
}

// BuildStatus is a snapshot of the coordinator's state.
type BuildStatus struct {
	ID         string
	State      BuildState
	Message    string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Report     *BuildReport
}

// IsRunning reports whether a build is in flight.
func (s BuildStatus) IsRunning() bool {
	return s.State == BuildRunning
}

// TriggerResult is the answer to a build request.
type TriggerResult string

const (
	TriggerAccepted       TriggerResult = "processing"
	TriggerAlreadyRunning TriggerResult = "already_running"
)
