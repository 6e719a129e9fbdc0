package domain

import "time"

// RunStatus is the lifecycle status of a pipeline run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// Trigger types for a run.
const (
	TriggerManual    = "MANUAL"
	TriggerScheduled = "SCHEDULED"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID           string     `json:"id"`
	Status       RunStatus  `json:"status"`
	TriggerType  string     `json:"trigger_type"`
	SourceDir    string     `json:"source_dir"`
	Processed    int        `json:"processed"`
	Failed       int        `json:"failed"`
	Unsupported  int        `json:"unsupported"`
	Datasets     int        `json:"datasets"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// RunFile is the outcome of one file inside a run.
type RunFile struct {
	RunID      string     `json:"run_id"`
	Path       string     `json:"path"`
	Category   Category   `json:"category"`
	Status     FileStatus `json:"status"`
	Method     Method     `json:"method,omitempty"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status *RunStatus
	Page   PageRequest
}
