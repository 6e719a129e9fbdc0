package domain

import "time"

// FileOutcome is the recorded result of one file in a batch.
type FileOutcome struct {
	Path     string            `json:"path"`
	Category Category          `json:"category"`
	Status   FileStatus        `json:"status"`
	Method   Method            `json:"method,omitempty"`
	Error    string            `json:"error,omitempty"`
	Kind     ErrorKind         `json:"error_kind,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
	Result   *ExtractionResult `json:"-"`
}

// FileStatus is the bucket a file lands in.
type FileStatus string

// File statuses.
const (
	FileProcessed   FileStatus = "processed"
	FileFailed      FileStatus = "failed"
	FileUnsupported FileStatus = "unsupported"
)

// BatchReport summarizes one dispatcher run. The three path sets are disjoint
// and sorted.
type BatchReport struct {
	SourceDir   string    `json:"source_dir"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Processed   []string  `json:"processed"`
	Failed      []string  `json:"failed"`
	Unsupported []string  `json:"unsupported"`
	Extractors  []string  `json:"extractors"`
}

// Total returns the number of files seen.
func (r *BatchReport) Total() int {
	return len(r.Processed) + len(r.Failed) + len(r.Unsupported)
}
