package domain

import "context"

// RunRepository persists pipeline runs and their per-file outcomes.
type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) (*Run, error)
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, int64, error)
	AddFiles(ctx context.Context, runID string, files []RunFile) error
	ListFiles(ctx context.Context, runID string) ([]RunFile, error)
	LatestRun(ctx context.Context) (*Run, error)
}
