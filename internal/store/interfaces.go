package store

import (
	"context"

	"github.com/yangwenmai/formconv/internal/model"
)

// StatusCounts holds the number of runs per status.
type StatusCounts struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunReader provides read access to runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, f model.RunFilter) ([]model.Run, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// RunWriter records runs and their outcomes.
type RunWriter interface {
	CreateRun(ctx context.Context, run model.Run) error
	MarkSucceeded(ctx context.Context, id, artifactPath, resultPath string) error
	MarkFailed(ctx context.Context, id string, info model.ErrorInfo) error
}

// RunClaimer provides atomic claim operations for background processing.
type RunClaimer interface {
	ClaimNextQueued(ctx context.Context) (*model.Run, error)
	ResetStaleRunning(ctx context.Context) (int64, error)
}

// RunRepository combines the operations the API layer needs.
type RunRepository interface {
	RunReader
	RunWriter
}
