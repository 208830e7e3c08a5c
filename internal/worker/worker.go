package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yangwenmai/formconv/internal/model"
)

// Processor runs the generation pipeline for a single request.
type Processor interface {
	Run(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error)
}

// RunClaimer provides atomic claim and outcome operations.
type RunClaimer interface {
	ClaimNextQueued(ctx context.Context) (*model.Run, error)
	MarkSucceeded(ctx context.Context, id, artifactPath, resultPath string) error
	MarkFailed(ctx context.Context, id string, info model.ErrorInfo) error
}

// Worker polls for QUEUED runs and processes them one at a time.
type Worker struct {
	claimer   RunClaimer
	processor Processor
	interval  time.Duration
}

// New creates a new Worker.
func New(claimer RunClaimer, processor Processor, interval time.Duration) *Worker {
	return &Worker{claimer: claimer, processor: processor, interval: interval}
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped")
			return
		default:
		}

		if !w.ProcessNext(ctx) {
			w.sleep(ctx)
		}
	}
}

// ProcessNext claims and processes one queued run. It reports whether a run
// was claimed.
func (w *Worker) ProcessNext(ctx context.Context) bool {
	run, err := w.claimer.ClaimNextQueued(ctx)
	if err != nil {
		slog.Error("worker claim error", "error", err)
		return false
	}
	if run == nil {
		return false
	}

	slog.Info("processing run", "run_id", run.ID)
	req := model.GenerationRequest{ID: run.ID, Query: run.Query, RequestedAt: time.Now()}
	res, err := w.processor.Run(ctx, req)
	if err != nil {
		slog.Error("pipeline failed", "run_id", run.ID, "error", err)
		if sErr := w.claimer.MarkFailed(ctx, run.ID, model.ErrorInfoFrom(err)); sErr != nil {
			slog.Error("failed to set FAILED status", "run_id", run.ID, "error", sErr)
		}
		return true
	}

	if err := w.claimer.MarkSucceeded(ctx, run.ID, res.ArtifactPath, res.ResultPath); err != nil {
		slog.Error("failed to set SUCCEEDED status", "run_id", run.ID, "error", err)
	} else {
		slog.Info("run succeeded", "run_id", run.ID, "result", res.ResultPath)
	}
	return true
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
