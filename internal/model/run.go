package model

import (
	"fmt"
	"time"
)

// Run status constants
const (
	StatusQueued    = "QUEUED"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Run is the persisted record of one generation request.
type Run struct {
	ID           string  `json:"id"`
	Query        string  `json:"query"`
	Status       string  `json:"status"`
	ArtifactPath string  `json:"artifact_path,omitempty"`
	ResultPath   string  `json:"result_path,omitempty"`
	FailedStage  string  `json:"failed_stage,omitempty"`
	ErrorInfo    *string `json:"error_info,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// RunFilter holds query parameters for listing runs.
type RunFilter struct {
	Status []string
	// Stage matches the failed stage of FAILED runs.
	Stage  []string
	Limit  int
}

// NewRun creates a Run in the given initial status (QUEUED or RUNNING).
func NewRun(id, query, status string) Run {
	now := time.Now().UTC().Format(time.RFC3339)
	return Run{
		ID:        id,
		Query:     query,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// ValidateTransition checks whether moving from the current status to next is allowed.
func (r *Run) ValidateTransition(next string) error {
	switch r.Status {
	case StatusQueued:
		if next == StatusRunning {
			return nil
		}
	case StatusRunning:
		if next == StatusSucceeded || next == StatusFailed || next == StatusQueued {
			return nil
		}
	}
	return fmt.Errorf("invalid run transition %s -> %s", r.Status, next)
}
