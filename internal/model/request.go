package model

import (
	"strings"
	"time"
)

// GenerationRequest is one call to generate a form from a text query.
type GenerationRequest struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewGenerationRequest creates a request stamped with the current time.
func NewGenerationRequest(id, query string) GenerationRequest {
	return GenerationRequest{
		ID:          id,
		Query:       strings.TrimSpace(query),
		RequestedAt: time.Now(),
	}
}

// GenerationResult is the per-request outcome of a successful pipeline run.
type GenerationResult struct {
	Request      GenerationRequest `json:"request"`
	Artifact     ArtifactReference `json:"artifact"`
	ArtifactPath string            `json:"artifact_path"`
	ResultPath   string            `json:"result_path"`
	Document     []byte            `json:"-"`
	Transcript   string            `json:"transcript,omitempty"`
}
