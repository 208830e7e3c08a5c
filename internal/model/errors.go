package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrorInfo holds structured failure information for a Run.
type ErrorInfo struct {
	FailedStage string `json:"failed_stage"`
	Kind        string `json:"kind,omitempty"`
	Message     string `json:"message"`
	FailedAt    string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

type stageNamer interface {
	StepName() string
}

type kindNamer interface {
	KindName() string
}

// ErrorInfoFrom describes err, picking up the failed stage and failure kind
// when err carries them. The stage is "unknown" otherwise.
func ErrorInfoFrom(err error) ErrorInfo {
	info := ErrorInfo{
		FailedStage: "unknown",
		Message:     err.Error(),
		FailedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	var sn stageNamer
	if errors.As(err, &sn) {
		info.FailedStage = sn.StepName()
	}
	var kn kindNamer
	if errors.As(err, &kn) {
		info.Kind = kn.KindName()
	}
	return info
}
