package engine

import (
	"errors"
	"strings"
)

// Failure kinds surfaced by the pipeline. Match with errors.Is.
var (
	ErrAgentFailure              = errors.New("agent failure")
	ErrArtifactMissing           = errors.New("artifact missing")
	ErrArtifactEmpty             = errors.New("artifact empty")
	ErrArtifactRelocation        = errors.New("artifact relocation failure")
	ErrConversionTimeout         = errors.New("conversion timeout")
	ErrConversionServerError     = errors.New("conversion server error")
	ErrConversionInvalidResponse = errors.New("conversion invalid response")
	ErrResultPersist             = errors.New("result persist failure")
)

// Pipeline stage names.
const (
	StagePrepare = "prepare"
	StageAgent   = "agent"
	StageLocate  = "locate"
	StageConvert = "convert"
	StagePersist = "persist"
)

// PipelineError reports the stage that failed, the failure kind, and the cause.
type PipelineError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *PipelineError) Error() string {
	parts := []string{e.Stage}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *PipelineError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// StepName returns the failed stage.
func (e *PipelineError) StepName() string {
	return e.Stage
}

// KindName returns the failure kind, or "" when the stage was interrupted.
func (e *PipelineError) KindName() string {
	if e.Kind == nil {
		return ""
	}
	return e.Kind.Error()
}
