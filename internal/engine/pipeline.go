package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/yangwenmai/formconv/internal/model"
	"github.com/yangwenmai/formconv/internal/output"
)

// Pipeline turns a text query into a converted form document: the agent
// writes a workbook, the resolver finds it, the converter uploads it.
type Pipeline struct {
	agent     Agent
	resolver  ArtifactResolver
	converter Converter

	layout   output.Layout
	template string
	caps     Capabilities

	settleDelay time.Duration
	deadline    time.Duration
	pollMin     time.Duration
	pollMax     time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLayout sets the output directory layout (default: output_files).
func WithLayout(l output.Layout) PipelineOption {
	return func(p *Pipeline) { p.layout = l }
}

// WithPromptTemplate replaces the built-in prompt template.
func WithPromptTemplate(tmpl string) PipelineOption {
	return func(p *Pipeline) {
		if tmpl != "" {
			p.template = tmpl
		}
	}
}

// WithCapabilities sets the tools handed to the agent.
func WithCapabilities(caps Capabilities) PipelineOption {
	return func(p *Pipeline) { p.caps = caps }
}

// WithSettleDelay sets how long to wait after the agent returns before the
// first lookup (default: 2s).
func WithSettleDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.settleDelay = d }
}

// WithArtifactDeadline bounds the whole artifact await, settle delay
// included (default: 20s).
func WithArtifactDeadline(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.deadline = d }
}

// WithPollInterval sets the initial and maximum backoff between lookups
// (default: 250ms doubling up to 4s).
func WithPollInterval(initial, maximum time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if initial > 0 {
			p.pollMin = initial
		}
		if maximum >= p.pollMin {
			p.pollMax = maximum
		}
	}
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(agent Agent, resolver ArtifactResolver, converter Converter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		agent:       agent,
		resolver:    resolver,
		converter:   converter,
		layout:      output.NewLayout("output_files"),
		template:    defaultPromptTemplate,
		settleDelay: 2 * time.Second,
		deadline:    20 * time.Second,
		pollMin:     250 * time.Millisecond,
		pollMax:     4 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Layout returns the output layout the pipeline writes into.
func (p *Pipeline) Layout() output.Layout {
	return p.layout
}

// Generate runs the pipeline for a query under a fresh request ID.
func (p *Pipeline) Generate(ctx context.Context, query string) (*model.GenerationResult, error) {
	return p.Run(ctx, model.NewGenerationRequest(uuid.NewString(), query))
}

// Run executes every stage for req in order. On success the returned
// Document is the conversion response body, byte for byte, and has been
// written to ResultPath. On failure it returns a *PipelineError naming the
// stage that failed; nothing is retried.
func (p *Pipeline) Run(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	log := slog.With("run_id", req.ID)

	// Prepare
	names := p.layout.Next()
	if err := p.layout.Ensure(); err != nil {
		return nil, &PipelineError{Stage: StagePrepare, Err: err}
	}
	log.Info("pipeline started", "stage", StagePrepare, "artifact", names.ArtifactPath)

	// Agent
	prompt := buildXLSFormPrompt(p.template, req.Query, names.ArtifactBasename)
	transcript, err := p.agent.Invoke(ctx, prompt, p.caps)
	if err != nil {
		log.Error("agent failed", "stage", StageAgent, "error", err)
		return nil, &PipelineError{Stage: StageAgent, Kind: ErrAgentFailure, Err: err}
	}
	log.Debug("agent finished", "stage", StageAgent, "transcript", transcript)

	// Locate
	ref, err := p.awaitArtifact(ctx, names)
	if err != nil {
		return nil, &PipelineError{Stage: StageLocate, Err: err}
	}
	log.Info("artifact resolved", "stage", StageLocate, "state", ref.State, "path", ref.CanonicalPath, "source", ref.Source)
	if kind := artifactFailure(ref.State); kind != nil {
		var cause error
		if ref.Detail != "" {
			cause = errors.New(ref.Detail)
		}
		return nil, &PipelineError{Stage: StageLocate, Kind: kind, Err: cause}
	}

	p.inspect(log, ref.CanonicalPath)

	// Convert
	outcome := p.converter.Convert(ctx, ref.CanonicalPath)
	if !outcome.Succeeded {
		return nil, &PipelineError{
			Stage: StageConvert,
			Kind:  conversionFailure(outcome.Reason),
			Err:   errors.New(outcome.Diagnostic),
		}
	}

	// Persist
	if err := os.WriteFile(names.ResultPath, outcome.Payload, 0o644); err != nil {
		return nil, &PipelineError{Stage: StagePersist, Kind: ErrResultPersist, Err: err}
	}
	log.Info("pipeline finished", "stage", StagePersist, "result", names.ResultPath)

	return &model.GenerationResult{
		Request:      req,
		Artifact:     ref,
		ArtifactPath: ref.CanonicalPath,
		ResultPath:   names.ResultPath,
		Document:     outcome.Payload,
		Transcript:   transcript,
	}, nil
}

// awaitArtifact polls the resolver until the artifact leaves the Missing
// state or the deadline passes. Only ctx cancellation returns an error.
func (p *Pipeline) awaitArtifact(ctx context.Context, names output.Filenames) (model.ArtifactReference, error) {
	deadline := time.Now().Add(p.deadline)
	if err := sleepCtx(ctx, p.settleDelay); err != nil {
		return model.ArtifactReference{}, err
	}

	interval := p.pollMin
	for attempt := 1; ; attempt++ {
		ref := p.resolver.Resolve(names.ArtifactBasename, names.ArtifactPath)
		if ref.State != model.ArtifactMissing {
			return ref, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			slog.Warn("artifact not found before deadline", "attempts", attempt, "basename", names.ArtifactBasename)
			return ref, nil
		}
		wait := min(interval, remaining)
		slog.Debug("artifact missing, retrying", "attempt", attempt, "wait", wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return ref, err
		}
		interval = min(interval*2, p.pollMax)
	}
}

func (p *Pipeline) inspect(log *slog.Logger, path string) {
	report, err := InspectWorkbook(path)
	if err != nil {
		log.Warn("could not inspect workbook", "path", path, "error", err)
		return
	}
	if report.OK() {
		log.Info("workbook inspected", "sheets", report.Sheets)
		return
	}
	log.Warn("workbook does not match XLSForm layout", "sheets", report.Sheets, "problems", report.Problems)
}

func artifactFailure(state model.ArtifactState) error {
	switch state {
	case model.ArtifactVerified:
		return nil
	case model.ArtifactMissing:
		return ErrArtifactMissing
	case model.ArtifactEmpty:
		return ErrArtifactEmpty
	case model.ArtifactFoundElsewhere:
		return ErrArtifactRelocation
	default:
		return fmt.Errorf("unexpected artifact state %s", state)
	}
}

func conversionFailure(reason model.FailureReason) error {
	switch reason {
	case model.ReasonTimeout:
		return ErrConversionTimeout
	case model.ReasonInvalidResponse:
		return ErrConversionInvalidResponse
	default:
		return ErrConversionServerError
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
