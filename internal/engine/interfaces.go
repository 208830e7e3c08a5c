package engine

import (
	"context"
	"encoding/json"

	"github.com/yangwenmai/formconv/internal/model"
)

// Message is one chat turn sent to a ModelClient.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI-compatible
// services, local models, or stubs.
type ModelClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Tool is a capability an in-process agent may call by name.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Capabilities are the tools handed to an agent for one invocation.
// In-process agents use Tools; external CLI agents use MCP.
type Capabilities struct {
	WorkDir string
	Tools   []Tool
	MCP     *MCPConfig
}

// Agent runs one natural-language instruction and returns its transcript.
// The transcript is informational only; it is not proof a file was written.
type Agent interface {
	Invoke(ctx context.Context, prompt string, caps Capabilities) (string, error)
}

// ArtifactResolver locates an expected artifact and moves it to its canonical path.
type ArtifactResolver interface {
	Resolve(basename, canonicalPath string) model.ArtifactReference
}

// Converter uploads an artifact to the conversion service.
type Converter interface {
	Convert(ctx context.Context, artifactPath string) model.ConversionOutcome
}
