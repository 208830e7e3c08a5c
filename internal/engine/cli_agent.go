package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// MCPStdioServer configures a stdio-based MCP server for an external agent.
type MCPStdioServer struct {
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig holds the MCP servers an external agent may use, keyed by name.
type MCPConfig struct {
	MCPServers map[string]MCPStdioServer `json:"mcpServers"`
}

// ExcelMCPConfig exposes the excel-mcp-server filesystem tool, launched with
// the given command line (e.g. "uvx excel-mcp-server stdio").
func ExcelMCPConfig(commandLine string) *MCPConfig {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil
	}
	return &MCPConfig{MCPServers: map[string]MCPStdioServer{
		"excel": {Type: "stdio", Command: fields[0], Args: fields[1:]},
	}}
}

// ProcessError reports a failed external agent process.
type ProcessError struct {
	Message  string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ProcessError) Error() string {
	msg := "process error: " + e.Message
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// CLIAgent runs an external agent CLI once per invocation in print mode,
// passing the MCP configuration so the agent can edit files itself.
type CLIAgent struct {
	path  string
	model string
	args  []string
}

// CLIAgentOption configures a CLIAgent.
type CLIAgentOption func(*CLIAgent)

// WithCLIModel sets the --model flag.
func WithCLIModel(model string) CLIAgentOption {
	return func(a *CLIAgent) { a.model = model }
}

// WithCLIArgs appends extra arguments before the prompt.
func WithCLIArgs(args ...string) CLIAgentOption {
	return func(a *CLIAgent) { a.args = append(a.args, args...) }
}

// NewCLIAgent creates an agent that execs the CLI at path ("claude" if empty).
func NewCLIAgent(path string, opts ...CLIAgentOption) *CLIAgent {
	if path == "" {
		path = "claude"
	}
	a := &CLIAgent{path: path}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Invoke blocks until the CLI exits; only ctx can stop it early.
func (a *CLIAgent) Invoke(ctx context.Context, prompt string, caps Capabilities) (string, error) {
	args := []string{
		"--print",
		"--output-format", "text",
		"--permission-mode", "bypassPermissions",
	}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	if caps.MCP != nil && len(caps.MCP.MCPServers) > 0 {
		mcpJSON, err := json.Marshal(caps.MCP)
		if err != nil {
			return "", &ProcessError{Message: "failed to marshal MCP config", Cause: err}
		}
		args = append(args, "--mcp-config", string(mcpJSON))
	}
	args = append(args, a.args...)
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, a.path, args...)
	if caps.WorkDir != "" {
		cmd.Dir = caps.WorkDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		pe := &ProcessError{
			Message: "agent CLI failed",
			Stderr:  strings.TrimSpace(stderr.String()),
			Cause:   err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			pe.ExitCode = exitErr.ExitCode()
		}
		return stdout.String(), pe
	}
	return stdout.String(), nil
}
