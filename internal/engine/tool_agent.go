package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ToolAgent drives a ModelClient through a small tool-calling loop. Each model
// turn must be a single JSON action: a tool call or a final answer.
type ToolAgent struct {
	model    ModelClient
	maxSteps int
}

// ToolAgentOption configures a ToolAgent.
type ToolAgentOption func(*ToolAgent)

// WithMaxSteps bounds the number of model turns per invocation (default: 6).
func WithMaxSteps(n int) ToolAgentOption {
	return func(a *ToolAgent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// NewToolAgent creates an agent backed by mc.
func NewToolAgent(mc ModelClient, opts ...ToolAgentOption) *ToolAgent {
	a := &ToolAgent{model: mc, maxSteps: 6}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// agentAction is the JSON shape the model must answer with.
type agentAction struct {
	Tool        string          `json:"tool"`
	Arguments   json.RawMessage `json:"arguments"`
	FinalAnswer json.RawMessage `json:"final_answer"`
}

// Invoke runs the loop until the model gives a final answer or the step budget
// runs out. Only model errors fail the invocation; tool errors are fed back
// to the model as observations.
func (a *ToolAgent) Invoke(ctx context.Context, prompt string, caps Capabilities) (string, error) {
	tools := make(map[string]Tool, len(caps.Tools))
	for _, t := range caps.Tools {
		tools[t.Name()] = t
	}

	messages := []Message{
		{Role: "system", Content: buildAgentSystemPrompt(caps.Tools)},
		{Role: "user", Content: prompt},
	}
	var transcript strings.Builder

	for step := 1; step <= a.maxSteps; step++ {
		reply, err := a.model.Chat(ctx, messages)
		if err != nil {
			return transcript.String(), fmt.Errorf("step %d: %w", step, err)
		}
		fmt.Fprintf(&transcript, "[step %d] assistant: %s\n", step, reply)
		messages = append(messages, Message{Role: "assistant", Content: reply})

		action, err := parseAction(reply)
		if err != nil {
			observation := fmt.Sprintf("Error: %v. Reply with exactly one JSON object.", err)
			fmt.Fprintf(&transcript, "[step %d] %s\n", step, observation)
			messages = append(messages, Message{Role: "user", Content: observation})
			continue
		}
		if len(action.FinalAnswer) > 0 {
			return transcript.String(), nil
		}

		observation := a.runTool(ctx, tools, action)
		slog.Debug("agent tool call", "step", step, "tool", action.Tool, "observation", observation)
		fmt.Fprintf(&transcript, "[step %d] %s\n", step, observation)
		messages = append(messages, Message{Role: "user", Content: observation})
	}

	slog.Warn("agent stopped without a final answer", "max_steps", a.maxSteps)
	return transcript.String(), nil
}

func (a *ToolAgent) runTool(ctx context.Context, tools map[string]Tool, action agentAction) string {
	tool, ok := tools[action.Tool]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", action.Tool)
	}
	result, err := tool.Call(ctx, action.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %s failed: %v", action.Tool, err)
	}
	return "Observation: " + result
}

// parseAction extracts the JSON action from a model reply, tolerating code
// fences and surrounding prose.
func parseAction(reply string) (agentAction, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return agentAction{}, errors.New("no JSON object in reply")
	}

	var action agentAction
	if err := json.Unmarshal([]byte(reply[start:end+1]), &action); err != nil {
		return agentAction{}, fmt.Errorf("invalid JSON action: %w", err)
	}
	if action.Tool == "" && len(action.FinalAnswer) == 0 {
		return agentAction{}, errors.New(`action must set "tool" or "final_answer"`)
	}
	return action, nil
}
