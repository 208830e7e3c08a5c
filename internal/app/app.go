// Package app wires configuration into a ready-to-run generation pipeline.
// Both the HTTP server and the CLI build their pipeline here.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/yangwenmai/formconv/internal/config"
	"github.com/yangwenmai/formconv/internal/engine"
	"github.com/yangwenmai/formconv/internal/locator"
	"github.com/yangwenmai/formconv/internal/output"
)

// BuildPipeline assembles the agent, locator, and converter selected by cfg.
func BuildPipeline(cfg config.Config) (*engine.Pipeline, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}

	policy := locator.DefaultPolicy()
	if cfg.SearchPolicyFile != "" {
		policy, err = locator.LoadPolicy(cfg.SearchPolicyFile)
		if err != nil {
			return nil, err
		}
		slog.Info("loaded search policy", "path", cfg.SearchPolicyFile, "strategies", len(policy.Strategies))
	}

	agent, caps, err := buildAgent(cfg, workDir)
	if err != nil {
		return nil, err
	}

	layout := output.NewLayout(cfg.OutputDir)
	converter := engine.NewConversionClient(cfg.ConverterURL,
		engine.WithFormField(cfg.ConverterField),
		engine.WithConvertTimeout(cfg.ConverterTimeout),
		engine.WithDiagnosticPath(layout.DiagnosticPath()),
	)

	return engine.NewPipeline(agent, locator.New(policy), converter,
		engine.WithLayout(layout),
		engine.WithPromptTemplate(engine.LoadPromptTemplate(cfg.PromptTemplatePath)),
		engine.WithCapabilities(caps),
		engine.WithSettleDelay(cfg.SettleDelay),
		engine.WithArtifactDeadline(cfg.ArtifactDeadline),
	), nil
}

func buildAgent(cfg config.Config, workDir string) (engine.Agent, engine.Capabilities, error) {
	switch {
	case cfg.UseStubs():
		slog.Info("using stub agent")
		return engine.NewToolAgent(&engine.StubModelClient{}), workbookCaps(workDir), nil

	case cfg.UseCLI():
		slog.Info("using agent CLI", "path", cfg.AgentCLIPath, "model", cfg.AgentCLIModel, "mcp", cfg.ExcelMCPCommand)
		caps := engine.Capabilities{
			WorkDir: workDir,
			MCP:     engine.ExcelMCPConfig(cfg.ExcelMCPCommand),
		}
		agent := engine.NewCLIAgent(cfg.AgentCLIPath,
			engine.WithCLIModel(cfg.AgentCLIModel),
			engine.WithCLIArgs(cfg.AgentCLIArgs...),
		)
		return agent, caps, nil

	case cfg.AgentMode == config.AgentModeModel:
		opts := []engine.OpenAIOption{
			engine.WithModelID(cfg.ModelID),
			engine.WithTemperature(cfg.ModelTemperature),
			engine.WithHTTPTimeout(cfg.HTTPTimeout),
		}
		if cfg.ModelBaseURL != "" {
			opts = append(opts, engine.WithBaseURL(cfg.ModelBaseURL))
		}
		if cfg.ModelAPIKey == "" {
			slog.Warn("no model API key set, calling the model unauthenticated", "model_id", cfg.ModelID)
		}
		slog.Info("using model agent", "model_id", cfg.ModelID, "max_steps", cfg.AgentMaxSteps)
		mc := engine.NewOpenAIClient(cfg.ModelAPIKey, opts...)
		return engine.NewToolAgent(mc, engine.WithMaxSteps(cfg.AgentMaxSteps)), workbookCaps(workDir), nil

	default:
		return nil, engine.Capabilities{}, fmt.Errorf("unknown AGENT_MODE %q (want %s, %s or %s)",
			cfg.AgentMode, config.AgentModeModel, config.AgentModeCLI, config.AgentModeStub)
	}
}

func workbookCaps(workDir string) engine.Capabilities {
	return engine.Capabilities{
		WorkDir: workDir,
		Tools:   []engine.Tool{engine.NewWorkbookTool(workDir)},
	}
}
