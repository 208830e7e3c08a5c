package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/yangwenmai/formconv/internal/config"
	"github.com/yangwenmai/formconv/internal/engine"
)

func testConfig(t *testing.T, mode string) config.Config {
	t.Helper()
	return config.Config{
		AgentMode:        mode,
		ModelID:          "deepinfra/Qwen/Qwen3-Next-80B-A3B-Instruct",
		AgentMaxSteps:    4,
		AgentCLIPath:     "claude",
		ExcelMCPCommand:  "uvx excel-mcp-server stdio",
		OutputDir:        filepath.Join(t.TempDir(), "out"),
		ConverterURL:     "http://127.0.0.1:1/result.json",
		ConverterField:   "excelFile",
		ConverterTimeout: time.Second,
		SettleDelay:      time.Millisecond,
		ArtifactDeadline: time.Second,
		HTTPTimeout:      time.Second,
	}
}

func TestBuildPipeline_Modes(t *testing.T) {
	for _, mode := range []string{config.AgentModeModel, config.AgentModeCLI, config.AgentModeStub} {
		cfg := testConfig(t, mode)
		p, err := BuildPipeline(cfg)
		if err != nil {
			t.Fatalf("%s: BuildPipeline: %v", mode, err)
		}
		if p.Layout().Dir != cfg.OutputDir {
			t.Errorf("%s: layout dir = %q, want %q", mode, p.Layout().Dir, cfg.OutputDir)
		}
	}
}

func TestBuildPipeline_UnknownMode(t *testing.T) {
	_, err := BuildPipeline(testConfig(t, "telepathy"))
	if err == nil || !strings.Contains(err.Error(), "telepathy") {
		t.Fatalf("err = %v, want unknown mode error", err)
	}
}

func TestBuildPipeline_SearchPolicyFile(t *testing.T) {
	cfg := testConfig(t, config.AgentModeStub)

	cfg.SearchPolicyFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := BuildPipeline(cfg); err == nil {
		t.Error("expected error for a missing policy file")
	}

	cfg.SearchPolicyFile = filepath.Join(t.TempDir(), "policy.yaml")
	policy := "strategies:\n  - type: workdir\n"
	if err := os.WriteFile(cfg.SearchPolicyFile, []byte(policy), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := BuildPipeline(cfg); err != nil {
		t.Errorf("BuildPipeline with policy file: %v", err)
	}
}

func TestBuildAgent_CLIModelAndArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	cli := filepath.Join(t.TempDir(), "fake-agent")
	script := "#!/bin/sh\nfor a in \"$@\"; do echo \"$a\"; done\n"
	if err := os.WriteFile(cli, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, config.AgentModeCLI)
	cfg.AgentCLIPath = cli
	cfg.AgentCLIModel = "sonnet"
	cfg.AgentCLIArgs = []string{"--max-turns", "8"}

	agent, caps, err := buildAgent(cfg, t.TempDir())
	if err != nil {
		t.Fatalf("buildAgent: %v", err)
	}
	if caps.MCP == nil {
		t.Error("cli mode should hand the agent an MCP config")
	}

	out, err := agent.Invoke(context.Background(), "make a form", caps)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	args := strings.Split(strings.TrimSpace(out), "\n")
	i := slices.Index(args, "--model")
	if i < 0 || i+1 >= len(args) || args[i+1] != "sonnet" {
		t.Errorf("args %v, want --model sonnet", args)
	}
	if !slices.Contains(args, "--max-turns") || !slices.Contains(args, "8") {
		t.Errorf("args %v missing extra CLI args", args)
	}
}

func TestBuildPipeline_DiagnosticInOutputDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversion backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Chdir(t.TempDir())
	cfg := testConfig(t, config.AgentModeStub)
	cfg.ConverterURL = srv.URL
	p, err := BuildPipeline(cfg)
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}

	_, err = p.Generate(context.Background(), "feedback form")
	if !errors.Is(err, engine.ErrConversionServerError) {
		t.Fatalf("err = %v, want ErrConversionServerError", err)
	}
	diag, err := os.ReadFile(p.Layout().DiagnosticPath())
	if err != nil {
		t.Fatalf("diagnostic not written to the output dir: %v", err)
	}
	if !strings.Contains(string(diag), "Status Code: 502") {
		t.Errorf("diagnostic = %s", diag)
	}
}
