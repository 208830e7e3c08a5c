package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")

	content := `# comment line
FOO_TEST_KEY=hello
BAR_TEST_KEY="quoted value"
BAZ_TEST_KEY='single quoted'
export EXPORTED_TEST_KEY=exported

EMPTY_LINE_ABOVE=works
NO_VALUE_LINE
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	keys := []string{"FOO_TEST_KEY", "BAR_TEST_KEY", "BAZ_TEST_KEY", "EXPORTED_TEST_KEY", "EMPTY_LINE_ABOVE", "NO_VALUE_LINE"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	if !LoadEnvFile(envFile) {
		t.Fatal("LoadEnvFile returned false for an existing file")
	}

	tests := []struct {
		key  string
		want string
	}{
		{"FOO_TEST_KEY", "hello"},
		{"BAR_TEST_KEY", "quoted value"},
		{"BAZ_TEST_KEY", "single quoted"},
		{"EXPORTED_TEST_KEY", "exported"},
		{"EMPTY_LINE_ABOVE", "works"},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("os.Getenv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
	if _, ok := os.LookupEnv("NO_VALUE_LINE"); ok {
		t.Error("a line without '=' should be ignored")
	}
}

func TestLoadEnvFile_RealEnvTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")

	if err := os.WriteFile(envFile, []byte("PRECEDENCE_TEST=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRECEDENCE_TEST", "from-env")

	LoadEnvFile(envFile)

	if got := os.Getenv("PRECEDENCE_TEST"); got != "from-env" {
		t.Errorf("env var = %q, want %q (real env should take precedence)", got, "from-env")
	}
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	if LoadEnvFile("/nonexistent/path/.env") {
		t.Error("LoadEnvFile should report false for a missing file")
	}
}

var configKeys = []string{
	"LOG_LEVEL", "PORT", "DB_PATH", "AGENT_MODE",
	"MODEL_ID", "MODEL_API_KEY", "DEEPINFRA_API_KEY", "MODEL_BASE_URL", "MODEL_TEMPERATURE",
	"AGENT_MAX_STEPS", "AGENT_CLI_PATH", "AGENT_CLI_MODEL", "AGENT_CLI_ARGS", "EXCEL_MCP_COMMAND", "PROMPT_TEMPLATE_PATH",
	"OUTPUT_DIR", "OUTPUT_RETENTION",
	"CONVERTER_URL", "CONVERTER_FIELD", "CONVERTER_TIMEOUT",
	"SETTLE_DELAY", "ARTIFACT_DEADLINE", "SEARCH_POLICY_FILE",
	"HTTP_TIMEOUT", "WORKER_INTERVAL", "CORS_ORIGIN",
}

// clearConfigEnv unsets every config key for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := Load()

	if cfg.Port != "5001" {
		t.Errorf("Port = %q, want %q", cfg.Port, "5001")
	}
	if cfg.AgentMode != AgentModeModel {
		t.Errorf("AgentMode = %q, want %q", cfg.AgentMode, AgentModeModel)
	}
	if cfg.ModelID != "deepinfra/Qwen/Qwen3-Next-80B-A3B-Instruct" {
		t.Errorf("ModelID = %q", cfg.ModelID)
	}
	if cfg.ModelAPIKey != "" {
		t.Errorf("ModelAPIKey = %q, want empty", cfg.ModelAPIKey)
	}
	if cfg.ModelTemperature != 0.6 {
		t.Errorf("ModelTemperature = %v, want 0.6", cfg.ModelTemperature)
	}
	if cfg.OutputDir != "output_files" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.ConverterURL != "https://formconv.herokuapp.com/result.json" {
		t.Errorf("ConverterURL = %q", cfg.ConverterURL)
	}
	if cfg.ConverterField != "excelFile" {
		t.Errorf("ConverterField = %q", cfg.ConverterField)
	}
	if cfg.ConverterTimeout != 30*time.Second {
		t.Errorf("ConverterTimeout = %v, want 30s", cfg.ConverterTimeout)
	}
	if cfg.SettleDelay != 2*time.Second || cfg.ArtifactDeadline != 20*time.Second {
		t.Errorf("SettleDelay = %v, ArtifactDeadline = %v", cfg.SettleDelay, cfg.ArtifactDeadline)
	}
	if cfg.OutputRetention != 0 {
		t.Errorf("OutputRetention = %v, want disabled", cfg.OutputRetention)
	}
	if cfg.WorkerInterval != 3*time.Second {
		t.Errorf("WorkerInterval = %v, want 3s", cfg.WorkerInterval)
	}
	if cfg.AgentMaxSteps != 6 {
		t.Errorf("AgentMaxSteps = %d, want 6", cfg.AgentMaxSteps)
	}
	if cfg.AgentCLIModel != "" || cfg.AgentCLIArgs != nil {
		t.Errorf("AgentCLIModel = %q, AgentCLIArgs = %v, want unset", cfg.AgentCLIModel, cfg.AgentCLIArgs)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AGENT_MODE", "CLI")
	t.Setenv("MODEL_ID", "openrouter/anthropic/claude-3.5-sonnet")
	t.Setenv("MODEL_TEMPERATURE", "0.2")
	t.Setenv("CONVERTER_TIMEOUT", "5s")
	t.Setenv("OUTPUT_RETENTION", "24h")
	t.Setenv("AGENT_CLI_MODEL", "sonnet")
	t.Setenv("AGENT_CLI_ARGS", "  --verbose   --max-turns 8 ")

	cfg := Load()

	if cfg.AgentCLIModel != "sonnet" {
		t.Errorf("AgentCLIModel = %q", cfg.AgentCLIModel)
	}
	if got := strings.Join(cfg.AgentCLIArgs, "|"); got != "--verbose|--max-turns|8" {
		t.Errorf("AgentCLIArgs = %q", got)
	}

	if !cfg.UseCLI() {
		t.Errorf("AgentMode = %q, want cli", cfg.AgentMode)
	}
	if cfg.ModelID != "openrouter/anthropic/claude-3.5-sonnet" {
		t.Errorf("ModelID = %q", cfg.ModelID)
	}
	if cfg.ModelTemperature != 0.2 {
		t.Errorf("ModelTemperature = %v", cfg.ModelTemperature)
	}
	if cfg.ConverterTimeout != 5*time.Second {
		t.Errorf("ConverterTimeout = %v", cfg.ConverterTimeout)
	}
	if cfg.OutputRetention != 24*time.Hour {
		t.Errorf("OutputRetention = %v", cfg.OutputRetention)
	}
}

func TestLoad_APIKeyFallback(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DEEPINFRA_API_KEY", "di-key")

	if got := Load().ModelAPIKey; got != "di-key" {
		t.Errorf("ModelAPIKey = %q, want DEEPINFRA_API_KEY fallback", got)
	}

	t.Setenv("MODEL_API_KEY", "explicit")
	if got := Load().ModelAPIKey; got != "explicit" {
		t.Errorf("ModelAPIKey = %q, want MODEL_API_KEY to win", got)
	}
}

func TestAgentMode(t *testing.T) {
	tests := []struct {
		mode     string
		wantStub bool
		wantCLI  bool
	}{
		{AgentModeModel, false, false},
		{AgentModeCLI, false, true},
		{AgentModeStub, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := Config{AgentMode: tt.mode}
			if got := cfg.UseStubs(); got != tt.wantStub {
				t.Errorf("UseStubs() = %v, want %v", got, tt.wantStub)
			}
			if got := cfg.UseCLI(); got != tt.wantCLI {
				t.Errorf("UseCLI() = %v, want %v", got, tt.wantCLI)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.in}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvDuration_Invalid(t *testing.T) {
	t.Setenv("TEST_DUR_INVALID", "not-a-duration")

	got := envDuration("TEST_DUR_INVALID", 5*time.Second)
	if got != 5*time.Second {
		t.Errorf("envDuration with invalid value = %v, want fallback 5s", got)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	t.Setenv("TEST_INT_INVALID", "abc")

	got := envInt("TEST_INT_INVALID", 42)
	if got != 42 {
		t.Errorf("envInt with invalid value = %d, want fallback 42", got)
	}
}

func TestEnvFloat_Invalid(t *testing.T) {
	t.Setenv("TEST_FLOAT_INVALID", "warm")

	if got := envFloat("TEST_FLOAT_INVALID", 0.6); got != 0.6 {
		t.Errorf("envFloat with invalid value = %v, want fallback 0.6", got)
	}
}
