// Package config provides centralized configuration for the formconv server and CLI.
// All configurable values are loaded from environment variables with sensible defaults.
package config

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Agent modes.
const (
	AgentModeModel = "model"
	AgentModeCLI   = "cli"
	AgentModeStub  = "stub"
)

// Config holds all configuration values.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// AgentMode selects the agent: "model" (tool loop over a chat model),
	// "cli" (external agent CLI with MCP), or "stub" (offline).
	AgentMode string

	// ModelID is a provider-prefixed model identifier, e.g. "deepinfra/Qwen/Qwen3-Next-80B-A3B-Instruct".
	ModelID string

	// ModelAPIKey authenticates model calls. Empty means an unauthenticated call.
	ModelAPIKey string

	// ModelBaseURL overrides the base URL derived from the ModelID prefix.
	ModelBaseURL string

	ModelTemperature float64

	// AgentMaxSteps bounds model turns per tool-agent invocation.
	AgentMaxSteps int

	// AgentCLIPath is the external agent binary used in cli mode.
	AgentCLIPath string

	// AgentCLIModel is passed as --model in cli mode. Empty uses the CLI's default.
	AgentCLIModel string

	// AgentCLIArgs are extra whitespace-separated CLI arguments.
	AgentCLIArgs []string

	// ExcelMCPCommand launches the excel MCP server handed to the CLI agent.
	ExcelMCPCommand string

	// PromptTemplatePath is read at startup; the embedded template is used if absent.
	PromptTemplatePath string

	// OutputDir holds generated workbooks, results, and diagnostics.
	OutputDir string

	// OutputRetention removes output files older than this. Zero disables the sweep.
	OutputRetention time.Duration

	ConverterURL     string
	ConverterField   string
	ConverterTimeout time.Duration

	// SettleDelay is the pause after the agent returns before the first artifact lookup.
	SettleDelay time.Duration

	// ArtifactDeadline bounds the whole artifact await.
	ArtifactDeadline time.Duration

	// SearchPolicyFile is an optional YAML file with the artifact search strategies.
	SearchPolicyFile string

	// HTTPTimeout is the timeout for model API requests.
	HTTPTimeout time.Duration

	// WorkerInterval is the polling interval for the background worker.
	WorkerInterval time.Duration

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		LogLevel:           envOr("LOG_LEVEL", "info"),
		Port:               envOr("PORT", "5001"),
		DBPath:             envOr("DB_PATH", "formconv.db"),
		AgentMode:          strings.ToLower(envOr("AGENT_MODE", AgentModeModel)),
		ModelID:            envOr("MODEL_ID", "deepinfra/Qwen/Qwen3-Next-80B-A3B-Instruct"),
		ModelAPIKey:        envOr("MODEL_API_KEY", os.Getenv("DEEPINFRA_API_KEY")),
		ModelBaseURL:       os.Getenv("MODEL_BASE_URL"),
		ModelTemperature:   envFloat("MODEL_TEMPERATURE", 0.6),
		AgentMaxSteps:      envInt("AGENT_MAX_STEPS", 6),
		AgentCLIPath:       envOr("AGENT_CLI_PATH", "claude"),
		AgentCLIModel:      os.Getenv("AGENT_CLI_MODEL"),
		AgentCLIArgs:       strings.Fields(os.Getenv("AGENT_CLI_ARGS")),
		ExcelMCPCommand:    envOr("EXCEL_MCP_COMMAND", "uvx excel-mcp-server stdio"),
		PromptTemplatePath: envOr("PROMPT_TEMPLATE_PATH", "xlsform_prompt.txt"),
		OutputDir:          envOr("OUTPUT_DIR", "output_files"),
		OutputRetention:    envDuration("OUTPUT_RETENTION", 0),
		ConverterURL:       envOr("CONVERTER_URL", "https://formconv.herokuapp.com/result.json"),
		ConverterField:     envOr("CONVERTER_FIELD", "excelFile"),
		ConverterTimeout:   envDuration("CONVERTER_TIMEOUT", 30*time.Second),
		SettleDelay:        envDuration("SETTLE_DELAY", 2*time.Second),
		ArtifactDeadline:   envDuration("ARTIFACT_DEADLINE", 20*time.Second),
		SearchPolicyFile:   os.Getenv("SEARCH_POLICY_FILE"),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", 120*time.Second),
		WorkerInterval:     envDuration("WORKER_INTERVAL", 3*time.Second),
		CORSOrigin:         envOr("CORS_ORIGIN", "*"),
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UseStubs returns true when the offline stub agent was requested.
func (c Config) UseStubs() bool {
	return c.AgentMode == AgentModeStub
}

// UseCLI returns true when an external agent CLI should produce the workbook.
func (c Config) UseCLI() bool {
	return c.AgentMode == AgentModeCLI
}

// LoadEnvFile reads KEY=VALUE lines from path into the process environment.
// Variables already set in the environment are left alone. It reports
// whether the file was read.
func LoadEnvFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, value)
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("read env file", "path", path, "error", err)
	}
	return true
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
