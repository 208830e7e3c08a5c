package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
)

// fakeCLI writes a shell script standing in for the agent CLI.
func fakeCLI(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-agent")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLIAgent_PassesFlagsAndRunsInWorkDir(t *testing.T) {
	cli := fakeCLI(t, `pwd; for a in "$@"; do echo "arg:$a"; done`)
	workDir := t.TempDir()

	agent := NewCLIAgent(cli, WithCLIModel("sonnet"), WithCLIArgs("--verbose"))
	out, err := agent.Invoke(context.Background(), "make a form", Capabilities{
		WorkDir: workDir,
		MCP:     ExcelMCPConfig("uvx excel-mcp-server stdio"),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	wantDir, _ := filepath.EvalSymlinks(workDir)
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	if gotDir != wantDir {
		t.Errorf("working dir = %q, want %q", gotDir, wantDir)
	}

	var args []string
	for _, l := range lines[1:] {
		args = append(args, strings.TrimPrefix(l, "arg:"))
	}
	for _, want := range []string{"--print", "--permission-mode", "bypassPermissions", "--model", "sonnet", "--verbose"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
	if args[len(args)-1] != "make a form" {
		t.Errorf("last arg = %q, want the prompt", args[len(args)-1])
	}

	var cfg MCPConfig
	for i, a := range args {
		if a == "--mcp-config" && i+1 < len(args) {
			if err := json.Unmarshal([]byte(args[i+1]), &cfg); err != nil {
				t.Fatalf("mcp config: %v", err)
			}
		}
	}
	excel, ok := cfg.MCPServers["excel"]
	if !ok || excel.Command != "uvx" || strings.Join(excel.Args, " ") != "excel-mcp-server stdio" {
		t.Errorf("mcp config = %+v", cfg)
	}
}

func TestCLIAgent_NonZeroExit(t *testing.T) {
	cli := fakeCLI(t, `echo partial; echo "auth required" >&2; exit 3`)

	out, err := NewCLIAgent(cli).Invoke(context.Background(), "p", Capabilities{})
	var pe *ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProcessError", err)
	}
	if pe.ExitCode != 3 || pe.Stderr != "auth required" {
		t.Errorf("ProcessError = %+v", pe)
	}
	if !strings.Contains(pe.Error(), "exit code 3") {
		t.Errorf("Error() = %q", pe.Error())
	}
	if strings.TrimSpace(out) != "partial" {
		t.Errorf("transcript = %q", out)
	}
}

func TestCLIAgent_MissingBinary(t *testing.T) {
	_, err := NewCLIAgent(filepath.Join(t.TempDir(), "does-not-exist")).Invoke(context.Background(), "p", Capabilities{})
	var pe *ProcessError
	if !errors.As(err, &pe) || pe.Cause == nil {
		t.Errorf("err = %v, want ProcessError with cause", err)
	}
}

func TestExcelMCPConfig_Empty(t *testing.T) {
	if cfg := ExcelMCPConfig("   "); cfg != nil {
		t.Errorf("ExcelMCPConfig(blank) = %+v, want nil", cfg)
	}
}
