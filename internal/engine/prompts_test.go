package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildXLSFormPrompt(t *testing.T) {
	p := buildXLSFormPrompt("  You are an XLSForm expert.\n", "a patient intake form", "xlsform_survey_20250102_030405.xlsx")

	for _, want := range []string{
		"You are an XLSForm expert.",
		"User Query: a patient intake form",
		"Save the file as 'xlsform_survey_20250102_030405.xlsx'",
		"exact name 'xlsform_survey_20250102_030405.xlsx'",
		"'list_name', 'name', 'label'",
		"survey, choices, and settings",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if m := saveAsPattern.FindStringSubmatch(p); m == nil || m[1] != "xlsform_survey_20250102_030405.xlsx" {
		t.Errorf("stub pattern does not match the prompt: %v", m)
	}
}

func TestLoadPromptTemplate(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.txt")
	os.WriteFile(custom, []byte("Custom template"), 0o644)
	blank := filepath.Join(dir, "blank.txt")
	os.WriteFile(blank, []byte("  \n"), 0o644)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"custom file", custom, "Custom template"},
		{"missing file", filepath.Join(dir, "missing.txt"), defaultPromptTemplate},
		{"blank file", blank, defaultPromptTemplate},
		{"no path", "", defaultPromptTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoadPromptTemplate(tt.path); got != tt.want {
				t.Errorf("LoadPromptTemplate(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
	if strings.TrimSpace(defaultPromptTemplate) == "" {
		t.Error("embedded template is empty")
	}
}

func TestBuildAgentSystemPrompt_ListsTools(t *testing.T) {
	p := buildAgentSystemPrompt([]Tool{NewWorkbookTool("")})
	if !strings.Contains(p, "## write_workbook") || !strings.Contains(p, `"final_answer"`) {
		t.Errorf("system prompt = %q", p)
	}
}
