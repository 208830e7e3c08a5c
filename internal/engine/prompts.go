package engine

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

//go:embed prompts/xlsform_prompt.txt
var defaultPromptTemplate string

// LoadPromptTemplate reads the XLSForm template from path, falling back to
// the built-in template when the file is absent or empty.
func LoadPromptTemplate(path string) string {
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil && strings.TrimSpace(string(b)) != "" {
			return string(b)
		}
		if err != nil && !os.IsNotExist(err) {
			slog.Warn("read prompt template", "path", path, "error", err)
		}
	}
	return defaultPromptTemplate
}

// buildXLSFormPrompt combines the template, the user's query, and the
// structural requirements the conversion service depends on.
func buildXLSFormPrompt(template, query, basename string) string {
	return fmt.Sprintf(`%s

User Query: %s

Please generate a complete XLSForm structure that addresses the user's requirements. Return the result as a valid Excel file with the sheets (survey, choices, settings) properly formatted. Save the file as '%s' in the current folder.

Important instructions:
- ALWAYS create ALL three required sheets: survey, choices, and settings (even if empty)
- DO NOT create any extra sheets like 'Sheet1'
- Make sure to save the file properly in the current directory
- Avoid any complex constraints or validation formulas
- Ensure the file is saved with the exact name '%s'
- The choices sheet must have the headers 'list_name', 'name', 'label' even if empty
- Every sheet must have headers in the first row
`, strings.TrimSpace(template), query, basename, basename)
}

func buildAgentSystemPrompt(tools []Tool) string {
	var b strings.Builder
	b.WriteString(`You are an agent that completes tasks by calling tools.

Reply with exactly ONE JSON object per turn and nothing else:
- to call a tool: {"tool": "<tool name>", "arguments": {...}}
- when the task is done: {"final_answer": "<short summary>"}

After each tool call you will receive an Observation or an Error. Fix errors and try again.

Available tools:
`)
	for _, t := range tools {
		fmt.Fprintf(&b, "\n## %s\n%s\n", t.Name(), t.Description())
	}
	return b.String()
}
