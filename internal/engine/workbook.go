package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSForm sheet names and the header fields the choices sheet must carry.
const (
	SheetSurvey   = "survey"
	SheetChoices  = "choices"
	SheetSettings = "settings"
)

var (
	requiredSheets = []string{SheetSurvey, SheetChoices, SheetSettings}
	choicesHeaders = []string{"list_name", "name", "label"}
)

// SheetData is one worksheet: rows of cell values, the first row being the header.
type SheetData struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// WorkbookTool lets an in-process agent write .xlsx files. Relative paths
// resolve against Dir, but any path is accepted: the agent decides where the
// file lands and the locator finds it afterwards.
type WorkbookTool struct {
	Dir string
}

// NewWorkbookTool creates a workbook tool rooted at dir.
func NewWorkbookTool(dir string) *WorkbookTool {
	return &WorkbookTool{Dir: dir}
}

func (t *WorkbookTool) Name() string { return "write_workbook" }

func (t *WorkbookTool) Description() string {
	return `Create or overwrite an Excel .xlsx workbook.
Arguments: {"filepath": "<file name or path>", "sheets": [{"name": "<sheet>", "rows": [["header1","header2"],["v1","v2"]]}]}
Sheets are created in the given order; the first row of each sheet is its header row.`
}

type writeWorkbookArgs struct {
	Filepath string      `json:"filepath"`
	Sheets   []SheetData `json:"sheets"`
}

func (t *WorkbookTool) Call(_ context.Context, raw json.RawMessage) (string, error) {
	var args writeWorkbookArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Filepath) == "" {
		return "", errors.New("filepath is required")
	}

	path := args.Filepath
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.Dir, path)
	}
	if err := WriteWorkbook(path, args.Sheets); err != nil {
		return "", err
	}

	names := make([]string, 0, len(args.Sheets))
	for _, s := range args.Sheets {
		names = append(names, s.Name)
	}
	return fmt.Sprintf("Workbook saved to %s with sheets: %s", path, strings.Join(names, ", ")), nil
}

// WriteWorkbook writes sheets to an .xlsx file at path, creating parent directories.
func WriteWorkbook(path string, sheets []SheetData) error {
	if len(sheets) == 0 {
		return errors.New("at least one sheet is required")
	}
	seen := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		if strings.TrimSpace(s.Name) == "" {
			return errors.New("sheet name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sheet %q", s.Name)
		}
		seen[s.Name] = true
	}

	f := excelize.NewFile()
	defer f.Close()

	// A new file starts with "Sheet1"; rename it so no stray sheet remains.
	if err := f.SetSheetName(f.GetSheetName(0), sheets[0].Name); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	for _, s := range sheets[1:] {
		if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %q: %w", s.Name, err)
		}
	}

	for _, s := range sheets {
		for i, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				return fmt.Errorf("write sheet %q row %d: %w", s.Name, i+1, err)
			}
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// WorkbookReport lists what an XLSForm workbook contains and what it lacks.
type WorkbookReport struct {
	Sheets   []string
	Problems []string
}

// OK reports whether no structural problems were found.
func (r WorkbookReport) OK() bool {
	return len(r.Problems) == 0
}

// InspectWorkbook checks an artifact against the XLSForm layout: exactly the
// survey, choices, and settings sheets, each with a header row, and the
// choices header carrying list_name, name, label.
func InspectWorkbook(path string) (WorkbookReport, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return WorkbookReport{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	report := WorkbookReport{Sheets: f.GetSheetList()}
	for _, name := range requiredSheets {
		if !slices.Contains(report.Sheets, name) {
			report.Problems = append(report.Problems, fmt.Sprintf("missing sheet %q", name))
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return report, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(rows) == 0 || len(rows[0]) == 0 {
			report.Problems = append(report.Problems, fmt.Sprintf("sheet %q has no header row", name))
			continue
		}
		if name == SheetChoices {
			for _, h := range choicesHeaders {
				if !slices.Contains(rows[0], h) {
					report.Problems = append(report.Problems, fmt.Sprintf("choices header missing %q", h))
				}
			}
		}
	}
	for _, name := range report.Sheets {
		if !slices.Contains(requiredSheets, name) {
			report.Problems = append(report.Problems, fmt.Sprintf("unexpected sheet %q", name))
		}
	}
	return report, nil
}
