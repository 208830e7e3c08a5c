package engine

import (
	"context"
	"encoding/json"
	"regexp"
)

var saveAsPattern = regexp.MustCompile(`Save the file as '([^']+)'`)

// StubModelClient answers like a well-behaved model without calling any API
// (for development/testing). The first turn writes a fixed feedback survey
// with write_workbook; every later turn finishes.
type StubModelClient struct{}

func (m *StubModelClient) Chat(_ context.Context, messages []Message) (string, error) {
	if len(messages) > 2 {
		return `{"final_answer": "The XLSForm workbook has been created."}`, nil
	}

	filename := "xlsform_survey.xlsx"
	for _, msg := range messages {
		if sm := saveAsPattern.FindStringSubmatch(msg.Content); sm != nil {
			filename = sm[1]
		}
	}

	call := struct {
		Tool      string            `json:"tool"`
		Arguments writeWorkbookArgs `json:"arguments"`
	}{
		Tool: "write_workbook",
		Arguments: writeWorkbookArgs{
			Filepath: filename,
			Sheets:   stubFeedbackSurvey(),
		},
	}
	b, _ := json.Marshal(call)
	return string(b), nil
}

func stubFeedbackSurvey() []SheetData {
	return []SheetData{
		{Name: SheetSurvey, Rows: [][]string{
			{"type", "name", "label", "required"},
			{"text", "name", "What is your name?", "yes"},
			{"text", "email", "What is your email address?", "yes"},
			{"select_one rating", "rating", "How would you rate our service?", "yes"},
			{"text", "comments", "Any other comments?", ""},
		}},
		{Name: SheetChoices, Rows: [][]string{
			{"list_name", "name", "label"},
			{"rating", "1", "Poor"},
			{"rating", "2", "Fair"},
			{"rating", "3", "Good"},
			{"rating", "4", "Very good"},
			{"rating", "5", "Excellent"},
		}},
		{Name: SheetSettings, Rows: [][]string{
			{"form_title", "form_id"},
			{"Feedback Survey", "feedback_survey"},
		}},
	}
}
