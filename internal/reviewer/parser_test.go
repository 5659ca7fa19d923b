package reviewer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhq/gavel/internal/models"
)

// event builds a one-line assistant message record with text-block content.
func event(eventType, text string) string {
	record := map[string]any{
		"type": eventType,
		"message": map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": text},
			},
		},
	}
	data, _ := json.Marshal(record)
	return string(data)
}

const approvedJSON = `{"status": "approved", "issues": [], "questions": [], "summary": "looks good"}`

func TestParseVerdictFromBlockContent(t *testing.T) {
	raw := event("message", approvedJSON)

	v := ParseVerdict(raw)
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictApproved, v.Status)
	assert.Empty(t, v.Issues)
	assert.Equal(t, "looks good", v.Summary)
}

func TestParseVerdictFromStringContent(t *testing.T) {
	record := map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": approvedJSON,
		},
	}
	data, err := json.Marshal(record)
	require.NoError(t, err)

	v := ParseVerdict(string(data))
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictApproved, v.Status)
}

func TestParseVerdictLastRecordWins(t *testing.T) {
	first := event("message", `{"status": "has_issues", "issues": [], "questions": [], "summary": "old pass"}`)
	second := event("message", approvedJSON)

	v := ParseVerdict(first + "\n" + second)
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictApproved, v.Status)
}

func TestParseVerdictSkipsNonMessageRecords(t *testing.T) {
	raw := event("message", approvedJSON) + "\n" +
		`{"type": "token_count", "count": 941}` + "\n" +
		`{"type": "tool_use", "name": "read_file"}`

	v := ParseVerdict(raw)
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictApproved, v.Status)
}

func TestParseVerdictWrappedInProse(t *testing.T) {
	text := "Here is my review:\n\n" + approvedJSON + "\n\nLet me know if you have questions."

	v := ParseVerdict(event("message", text))
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictApproved, v.Status)
}

func TestParseVerdictIssuesAndDefaults(t *testing.T) {
	text := `{"issues": [{"severity": "critical", "file": "main.go", "line": 10, "message": "nil deref"}, {"severity": "blocker", "message": "odd severity"}]}`

	v := ParseVerdict(event("message", text))
	require.NotNil(t, v)
	// Missing status defaults to has_issues, unknown severity to suggestion.
	assert.Equal(t, models.VerdictHasIssues, v.Status)
	require.Len(t, v.Issues, 2)
	assert.Equal(t, models.SeverityCritical, v.Issues[0].Severity)
	assert.Equal(t, "main.go", v.Issues[0].File)
	assert.Equal(t, 10, v.Issues[0].Line)
	assert.Equal(t, models.SeveritySuggestion, v.Issues[1].Severity)
	assert.NotNil(t, v.Questions)
	assert.Empty(t, v.Questions)
}

func TestParseVerdictQuestions(t *testing.T) {
	text := `{"status": "needs_clarification", "questions": ["Is the retry intentional?"], "summary": "need input"}`

	v := ParseVerdict(event("message", text))
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictNeedsClarification, v.Status)
	assert.Equal(t, []string{"Is the retry intentional?"}, v.Questions)
}

func TestParseVerdictFallsBackToEarlierRecord(t *testing.T) {
	good := event("message", approvedJSON)
	bad := event("message", "no json here at all")

	v := ParseVerdict(good + "\n" + bad)
	require.NotNil(t, v)
	assert.Equal(t, models.VerdictApproved, v.Status)
}

func TestParseVerdictNoVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty input", ""},
		{"plain text", "the agent crashed before writing anything"},
		{"no message records", `{"type": "token_count"}` + "\n" + `{"type": "error"}`},
		{"message without json", event("message", "I could not complete the review.")},
		{"unbalanced braces", event("message", `{"status": "approved"`)},
		{"invalid json in braces", event("message", `{status: approved}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, ParseVerdict(tt.raw))
		})
	}
}

func TestExtractObjectIgnoresBracesInStrings(t *testing.T) {
	in := `prefix {"summary": "use map[string]int{} here", "status": "approved"} suffix`

	span := extractObject(in)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(span), &v))
	assert.Equal(t, "approved", v["status"])
}

func TestBuildPromptIncludesInputs(t *testing.T) {
	prompt := BuildPrompt([]string{"a.go", "b.go"}, "refactored the store", []string{"security", "concurrency"})

	assert.Contains(t, prompt, "- a.go")
	assert.Contains(t, prompt, "- b.go")
	assert.Contains(t, prompt, "Context: refactored the store")
	assert.Contains(t, prompt, "Focus areas: security, concurrency")
	assert.Contains(t, prompt, `"status": "approved" | "has_issues" | "needs_clarification"`)
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt([]string{"a.go"}, "", nil)

	assert.NotContains(t, prompt, "Context:")
	assert.NotContains(t, prompt, "Focus areas:")
}
