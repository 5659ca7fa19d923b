package reviewer

import (
	"fmt"
	"strings"
)

// BuildPrompt constructs the deterministic review prompt sent to the agent.
// It embeds the file list, optional context and focus areas, and a strict
// JSON output-format instruction the parser relies on.
func BuildPrompt(files []string, reviewContext string, focusAreas []string) string {
	var contextText, focusText string
	if reviewContext != "" {
		contextText = "\nContext: " + reviewContext
	}
	if len(focusAreas) > 0 {
		focusText = "\nFocus areas: " + strings.Join(focusAreas, ", ")
	}

	var fileList strings.Builder
	for _, f := range files {
		fmt.Fprintf(&fileList, "- %s\n", f)
	}

	return fmt.Sprintf(`You are a code reviewer. Review the following files for bugs, security issues, and improvements.
%s%s

Files to review:
%s
Please analyze the code and provide your response in the following JSON format:
{
  "status": "approved" | "has_issues" | "needs_clarification",
  "issues": [
    {
      "severity": "critical" | "warning" | "suggestion",
      "file": "path/to/file.go",
      "line": 42,
      "message": "Description of the issue",
      "suggested_fix": "How to fix it"
    }
  ],
  "questions": ["Any questions that need clarification from the developer"],
  "summary": "Brief summary of the review"
}

If the code looks good with no issues, use status "approved" with an empty issues array.
If you find issues, use status "has_issues" and list all issues.
If you need clarification before completing the review, use status "needs_clarification".

IMPORTANT: Respond ONLY with the JSON object, no markdown or additional text.`,
		contextText, focusText, fileList.String())
}
