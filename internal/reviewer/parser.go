package reviewer

import (
	"encoding/json"
	"strings"

	"github.com/gavelhq/gavel/internal/models"
)

// streamEvent is one newline-delimited record of the agent's event stream.
// Only the fields the parser cares about are declared; everything else is
// ignored.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// rawVerdict tolerates partial verdict objects; defaults are applied when
// mapping to models.Verdict.
type rawVerdict struct {
	Status string `json:"status"`
	Issues []struct {
		Severity     string `json:"severity"`
		File         string `json:"file"`
		Line         int    `json:"line"`
		Message      string `json:"message"`
		SuggestedFix string `json:"suggested_fix"`
	} `json:"issues"`
	Questions []string `json:"questions"`
	Summary   string   `json:"summary"`
}

// ParseVerdict extracts a structured verdict from the agent's raw output.
//
// The output is a stream of JSON event records, scanned from the last line
// to the first (the most recent event is authoritative) for an assistant
// message. Within that message's content, the first balanced {...} span in
// a text block is decoded as the verdict; the agent may wrap it in prose.
// Returns nil when no record yields a decodable verdict: a recognized
// "could not interpret output" outcome, not an error.
func ParseVerdict(raw string) *models.Verdict {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Type != "message" && ev.Type != "assistant" {
			continue
		}
		if len(ev.Message.Content) == 0 {
			continue
		}

		// Content is either an ordered list of blocks or a bare string.
		var blocks []contentBlock
		if err := json.Unmarshal(ev.Message.Content, &blocks); err == nil {
			for _, b := range blocks {
				if b.Type == "text" && b.Text != "" {
					if v := decodeVerdict(b.Text); v != nil {
						return v
					}
				}
			}
			continue
		}

		var text string
		if err := json.Unmarshal(ev.Message.Content, &text); err == nil {
			if v := decodeVerdict(text); v != nil {
				return v
			}
		}
	}

	return nil
}

// decodeVerdict locates the first balanced JSON object in text and decodes
// it defensively. Returns nil when no span decodes.
func decodeVerdict(text string) *models.Verdict {
	span := extractObject(text)
	if span == "" {
		return nil
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(span), &rv); err != nil {
		return nil
	}

	verdict := &models.Verdict{
		Status:    rv.Status,
		Issues:    []models.Issue{},
		Questions: rv.Questions,
		Summary:   rv.Summary,
	}
	if verdict.Status == "" {
		verdict.Status = models.VerdictHasIssues
	}
	if verdict.Questions == nil {
		verdict.Questions = []string{}
	}
	for _, issue := range rv.Issues {
		verdict.Issues = append(verdict.Issues, models.Issue{
			Severity:     models.ParseSeverity(issue.Severity),
			File:         issue.File,
			Line:         issue.Line,
			Message:      issue.Message,
			SuggestedFix: issue.SuggestedFix,
		})
	}
	return verdict
}

// extractObject returns the first balanced {...} span in s, tracking JSON
// string literals so braces inside strings don't unbalance the scan.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
