package models

import "time"

// ReviewStatus represents the lifecycle state of a review session.
type ReviewStatus string

const (
	StatusPending       ReviewStatus = "pending"
	StatusInProgress    ReviewStatus = "in_progress"
	StatusHasIssues     ReviewStatus = "has_issues"
	StatusNeedsHuman    ReviewStatus = "needs_human"
	StatusApproved      ReviewStatus = "approved"
	StatusMaxIterations ReviewStatus = "max_iterations"
	StatusError         ReviewStatus = "error"
)

// Terminal reports whether no further iterations may occur in this status.
func (s ReviewStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusMaxIterations, StatusError:
		return true
	}
	return false
}

// Active reports whether the session is awaiting further review work.
func (s ReviewStatus) Active() bool {
	return s == StatusInProgress || s == StatusNeedsHuman
}

// IssueSeverity classifies a single review issue.
type IssueSeverity string

const (
	SeverityCritical   IssueSeverity = "critical"
	SeverityWarning    IssueSeverity = "warning"
	SeveritySuggestion IssueSeverity = "suggestion"
)

// ParseSeverity coerces a raw severity string, defaulting to suggestion.
func ParseSeverity(s string) IssueSeverity {
	switch IssueSeverity(s) {
	case SeverityCritical, SeverityWarning, SeveritySuggestion:
		return IssueSeverity(s)
	}
	return SeveritySuggestion
}

// Issue is a single problem found during a review pass.
type Issue struct {
	Severity     IssueSeverity `json:"severity"`
	File         string        `json:"file,omitempty"`
	Line         int           `json:"line,omitempty"`
	Message      string        `json:"message"`
	SuggestedFix string        `json:"suggested_fix,omitempty"`
}

// Verdict statuses reported by the reviewer agent itself. These are distinct
// from ReviewStatus: they describe one pass's outcome, not the session.
const (
	VerdictApproved           = "approved"
	VerdictHasIssues          = "has_issues"
	VerdictNeedsClarification = "needs_clarification"
)

// Verdict is the structured interpretation of one reviewer pass.
type Verdict struct {
	Status    string   `json:"status"`
	Issues    []Issue  `json:"issues"`
	Questions []string `json:"questions"`
	Summary   string   `json:"summary"`
}

// Iteration records one completed review pass in a session's history.
type Iteration struct {
	Iteration        int               `json:"iteration"`
	ReviewerFeedback string            `json:"reviewer_feedback"`
	ExternalChanges  string            `json:"external_changes,omitempty"`
	HumanAnswers     map[string]string `json:"human_answers,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// ReviewSession is the aggregate root of one review lifecycle.
//
// Iteration always equals len(History) after a successful append, and only
// the session manager mutates a session. AgentSessionID correlates the
// review to an upstream conversational session; it is best-effort and holds
// "unknown" when unresolvable.
type ReviewSession struct {
	ReviewID       string       `json:"review_id"`
	AgentSessionID string       `json:"agent_session_id"`
	ProjectPath    string       `json:"project_path"`
	Files          []string     `json:"files"`
	Iteration      int          `json:"iteration"`
	MaxIterations  int          `json:"max_iterations"`
	History        []Iteration  `json:"history"`
	PendingQs      []string     `json:"pending_questions"`
	Status         ReviewStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Clone returns a deep copy so stored snapshots cannot alias caller state.
func (s *ReviewSession) Clone() *ReviewSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Files = append([]string(nil), s.Files...)
	out.PendingQs = append([]string(nil), s.PendingQs...)
	out.History = make([]Iteration, len(s.History))
	for i, it := range s.History {
		out.History[i] = it
		if it.HumanAnswers != nil {
			answers := make(map[string]string, len(it.HumanAnswers))
			for k, v := range it.HumanAnswers {
				answers[k] = v
			}
			out.History[i].HumanAnswers = answers
		}
	}
	return &out
}

// Result is the outcome snapshot of a single orchestration step. Feedback
// holds the full reviewer feedback recorded in the session history for the
// pass; RawOutput is set only when the output resisted interpretation.
type Result struct {
	Status    ReviewStatus `json:"status"`
	Iteration int          `json:"iteration"`
	Issues    []Issue      `json:"issues"`
	Questions []string     `json:"questions"`
	Feedback  string       `json:"feedback"`
	Summary   string       `json:"summary"`
	RawOutput string       `json:"raw_output,omitempty"`
}
