package orchestrator

import (
	"strings"

	"github.com/gavelhq/gavel/internal/models"
)

// approvalPhrases are the affirmations the loose heuristic accepts. The
// match is case-insensitive substring, so "LGTM!" and "Approved with minor
// nits" both count.
var approvalPhrases = []string{"lgtm", "approved", "no issues"}

// VerdictApproval is the strict strategy: only an explicit approved status
// in a structured verdict counts.
func VerdictApproval(v *models.Verdict) bool {
	return v != nil && v.Status == models.VerdictApproved
}

// FeedbackApproval is the loose strategy used by the unattended loop: any
// approval phrase appearing in free-text feedback counts. It deliberately
// over-approves relative to VerdictApproval; the two are kept separate so
// the strict path never inherits the fuzziness.
func FeedbackApproval(feedback string) bool {
	if feedback == "" {
		return false
	}
	lower := strings.ToLower(feedback)
	for _, phrase := range approvalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
