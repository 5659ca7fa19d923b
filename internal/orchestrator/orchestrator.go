// Package orchestrator drives the review iteration loop. It owns the
// session state machine: the reviewer package produces verdicts, the
// session manager persists, and this package decides what happens next.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/gavelhq/gavel/internal/logging"
	"github.com/gavelhq/gavel/internal/models"
	"github.com/gavelhq/gavel/internal/reviewer"
	"github.com/gavelhq/gavel/internal/session"
)

// Orchestrator runs review passes against persisted sessions.
type Orchestrator struct {
	manager *session.Manager
	invoker reviewer.Invoker
	log     *logging.Logger
	timeout time.Duration
}

// New creates an Orchestrator. timeout <= 0 falls back to the reviewer's
// default.
func New(manager *session.Manager, invoker reviewer.Invoker, log *logging.Logger, timeout time.Duration) *Orchestrator {
	if log == nil {
		log = logging.NewConsole(nil)
	}
	return &Orchestrator{
		manager: manager,
		invoker: invoker,
		log:     log,
		timeout: timeout,
	}
}

// StepOptions carries per-invocation inputs that are not part of the
// persisted session.
type StepOptions struct {
	Context    string
	FocusAreas []string
}

// Step runs exactly one review pass for the session and resolves its next
// status.
//
// Terminal sessions are returned untouched. An invocation failure moves the
// session to error without recording an iteration; the history only ever
// holds completed passes. When the agent's output cannot be interpreted,
// the raw text is recorded as feedback and the pass counts as has_issues;
// an unreadable reply never approves.
//
// Status resolution order: approval wins outright, then the iteration
// budget, then clarification requests, then remaining issues.
func (o *Orchestrator) Step(ctx context.Context, reviewID string, opts StepOptions) (*models.Result, error) {
	sess, err := o.manager.Get(reviewID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("review session %s not found", reviewID)
	}
	if sess.Status.Terminal() {
		return resultFor(sess, nil, "", lastFeedback(sess)), nil
	}

	if _, err := o.manager.UpdateStatus(reviewID, models.StatusInProgress); err != nil {
		return nil, fmt.Errorf("mark in progress: %w", err)
	}

	o.log.Info("review.invoke", reviewID, fmt.Sprintf("iteration %d of %d", sess.Iteration+1, sess.MaxIterations), map[string]any{
		"files": sess.Files,
	})

	raw := o.invoker.Invoke(ctx, reviewer.Request{
		Files:      sess.Files,
		WorkingDir: sess.ProjectPath,
		Context:    opts.Context,
		FocusAreas: opts.FocusAreas,
		Timeout:    o.timeout,
	})
	if !raw.OK {
		o.log.Error("review.invoke_failed", reviewID, raw.Err, map[string]any{
			"kind": string(raw.Kind),
		})
		if _, err := o.manager.UpdateStatus(reviewID, models.StatusError); err != nil {
			return nil, fmt.Errorf("mark error: %w", err)
		}
		return &models.Result{
			Status:    models.StatusError,
			Iteration: sess.Iteration,
			Issues:    []models.Issue{},
			Questions: []string{},
			Summary:   fmt.Sprintf("reviewer invocation failed (%s): %s", raw.Kind, raw.Err),
		}, nil
	}

	verdict := reviewer.ParseVerdict(raw.RawOutput)
	rawFallback := ""
	if verdict == nil {
		rawFallback = raw.RawOutput
		verdict = &models.Verdict{
			Status:    models.VerdictHasIssues,
			Issues:    []models.Issue{},
			Questions: []string{},
			Summary:   "reviewer output could not be interpreted; raw text recorded",
		}
		o.log.Warn("review.unparsed_output", reviewID, "recording raw reviewer text", nil)
	}

	feedback := feedbackText(verdict, rawFallback)
	sess, err = o.manager.AddIteration(reviewID, feedback, "")
	if err != nil {
		return nil, fmt.Errorf("record iteration: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("review session %s disappeared mid-step", reviewID)
	}

	status := o.resolveStatus(sess, verdict)
	switch status {
	case models.StatusNeedsHuman:
		sess, err = o.manager.SetPendingQuestions(reviewID, verdict.Questions)
	default:
		sess, err = o.manager.UpdateStatus(reviewID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve status: %w", err)
	}

	o.log.Info("review.step", reviewID, string(status), map[string]any{
		"iteration": sess.Iteration,
		"issues":    len(verdict.Issues),
		"questions": len(verdict.Questions),
	})
	return resultFor(sess, verdict, rawFallback, feedback), nil
}

// resolveStatus maps a verdict onto the session's next status. Approval
// short-circuits everything, including an exhausted iteration budget.
func (o *Orchestrator) resolveStatus(sess *models.ReviewSession, verdict *models.Verdict) models.ReviewStatus {
	if verdict.Status == models.VerdictApproved {
		return models.StatusApproved
	}
	if o.manager.MaxIterationsReached(sess) {
		return models.StatusMaxIterations
	}
	if verdict.Status == models.VerdictNeedsClarification || len(verdict.Questions) > 0 {
		return models.StatusNeedsHuman
	}
	return models.StatusHasIssues
}

// Run repeats review passes until the session leaves has_issues, applying
// the loose approval heuristic after every pass: affirmative phrasing in
// the feedback counts as approval even without a structured verdict, and
// it is checked before a max_iterations resolution is accepted, so the
// pass that exhausts the budget can still approve. Used by the unattended
// CLI flow; the strict single-pass path never does this.
func (o *Orchestrator) Run(ctx context.Context, reviewID string, opts StepOptions) (*models.Result, error) {
	for {
		result, err := o.Step(ctx, reviewID, opts)
		if err != nil {
			return nil, err
		}
		if result.Status == models.StatusHasIssues || result.Status == models.StatusMaxIterations {
			if FeedbackApproval(result.Summary) || FeedbackApproval(result.RawOutput) {
				sess, err := o.manager.UpdateStatus(reviewID, models.StatusApproved)
				if err != nil {
					return nil, fmt.Errorf("mark approved: %w", err)
				}
				o.log.Info("review.heuristic_approval", reviewID, "feedback reads as approval", nil)
				approved := resultFor(sess, nil, "", result.Feedback)
				approved.Summary = result.Summary
				approved.Issues = result.Issues
				return approved, nil
			}
		}
		if result.Status != models.StatusHasIssues {
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// feedbackText renders what the history records for one pass: the verdict
// summary, an explicit approval line, or the raw output when nothing parsed.
func feedbackText(verdict *models.Verdict, rawFallback string) string {
	if rawFallback != "" {
		return rawFallback
	}
	if verdict.Status == models.VerdictApproved {
		if verdict.Summary != "" {
			return "approved: " + verdict.Summary
		}
		return "approved"
	}
	if verdict.Summary != "" {
		return verdict.Summary
	}
	return "reviewer returned no summary"
}

// lastFeedback returns the feedback recorded for the most recent pass.
func lastFeedback(sess *models.ReviewSession) string {
	if len(sess.History) == 0 {
		return ""
	}
	return sess.History[len(sess.History)-1].ReviewerFeedback
}

// resultFor snapshots a session (plus the pass's verdict, when there was
// one) into a Result.
func resultFor(sess *models.ReviewSession, verdict *models.Verdict, rawFallback, feedback string) *models.Result {
	result := &models.Result{
		Status:    sess.Status,
		Iteration: sess.Iteration,
		Issues:    []models.Issue{},
		Questions: append([]string(nil), sess.PendingQs...),
		Feedback:  feedback,
		RawOutput: rawFallback,
	}
	if result.Questions == nil {
		result.Questions = []string{}
	}
	if verdict != nil {
		result.Issues = append(result.Issues, verdict.Issues...)
		result.Summary = verdict.Summary
		if len(verdict.Questions) > 0 {
			result.Questions = append([]string(nil), verdict.Questions...)
		}
	}
	return result
}
