package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhq/gavel/internal/models"
	"github.com/gavelhq/gavel/internal/reviewer"
	"github.com/gavelhq/gavel/internal/session"
	"github.com/gavelhq/gavel/internal/store"
)

// stubInvoker replays canned results, one per invocation, and repeats the
// last one when exhausted.
type stubInvoker struct {
	results []reviewer.RawResult
	calls   int
}

func (s *stubInvoker) Invoke(_ context.Context, _ reviewer.Request) reviewer.RawResult {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx]
}

// verdictOutput wraps a verdict JSON object in an assistant message record.
func verdictOutput(t *testing.T, verdict string) reviewer.RawResult {
	t.Helper()
	record := map[string]any{
		"type": "message",
		"message": map[string]any{
			"content": []map[string]string{{"type": "text", "text": verdict}},
		},
	}
	data, err := json.Marshal(record)
	require.NoError(t, err)
	return reviewer.RawResult{OK: true, RawOutput: string(data)}
}

func newTestEngine(t *testing.T, maxIterations int, inv reviewer.Invoker) (*Orchestrator, *session.Manager, string) {
	t.Helper()
	manager := session.NewManager(store.NewMemoryStore())
	sess, err := manager.Create([]string{"main.go"}, "/tmp/proj", maxIterations, "agent")
	require.NoError(t, err)
	return New(manager, inv, nil, 0), manager, sess.ReviewID
}

func TestStepApproved(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "approved", "issues": [], "questions": [], "summary": "clean"}`),
	}}
	orch, manager, reviewID := newTestEngine(t, 5, inv)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, 1, result.Iteration)
	assert.Equal(t, "clean", result.Summary)

	sess, err := manager.Get(reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sess.Status)
	assert.Len(t, sess.History, 1)
}

func TestStepApprovalBeatsIterationBudget(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "approved", "issues": [], "questions": [], "summary": "finally"}`),
	}}
	orch, _, reviewID := newTestEngine(t, 1, inv)

	// The pass that exhausts the budget also approves; approval wins.
	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
}

func TestStepBudgetExhaustion(t *testing.T) {
	hasIssues := verdictOutput(t, `{"status": "has_issues", "issues": [{"severity": "warning", "message": "x"}], "questions": [], "summary": "still broken"}`)
	inv := &stubInvoker{results: []reviewer.RawResult{hasIssues}}
	orch, _, reviewID := newTestEngine(t, 2, inv)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusHasIssues, result.Status)
	assert.Equal(t, 1, result.Iteration)

	result, err = orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMaxIterations, result.Status)
	assert.Equal(t, 2, result.Iteration)
}

func TestStepNeedsClarification(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "needs_clarification", "issues": [], "questions": ["intended?"], "summary": "need input"}`),
		verdictOutput(t, `{"status": "approved", "issues": [], "questions": [], "summary": "makes sense now"}`),
	}}
	orch, manager, reviewID := newTestEngine(t, 5, inv)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsHuman, result.Status)
	assert.Equal(t, []string{"intended?"}, result.Questions)

	sess, err := manager.Get(reviewID)
	require.NoError(t, err)
	assert.Equal(t, []string{"intended?"}, sess.PendingQs)

	// Answer and resume.
	sess, err = manager.AnswerQuestions(reviewID, map[string]string{"answer": "yes, intended"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, sess.Status)

	result, err = orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, 2, result.Iteration)
}

func TestStepQuestionsWithoutClarificationStatus(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "has_issues", "issues": [], "questions": ["which env?"], "summary": "unclear"}`),
	}}
	orch, _, reviewID := newTestEngine(t, 5, inv)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsHuman, result.Status)
}

func TestStepInvocationFailureRecordsNoIteration(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		{Kind: reviewer.FailureAgentError, Err: "codex exploded"},
	}}
	orch, manager, reviewID := newTestEngine(t, 5, inv)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, 0, result.Iteration)
	assert.Contains(t, result.Summary, "codex exploded")

	sess, err := manager.Get(reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, sess.Status)
	assert.Empty(t, sess.History)
}

func TestStepUnparseableOutputNeverApproves(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		{OK: true, RawOutput: "I looked around but forgot the format entirely"},
	}}
	orch, manager, reviewID := newTestEngine(t, 5, inv)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusHasIssues, result.Status)
	assert.Equal(t, "I looked around but forgot the format entirely", result.RawOutput)

	sess, err := manager.Get(reviewID)
	require.NoError(t, err)
	require.Len(t, sess.History, 1)
	assert.Equal(t, "I looked around but forgot the format entirely", sess.History[0].ReviewerFeedback)
}

func TestStepTerminalSessionUntouched(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "has_issues", "issues": [], "questions": [], "summary": "x"}`),
	}}
	orch, manager, reviewID := newTestEngine(t, 5, inv)

	_, err := manager.UpdateStatus(reviewID, models.StatusApproved)
	require.NoError(t, err)

	result, err := orch.Step(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, 0, inv.calls, "terminal session must not invoke the reviewer")
}

func TestStepUnknownSession(t *testing.T) {
	orch := New(session.NewManager(store.NewMemoryStore()), &stubInvoker{results: []reviewer.RawResult{{OK: true}}}, nil, 0)

	_, err := orch.Step(context.Background(), "ghost", StepOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunLoopsUntilApproved(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "has_issues", "issues": [{"severity": "warning", "message": "x"}], "questions": [], "summary": "needs work"}`),
		verdictOutput(t, `{"status": "has_issues", "issues": [], "questions": [], "summary": "closer"}`),
		verdictOutput(t, `{"status": "approved", "issues": [], "questions": [], "summary": "done"}`),
	}}
	orch, _, reviewID := newTestEngine(t, 10, inv)

	result, err := orch.Run(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, 3, result.Iteration)
	assert.Equal(t, 3, inv.calls)
}

func TestRunHeuristicApproval(t *testing.T) {
	// Structured status says has_issues, but the summary reads as approval.
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "has_issues", "issues": [{"severity": "suggestion", "message": "nit"}], "questions": [], "summary": "LGTM, ship it"}`),
	}}
	orch, manager, reviewID := newTestEngine(t, 10, inv)

	result, err := orch.Run(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, 1, inv.calls)

	// The approved snapshot keeps the final pass's summary and issues.
	assert.Equal(t, "LGTM, ship it", result.Summary)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "nit", result.Issues[0].Message)

	sess, err := manager.Get(reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sess.Status)
}

func TestRunHeuristicApprovalOnFinalBudgetedPass(t *testing.T) {
	// The pass that exhausts the budget reads as approval; the loose
	// heuristic wins over max_iterations, matching the strict mode's
	// approval-first ordering.
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "has_issues", "issues": [], "questions": [], "summary": "lgtm overall, only style nits remain"}`),
	}}
	orch, manager, reviewID := newTestEngine(t, 1, inv)

	result, err := orch.Run(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, 1, result.Iteration)
	assert.Equal(t, 1, inv.calls)

	sess, err := manager.Get(reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, sess.Status)
	assert.Len(t, sess.History, 1)
}

func TestRunStopsOnNeedsHuman(t *testing.T) {
	inv := &stubInvoker{results: []reviewer.RawResult{
		verdictOutput(t, `{"status": "has_issues", "issues": [], "questions": [], "summary": "needs work"}`),
		verdictOutput(t, `{"status": "needs_clarification", "issues": [], "questions": ["why?"], "summary": "unsure"}`),
	}}
	orch, _, reviewID := newTestEngine(t, 10, inv)

	result, err := orch.Run(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsHuman, result.Status)
	assert.Equal(t, 2, inv.calls)
}

func TestRunStopsOnBudget(t *testing.T) {
	hasIssues := verdictOutput(t, `{"status": "has_issues", "issues": [], "questions": [], "summary": "still bad"}`)
	inv := &stubInvoker{results: []reviewer.RawResult{hasIssues}}
	orch, _, reviewID := newTestEngine(t, 3, inv)

	result, err := orch.Run(context.Background(), reviewID, StepOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMaxIterations, result.Status)
	assert.Equal(t, 3, result.Iteration)
}
