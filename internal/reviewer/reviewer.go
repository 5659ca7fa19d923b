// Package reviewer invokes an external review agent and interprets its
// output. The invoker returns raw text verbatim; interpretation lives
// entirely in the parser.
package reviewer

import (
	"context"
	"time"
)

// FailureKind classifies why an invocation failed.
type FailureKind string

const (
	// FailureTimeout means the agent did not reply within the deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureAgentError means the agent exited non-zero.
	FailureAgentError FailureKind = "agent_error"
	// FailureInvocation covers any other fault launching or running the agent.
	FailureInvocation FailureKind = "invocation_error"
)

// Request describes one review invocation.
type Request struct {
	Files      []string
	WorkingDir string
	Context    string
	FocusAreas []string
	Timeout    time.Duration
}

// RawResult carries the agent's raw standard output, or a failure.
type RawResult struct {
	OK        bool
	RawOutput string
	Kind      FailureKind
	Err       string
}

// Invoker issues one review request to an external agent. Implementations
// perform no parsing and mutate no session state.
type Invoker interface {
	Invoke(ctx context.Context, req Request) RawResult
}

func failure(kind FailureKind, msg string) RawResult {
	return RawResult{Kind: kind, Err: msg}
}
