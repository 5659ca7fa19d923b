package reviewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultTimeout bounds an invocation when the request does not set one.
const DefaultTimeout = 120 * time.Second

// CLIInvoker runs the review agent as a blocking subprocess. The agent is
// expected to emit newline-delimited JSON event records on stdout (the
// stream protocol spoken by codex/claude-style CLIs).
type CLIInvoker struct {
	// Command is the agent executable, e.g. "codex".
	Command string
	// Args precede the prompt, e.g. ["exec", "--json", "--full-auto"].
	Args []string
}

// NewCLIInvoker creates a subprocess invoker for the given agent command.
// An empty command defaults to "codex"; codex without explicit args gets
// its JSON exec flags.
func NewCLIInvoker(command string, args []string) *CLIInvoker {
	if command == "" {
		command = "codex"
	}
	if len(args) == 0 && command == "codex" {
		args = []string{"exec", "--json", "--full-auto"}
	}
	return &CLIInvoker{Command: command, Args: args}
}

// Invoke builds the prompt, runs the agent bounded by the request timeout
// and returns raw stdout verbatim. The process is started in its own
// process group; after a timeout it is signalled but not awaited.
func (c *CLIInvoker) Invoke(ctx context.Context, req Request) RawResult {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := BuildPrompt(req.Files, req.Context, req.FocusAreas)
	args := append(append([]string(nil), c.Args...), prompt)

	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = req.WorkingDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return failure(FailureTimeout, fmt.Sprintf("%s timed out after %s", c.Command, timeout))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("%s exited with code %d", c.Command, exitErr.ExitCode())
			}
			return failure(FailureAgentError, msg)
		}
		return failure(FailureInvocation, fmt.Sprintf("run %s: %v", c.Command, err))
	}

	return RawResult{OK: true, RawOutput: stdout.String()}
}
