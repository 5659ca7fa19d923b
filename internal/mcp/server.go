// Package mcp exposes the review workflow as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gavelhq/gavel/internal/git"
	"github.com/gavelhq/gavel/internal/models"
	"github.com/gavelhq/gavel/internal/orchestrator"
	"github.com/gavelhq/gavel/internal/session"
)

// Server wraps the review engine and exposes it as MCP tools.
//
// Handlers report domain outcomes, including failures, as JSON envelopes
// in the tool result, never as transport errors: the calling agent is
// expected to read and react to them.
type Server struct {
	manager *session.Manager
	orch    *orchestrator.Orchestrator
	git     git.Client
	version string
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(manager *session.Manager, orch *orchestrator.Orchestrator, gc git.Client, version string) *Server {
	return &Server{
		manager: manager,
		orch:    orch,
		git:     gc,
		version: version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("gavel", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.startReviewTool())
	srv.AddTool(s.continueReviewTool())
	srv.AddTool(s.reviewStatusTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"status":"error","message":"marshal response: %v"}`, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorEnvelope reports a domain failure as a tool result.
func errorEnvelope(format string, args ...any) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]string{
		"status":  "error",
		"message": fmt.Sprintf(format, args...),
	})
}

// stepResponse is the payload returned after a review pass.
type stepResponse struct {
	ReviewID      string         `json:"review_id"`
	Status        string         `json:"status"`
	Iteration     int            `json:"iteration"`
	MaxIterations int            `json:"max_iterations"`
	Feedback      string         `json:"feedback"`
	Issues        []models.Issue `json:"issues"`
	Questions     []string       `json:"questions"`
	Summary       string         `json:"summary"`
}

func stepResponseFor(reviewID string, maxIterations int, result *models.Result) stepResponse {
	return stepResponse{
		ReviewID:      reviewID,
		Status:        string(result.Status),
		Iteration:     result.Iteration,
		MaxIterations: maxIterations,
		Feedback:      result.Feedback,
		Issues:        result.Issues,
		Questions:     result.Questions,
		Summary:       result.Summary,
	}
}

// gavel_start_review
func (s *Server) startReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gavel_start_review",
		mcp.WithDescription("Start a code review session and run the first review pass. When files is omitted, reviews the files git reports as changed. Returns the verdict with status, issues, and any questions for the developer."),
		mcp.WithArray("files", mcp.WithStringItems(), mcp.Description("Paths to review, relative to the project root")),
		mcp.WithString("project_path", mcp.Description("Project root directory; defaults to the working directory")),
		mcp.WithString("context", mcp.Description("What changed and why, to orient the reviewer")),
		mcp.WithArray("focus_areas", mcp.WithStringItems(), mcp.Description("Aspects to emphasize, e.g. security, error handling")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration budget for this session (default 10)")),
	)
	return tool, s.handleStartReview
}

func (s *Server) handleStartReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath := request.GetString("project_path", "")
	if projectPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errorEnvelope("resolve working directory: %v", err)
		}
		projectPath = wd
	}

	files := request.GetStringSlice("files", nil)
	if len(files) == 0 {
		changed, err := s.git.ChangedFiles(projectPath)
		if err == nil {
			files = changed
		}
	}
	if len(files) == 0 {
		return errorEnvelope("no files to review: none specified and git reports no changes in %s", projectPath)
	}

	maxIterations := request.GetInt("max_iterations", session.DefaultMaxIterations)
	agentSessionID := session.ResolveAgentSessionID(projectPath)

	sess, err := s.manager.Create(files, projectPath, maxIterations, agentSessionID)
	if err != nil {
		return errorEnvelope("create review session: %v", err)
	}

	result, err := s.orch.Step(ctx, sess.ReviewID, orchestrator.StepOptions{
		Context:    request.GetString("context", ""),
		FocusAreas: request.GetStringSlice("focus_areas", nil),
	})
	if err != nil {
		return errorEnvelope("run review: %v", err)
	}
	return jsonResult(stepResponseFor(sess.ReviewID, sess.MaxIterations, result))
}

// gavel_continue_review
func (s *Server) continueReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gavel_continue_review",
		mcp.WithDescription("Answer a reviewer's clarification questions and run the next review pass."),
		mcp.WithString("review_id", mcp.Required(), mcp.Description("Review session ID")),
		mcp.WithString("human_answer", mcp.Required(), mcp.Description("Answer to the reviewer's pending questions")),
	)
	return tool, s.handleContinueReview
}

func (s *Server) handleContinueReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reviewID, err := request.RequireString("review_id")
	if err != nil {
		return errorEnvelope("missing required parameter: review_id")
	}
	answer, err := request.RequireString("human_answer")
	if err != nil {
		return errorEnvelope("missing required parameter: human_answer")
	}

	sess, err := s.manager.AnswerQuestions(reviewID, map[string]string{"answer": answer})
	if err != nil {
		return errorEnvelope("record answer: %v", err)
	}
	if sess == nil {
		return errorEnvelope("review session %s not found", reviewID)
	}

	result, err := s.orch.Step(ctx, reviewID, orchestrator.StepOptions{})
	if err != nil {
		return errorEnvelope("run review: %v", err)
	}
	return jsonResult(stepResponseFor(reviewID, sess.MaxIterations, result))
}

// gavel_review_status
func (s *Server) reviewStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gavel_review_status",
		mcp.WithDescription("Get the state of a review session by ID, or of the project's active session when no ID is given."),
		mcp.WithString("review_id", mcp.Description("Review session ID")),
		mcp.WithString("project_path", mcp.Description("Project root used to find the active session; defaults to the working directory")),
	)
	return tool, s.handleReviewStatus
}

func (s *Server) handleReviewStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reviewID := request.GetString("review_id", "")

	var sess *models.ReviewSession
	var err error
	if reviewID != "" {
		sess, err = s.manager.Get(reviewID)
	} else {
		projectPath := request.GetString("project_path", "")
		if projectPath == "" {
			projectPath, err = os.Getwd()
			if err != nil {
				return errorEnvelope("resolve working directory: %v", err)
			}
		}
		sess, err = s.manager.ActiveSession(projectPath)
	}
	if err != nil {
		return errorEnvelope("load review session: %v", err)
	}
	if sess == nil {
		return jsonResult(map[string]string{"status": "no_session"})
	}

	// Full snapshot, history included.
	return jsonResult(sess)
}
