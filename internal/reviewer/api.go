package reviewer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const apiSystemPrompt = `You are a meticulous senior code reviewer. You review source files for bugs, security issues, and improvements and respond with a single JSON verdict object.`

// APIInvoker reviews via the Anthropic API instead of a local agent CLI.
// It normalizes the API response into the same event-stream shape the CLI
// backend emits so one parser serves both.
type APIInvoker struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAPIInvoker creates an API-backed invoker with the given key and model.
func NewAPIInvoker(apiKey, model string) *APIInvoker {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &APIInvoker{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Invoke sends the review prompt to the API bounded by the request timeout.
func (a *APIInvoker) Invoke(ctx context.Context, req Request) RawResult {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := BuildPrompt(req.Files, req.Context, req.FocusAreas)

	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: apiSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if ctx.Err() == context.DeadlineExceeded {
		return failure(FailureTimeout, fmt.Sprintf("anthropic API timed out after %s", timeout))
	}
	if err != nil {
		return failure(FailureAgentError, fmt.Sprintf("anthropic API call: %v", err))
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return failure(FailureAgentError, "no text content in API response")
	}

	return RawResult{OK: true, RawOutput: wrapAsEvent(text)}
}

// wrapAsEvent encodes text as a one-line assistant message record.
func wrapAsEvent(text string) string {
	event := map[string]any{
		"type": "message",
		"message": map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": text},
			},
		},
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		// map[string]any of strings cannot fail to marshal
		return text
	}
	return string(encoded)
}
