package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned by clients created without credentials.
var ErrNotConfigured = errors.New("AI endpoint not configured")

const systemPrompt = "You validate exam questions. Follow the reply format in the user's instructions exactly and reply with nothing else."

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Complete sends a single prompt and returns the text of the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "raw", raw)
	return strings.TrimSpace(raw), nil
}

// Ping checks that the endpoint is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Unconfigured is a Completer for a missing AI configuration. Every call
// fails, so checks degrade into per-question errors instead of a crash.
type Unconfigured struct {
	Reason string
}

// Complete always returns ErrNotConfigured.
func (u Unconfigured) Complete(context.Context, string) (string, error) {
	if u.Reason != "" {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
	}
	return "", ErrNotConfigured
}

// Ping always returns ErrNotConfigured.
func (u Unconfigured) Ping(ctx context.Context) error {
	_, err := u.Complete(ctx, "")
	return err
}
