// Package openai implements the TextGenerator port on top of an
// OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TextGenerator = (*Client)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client sends prompts to a chat completions endpoint.
type Client struct {
	client *goopenai.Client
	model  string
}

// NewClient creates a Client for the given API key. baseURL overrides the API
// endpoint (an OpenAI-compatible gateway); empty keeps the library default.
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	slog.Info("initializing text generator", "model", model, "base_url", cfg.BaseURL)

	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate sends one system+user exchange and returns the first choice's text.
// TopK has no chat completions equivalent and is not sent.
func (c *Client) Generate(ctx context.Context, prompt driven.Prompt, params driven.GenerationParams) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt.User})

	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}

	slog.Debug("text generation request", "model", c.model, "prompt_chars", len(prompt.User))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed with status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", driven.ErrEmptyCompletion
	}

	slog.Debug("text generation response",
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
