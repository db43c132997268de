// internal/models/openrouter.go
package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"polychat/internal/config"
)

// ErrNoChoices is returned when a 2xx body carries no assistant message
var ErrNoChoices = errors.New("malformed response: no choices")

// OpenRouter sends chat completions to an OpenAI-compatible endpoint.
// The base URL is either OpenRouter itself or a polychat proxy.
type OpenRouter struct {
	client *openai.Client
}

// NewOpenRouter builds a client from the upstream section of the config
func NewOpenRouter(cfg *config.Config) *OpenRouter {
	timeout := time.Duration(cfg.Defaults.ModelTimeout) * time.Second

	clientConfig := openai.DefaultConfig(cfg.Upstream.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	clientConfig.HTTPClient = NewHTTPClient(timeout, map[string]string{
		"HTTP-Referer": cfg.Upstream.Referer,
		"X-Title":      cfg.Upstream.Title,
	})

	return &OpenRouter{client: openai.NewClientWithConfig(clientConfig)}
}

// Send implements Sender
func (o *OpenRouter) Send(ctx context.Context, modelID string, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion %s: %w", modelID, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// ErrorMessage extracts the text a card should show for a failed request.
// API error bodies carry their own message; bare status failures map to
// a short description of the status.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode).Error()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "model response timed out"
	}

	return err.Error()
}
