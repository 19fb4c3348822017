package completion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Compile-time interface check.
var _ Client = (*OpenAIClient)(nil)

// Defaults mirror the settings the agents were tuned against.
const (
	DefaultModel       = openai.GPT4oMini
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
)

// OpenAIClient implements Client with a single-message chat completion.
// It does not retry: callers decide how a failure affects their phase.
type OpenAIClient struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	baseURL     string
	httpClient  *http.Client
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel selects the chat model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) OpenAIOption {
	return func(c *OpenAIClient) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		c.timeout = d
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.httpClient = hc
	}
}

// NewOpenAIClient creates a completion client authenticated with apiKey.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the trimmed
// content of the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
