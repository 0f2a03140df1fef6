package openaicompat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/gateway"
)

// Config holds the connection settings for the backend.
type Config struct {
	// BaseURL overrides the backend endpoint. Empty means api.openai.com.
	BaseURL string

	// APIKey authenticates against the backend.
	APIKey string

	// Model is the chat model to drive.
	Model string

	// Timeout bounds each backend call. Zero means 120s.
	Timeout time.Duration
}

// Client implements gateway.Gateway against an OpenAI-compatible Chat
// Completions endpoint.
type Client struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// New creates a gateway client for the given backend.
func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		log:    log,
	}
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return "openai"
}

// Plan implements gateway.Gateway.
func (c *Client) Plan(ctx context.Context, task string) (*gateway.Plan, api.Usage, error) {
	content, usage, err := c.complete(ctx, gateway.PlanSystemMessage, gateway.PlanPrompt(task))
	if err != nil {
		return nil, usage, err
	}
	out, err := decodePlan(content)
	if err != nil {
		return nil, usage, err
	}
	return &gateway.Plan{Understanding: out.Understanding, Approach: out.Approach}, usage, nil
}

// InferTests implements gateway.Gateway.
func (c *Client) InferTests(ctx context.Context, task string) ([]api.TestCase, api.Usage, error) {
	content, usage, err := c.complete(ctx, gateway.InferTestsSystemMessage, gateway.InferTestsPrompt(task, nil))
	if err != nil {
		return nil, usage, err
	}
	out, err := decodeTests(content)
	if err != nil {
		return nil, usage, err
	}
	return out.TestCases, usage, nil
}

// GenerateCode implements gateway.Gateway.
func (c *Client) GenerateCode(ctx context.Context, task string, plan *gateway.Plan, tests []api.TestCase, analysis string) (string, api.Usage, error) {
	content, usage, err := c.complete(ctx, gateway.GenerateSystemMessage, gateway.GeneratePrompt(task, plan, tests, analysis))
	if err != nil {
		return "", usage, err
	}
	out, err := decodeCode(content)
	if err != nil {
		return "", usage, err
	}
	return out.Code, usage, nil
}

// AnalyzeFailure implements gateway.Gateway.
func (c *Client) AnalyzeFailure(ctx context.Context, fc *gateway.FailureContext) (*gateway.Analysis, api.Usage, error) {
	content, usage, err := c.complete(ctx, gateway.AnalyzeSystemMessage, gateway.AnalyzePrompt(fc))
	if err != nil {
		return nil, usage, err
	}
	out, err := decodeAnalysis(content)
	if err != nil {
		return nil, usage, err
	}
	return &gateway.Analysis{Diagnosis: out.Diagnosis}, usage, nil
}

// Close implements gateway.Gateway. The underlying HTTP client needs no
// explicit teardown.
func (c *Client) Close() error {
	return nil
}

// complete issues one chat completion with a JSON object response format
// and returns the raw content plus priced usage.
func (c *Client) complete(ctx context.Context, system, user string) (string, api.Usage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.log.Error("backend call failed", "model", c.model, "error", err)
		return "", api.Usage{}, mapError(err)
	}

	usage := api.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		Cost:         CostFor(c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}

	if len(resp.Choices) == 0 {
		return "", usage, gateway.NewFailure(gateway.FailureMalformedOutput,
			"backend returned no choices", nil)
	}

	c.log.Debug("backend call complete",
		"model", c.model,
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", usage.TotalTokens)

	return resp.Choices[0].Message.Content, usage, nil
}

// mapError converts backend transport errors into typed gateway failures.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return gateway.NewFailure(gateway.FailureRateLimited, "backend rate limit exceeded", err)
		}
		return gateway.NewFailure(gateway.FailureProviderError, "backend request rejected", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return gateway.NewFailure(gateway.FailureRateLimited, "backend rate limit exceeded", err)
		}
		return gateway.NewFailure(gateway.FailureProviderError, "backend request failed", err)
	}

	return gateway.NewFailure(gateway.FailureProviderError, "backend connection error", err)
}
