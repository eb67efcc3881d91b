package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/otto-ai/otto/internal/errors"
)

// OpenRouterConfig configures the OpenRouter client.
type OpenRouterConfig struct {
	APIKey     string
	BaseURL    string // default https://openrouter.ai/api/v1
	Model      string // e.g. "anthropic/claude-3.5-sonnet"
	Timeout    time.Duration
	MaxRetries int
}

// OpenRouterClient calls the OpenRouter chat completions API.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
	retry  *apperrors.Policy
}

// NewOpenRouterClient creates an OpenRouter client with defaults filled.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &OpenRouterClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry: &apperrors.Policy{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
			RetryIf: func(err error) bool {
				category := apperrors.GetCategory(err)
				return category == apperrors.CategoryTemporary || category == apperrors.CategoryRateLimit
			},
		},
	}
}

// Complete sends one chat completion request and returns the text or
// tool calls the model produced. Temporary and rate-limit failures are
// retried under the client's backoff policy.
func (c *OpenRouterClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsAvailable() {
		return nil, apperrors.NewBuilder(apperrors.CodeModelUnavailable, "OpenRouter API key not configured").
			System().
			WithSuggestion("Set OTTO_MODEL_API_KEY or model.api_key in config.toml").
			Build()
	}

	start := time.Now()

	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":    c.cfg.Model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	if len(req.Tools) > 0 {
		body["tools"] = toOpenAITools(req.Tools)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeModelInvalidResponse, "failed to marshal request", apperrors.CategoryPermanent)
	}

	resp, err := apperrors.DoWithResult(ctx, c.retry, func() (*Response, error) {
		return c.do(ctx, jsonBody)
	})
	if err != nil {
		return nil, err
	}

	resp.DurationMs = time.Since(start).Milliseconds()
	return resp, nil
}

func (c *OpenRouterClient) do(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeModelUnavailable, "failed to create request", apperrors.CategoryPermanent)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/otto-ai/otto")
	httpReq.Header.Set("X-Title", "Otto")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Temporary(apperrors.CodeModelTimeout, "model request timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeModelUnavailable, "model request failed", apperrors.CategoryTemporary)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeModelUnavailable, "failed to read response", apperrors.CategoryTemporary)
	}

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, rateLimited(httpResp)
	case http.StatusUnauthorized:
		return nil, apperrors.NewBuilder(apperrors.CodeModelUnavailable, "invalid API key").
			User().
			WithSuggestion("Check your OpenRouter API key").
			Build()
	case http.StatusBadRequest:
		return nil, apperrors.NewBuilder(apperrors.CodeModelInvalidResponse, "bad request, check model name and parameters").
			User().
			WithContext("response", string(respBody)).
			Build()
	default:
		return nil, apperrors.Temporary(apperrors.CodeModelUnavailable, fmt.Sprintf("API error (status %d): %s", httpResp.StatusCode, string(respBody)))
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, apperrors.NewBuilder(apperrors.CodeModelInvalidResponse, "failed to parse API response").
			Permanent().
			Wrap(err).
			Build()
	}
	if len(orResp.Choices) == 0 {
		return nil, apperrors.New(apperrors.CodeModelInvalidResponse, "response contained no choices", apperrors.CategoryPermanent)
	}

	choice := orResp.Choices[0]
	resp := &Response{
		Text:       choice.Message.Content,
		TokensUsed: orResp.Usage.TotalTokens,
		Model:      orResp.Model,
	}

	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = map[string]any{"raw": tc.Function.Arguments}
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	return resp, nil
}

// rateLimited builds the 429 error, honoring a Retry-After header when
// the provider sends one.
func rateLimited(resp *http.Response) error {
	retryAfter := 5 * time.Second
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}
	return apperrors.NewBuilder(apperrors.CodeModelRateLimit, "rate limited by provider").
		RateLimit(retryAfter).
		WithSuggestion("Reduce request rate or upgrade your plan").
		Build()
}

// IsAvailable checks if the client is configured.
func (c *OpenRouterClient) IsAvailable() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Name returns the model name.
func (c *OpenRouterClient) Name() string {
	return c.cfg.Model
}

// toOpenAITools converts tool definitions to the function-calling format.
func toOpenAITools(tools []Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

// ============================================================
// OpenRouter API Types
// ============================================================

type openRouterResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
