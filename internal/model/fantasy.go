package model

import (
	"context"
	"fmt"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
)

// FantasyConfig configures the Fantasy-backed Anthropic client.
type FantasyConfig struct {
	APIKey  string
	BaseURL string
	Model   string // default claude-3-5-sonnet-latest
}

// FantasyClient calls Anthropic through the Fantasy provider layer.
type FantasyClient struct {
	provider fantasy.Provider
	model    string
}

// NewFantasyClient creates a Fantasy client.
func NewFantasyClient(cfg FantasyConfig) (*FantasyClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	provider, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic provider: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}

	return &FantasyClient{provider: provider, model: model}, nil
}

// Complete runs one inference call. Tool definitions are not offered on
// this path; the planner falls back to structured JSON decisions, which
// the orchestrator parses the same way.
func (c *FantasyClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	lm, err := c.provider.LanguageModel(ctx, c.model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	call := fantasy.Call{
		Prompt:          fantasy.Prompt{fantasy.NewUserMessage(prompt)},
		MaxOutputTokens: &maxTokens,
	}

	resp, err := lm.Generate(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	text := resp.Content.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return &Response{
		Text:       text,
		TokensUsed: int(resp.Usage.TotalTokens),
		Model:      c.model,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Name returns the model identifier.
func (c *FantasyClient) Name() string {
	return c.model
}

// IsAvailable reports whether the provider was constructed.
func (c *FantasyClient) IsAvailable() bool {
	return c != nil && c.provider != nil
}
