package model

import (
	"context"
	"fmt"

	"github.com/otto-ai/otto/internal/config"
	apperrors "github.com/otto-ai/otto/internal/errors"
)

// Model is a remote language model endpoint.
type Model interface {
	// Complete runs one inference call.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name returns the model identifier.
	Name() string

	// IsAvailable reports whether the client is configured.
	IsAvailable() bool
}

// New builds the model client selected by the configuration.
func New(cfg config.ModelConfig) (Model, error) {
	switch config.ModelProvider(cfg.Provider) {
	case config.ProviderOpenRouter:
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Name,
			Timeout: cfg.Timeout(),
		}), nil
	case config.ProviderFantasy:
		return NewFantasyClient(FantasyConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Name,
		})
	default:
		return nil, apperrors.New(apperrors.CodeConfigInvalid,
			fmt.Sprintf("unknown model provider %q", cfg.Provider), apperrors.CategoryPermanent)
	}
}
