package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/pathfinder/internal/agent"
	"github.com/haasonsaas/pathfinder/internal/agent/providers"
	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// FactoryOptions carries shared collaborators into every backend.
type FactoryOptions struct {
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// FromConfigs builds backends in configuration order. A backend whose
// provider cannot be constructed (typically a missing API key) is still
// returned, without a client, so it is listed as unavailable.
func FromConfigs(ctx context.Context, cfgs []config.BackendConfig, opts FactoryOptions) ([]*Backend, error) {
	out := make([]*Backend, 0, len(cfgs))
	for _, cfg := range cfgs {
		b, err := FromConfig(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// FromConfig builds one backend. Only an unknown kind is an error.
func FromConfig(ctx context.Context, cfg config.BackendConfig, opts FactoryOptions) (*Backend, error) {
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", cfg.ID, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = kind.Capability().DefaultModel
	}

	provider, err := newProvider(ctx, kind, model, cfg)
	if err != nil {
		logger.Warn("backend has no client", "backend", cfg.ID, "kind", kind.String(), "error", err)
		provider = nil
	}

	return New(cfg.ID, kind, model, provider, Options{
		Sampling:   models.Sampling{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Metrics:    opts.Metrics,
		Tracer:     opts.Tracer,
		Logger:     logger,
	}), nil
}

func newProvider(ctx context.Context, kind Kind, model string, cfg config.BackendConfig) (agent.LLMProvider, error) {
	switch kind {
	case KindAnthropic:
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		})
	case KindOpenAI:
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
			Headers:      cfg.Headers,
		})
	case KindOpenRouter:
		if cfg.BaseURL == "" {
			return providers.NewOpenRouterProvider(cfg.APIKey, model, cfg.AppName, cfg.SiteURL, cfg.Timeout)
		}
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			Name:         "openrouter",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
			Headers:      cfg.Headers,
		})
	case KindGoogle:
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		})
	case KindOllama:
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      cfg.BaseURL,
			DefaultModel: model,
			Timeout:      cfg.Timeout,
		}), nil
	case KindBedrock:
		return providers.NewBedrockProvider(ctx, providers.BedrockConfig{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Endpoint:        cfg.BaseURL,
			DefaultModel:    model,
			Timeout:         cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
}
