// Package ai generates post summaries and digests with a remote language model.
package ai

import (
	"context"
	"log/slog"

	"github.com/Saul-Punybz/tweetwatch/internal/config"
)

// Provider performs one chat-style generation.
type Provider interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Name() string
}

// NewProvider builds the provider selected by cfg. It returns nil when the
// selected backend needs an API key and none is configured; summaries then
// fall back to the failure placeholder.
func NewProvider(cfg config.AIConfig) Provider {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.OllamaHost, cfg.Model)
	default:
		if cfg.APIKey == "" {
			slog.Warn("ai: no API key configured, summaries disabled", "provider", cfg.Provider)
			return nil
		}
		return NewOpenAIProvider(cfg.Provider, cfg.APIKey, cfg.BaseURL, cfg.Model)
	}
}
