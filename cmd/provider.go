package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/ai/gemini"
	"github.com/spigell/rfp-evaluator/internal/ai/openrouter"
	"github.com/spigell/rfp-evaluator/internal/secrets"

	"go.uber.org/zap"
)

const (
	providerGemini     = "gemini"
	providerOpenRouter = "openrouter"
)

// newGenerator builds the configured provider client.
func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case providerGemini, "":
		gcfg := cfg.Gemini
		if gcfg == nil {
			gcfg = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  gcfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
			Value: gcfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		genLogger := log.With(zap.Int("ai_retry_attempts", gcfg.MaxRetries))
		return gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, genLogger)

	case providerOpenRouter:
		ocfg := cfg.OpenRouter
		if ocfg == nil {
			ocfg = &OpenRouterConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openrouter api key",
			File:  ocfg.APIKeyFile,
			Env:   "OPENROUTER_API_KEY",
			Value: ocfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openrouter.api-key-file or OPENROUTER_API_KEY)", err)
		}

		genLogger := log.With(zap.Int("ai_retry_attempts", ocfg.MaxRetries))
		return openrouter.NewGenerator(openrouter.Config{
			APIKey:     apiKey,
			Model:      ocfg.Model,
			BaseURL:    ocfg.BaseURL,
			Referer:    ocfg.Referer,
			Title:      ocfg.Title,
			MaxRetries: ocfg.MaxRetries,
		}, genLogger)

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
