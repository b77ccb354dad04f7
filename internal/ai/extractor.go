package ai

import (
	"context"
	"fmt"

	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
)

// NewExtractor builds the extractor selected by cfg.Provider.
func NewExtractor(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is required for provider %s", cfg.Provider)
	}

	switch cfg.Provider {
	case "openai", "deepseek":
		return NewOpenAIClient(cfg, log), nil
	case "gemini":
		client, err := NewGeminiClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
