package llm

import (
	"fmt"
	"log/slog"

	"github.com/benchidera/speak-to-llm/internal/config"
)

// NewFromConfig creates a provider from application config.
func NewFromConfig(cfg config.LLMConfig, logger *slog.Logger) (Provider, error) {
	opts := []Option{WithLogger(logger)}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		opts = append(opts, WithTemperature(cfg.Temperature))
	}

	switch cfg.Provider {
	case config.LLMOpenAI:
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return NewClient(append(opts, WithAPIKey(cfg.OpenAIKey))...)
	case config.LLMOllama:
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return NewOllama(opts...)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// ContextWindowFor returns the history window suited to a provider:
// constrained local models get a smaller one.
func ContextWindowFor(provider string) int {
	if provider == config.LLMOllama {
		return ConstrainedContextWindow
	}
	return DefaultContextWindow
}
