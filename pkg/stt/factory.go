package stt

import (
	"fmt"
	"log/slog"

	"github.com/benchidera/speak-to-llm/internal/config"
)

// NewFromConfig builds the provider selected by the application config.
func NewFromConfig(cfg config.STTConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case config.STTWhisperAPI:
		return NewWhisperAPI(
			WithAPIKey(cfg.OpenAIKey),
			WithModel(cfg.Model),
			WithLanguage(cfg.Language),
			WithLogger(logger),
		)
	case config.STTWhisperServer:
		return NewWhisperServer(
			WithBaseURL(cfg.ServerURL),
			WithLanguage(cfg.Language),
			WithLogger(logger),
		)
	case config.STTGoogle:
		return NewGoogle(
			WithAPIKey(cfg.GoogleKey),
			WithLanguage(cfg.Language),
			WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("stt: unknown provider %q", cfg.Provider)
	}
}
