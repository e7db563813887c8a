package tts

import (
	"fmt"
	"log/slog"

	"github.com/benchidera/speak-to-llm/internal/config"
)

// NewFromConfig creates a provider from application config.
// Credentials come from the environment, never from the config file.
func NewFromConfig(cfg config.TTSConfig, logger *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.TTSElevenLabs, config.TTSElevenLabsWS:
		voice := cfg.VoiceID
		if voice == "" {
			voice = DefaultElevenLabsVoice
		}
		opts := []Option{
			WithAPIKey(cfg.ElevenLabsKey),
			WithVoice(ResolveElevenLabsVoice(voice)),
			WithOutputFormat(EncodingPCM16),
			WithLogger(logger),
		}
		if cfg.Provider == config.TTSElevenLabsWS {
			return NewElevenLabsWS(opts...)
		}
		return NewElevenLabs(opts...)

	case config.TTSOpenAI:
		opts := []Option{
			WithAPIKey(cfg.OpenAIKey),
			WithOutputFormat(EncodingPCM24),
			WithLogger(logger),
		}
		if cfg.VoiceID != "" {
			opts = append(opts, WithVoice(cfg.VoiceID))
		}
		return NewOpenAI(opts...)

	default:
		return nil, fmt.Errorf("tts: unknown provider %q", cfg.Provider)
	}
}
