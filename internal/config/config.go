// Package config loads and validates speak-to-llm configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. Credentials are only ever sourced from the
// environment and are never written back to disk.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// STT provider identities.
const (
	STTWhisperAPI    = "whisper_api"
	STTWhisperServer = "whisper_server"
	STTGoogle        = "google"
)

// TTS provider identities.
const (
	TTSElevenLabs   = "elevenlabs"
	TTSElevenLabsWS = "elevenlabs_ws"
	TTSOpenAI       = "openai"
)

// LLM provider identities.
const (
	LLMOpenAI = "openai"
	LLMOllama = "ollama"
)

// Config holds all application configuration.
type Config struct {
	App   AppConfig   `yaml:"app"`
	STT   STTConfig   `yaml:"stt"`
	TTS   TTSConfig   `yaml:"tts"`
	LLM   LLMConfig   `yaml:"llm"`
	Audio AudioConfig `yaml:"audio"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel          string `yaml:"log_level"`
	SaveConversations bool   `yaml:"save_conversations"`
	ConversationDir   string `yaml:"conversation_dir"`
	WebAddr           string `yaml:"web_addr"` // empty disables the dashboard
}

// STTConfig selects and parameterizes the speech-to-text provider.
type STTConfig struct {
	Provider  string `yaml:"provider"`
	Language  string `yaml:"language"`
	Model     string `yaml:"model"`      // whisper model name
	ServerURL string `yaml:"server_url"` // whisper_server base URL

	// Credentials, environment only.
	OpenAIKey string `yaml:"-"`
	GoogleKey string `yaml:"-"`
}

// TTSConfig selects and parameterizes the text-to-speech provider.
type TTSConfig struct {
	Provider string  `yaml:"provider"`
	Language string  `yaml:"language"`
	VoiceID  string  `yaml:"voice_id"`
	Volume   float64 `yaml:"volume"` // 0.0 to 1.0

	// Credentials, environment only.
	OpenAIKey     string `yaml:"-"`
	ElevenLabsKey string `yaml:"-"`
}

// LLMConfig selects and parameterizes the language model provider.
type LLMConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"base_url"` // ollama or OpenAI-compatible endpoint
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`

	// Credentials, environment only.
	OpenAIKey string `yaml:"-"`
}

// AudioConfig holds capture and silence-gate settings.
type AudioConfig struct {
	Backend          string  `yaml:"backend"` // auto, alsa, coreaudio, mock
	Device           string  `yaml:"device"`
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
	ChunkSize        int     `yaml:"chunk_size"` // samples per chunk
	SilenceThreshold float64 `yaml:"silence_threshold"`
	MaxSilentChunks  int     `yaml:"max_silent_chunks"`
	MinChunks        int     `yaml:"min_chunks"`
	MaxTotalChunks   int     `yaml:"max_total_chunks"`
}

// Default returns a Config with built-in defaults matching a local setup.
func Default() Config {
	return Config{
		App: AppConfig{
			LogLevel:          "info",
			SaveConversations: true,
			ConversationDir:   "./conversations",
		},
		STT: STTConfig{
			Provider: STTWhisperAPI,
			Language: "en",
			Model:    "whisper-1",
		},
		TTS: TTSConfig{
			Provider: TTSOpenAI,
			Language: "en",
			Volume:   0.9,
		},
		LLM: LLMConfig{
			Provider:    LLMOpenAI,
			Model:       "gpt-4o-mini",
			MaxTokens:   150,
			Temperature: 0.7,
		},
		Audio: AudioConfig{
			Backend:          "auto",
			SampleRate:       16000,
			Channels:         1,
			ChunkSize:        1024,
			SilenceThreshold: 1000,
			MaxSilentChunks:  30,
			MinChunks:        15,
			MaxTotalChunks:   1000, // ~30s at 16kHz / 1024-sample chunks
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.LoadEnv()
	return cfg, nil
}

// LoadEnv overlays environment variables onto the config.
// API keys are only available through this path.
func (c *Config) LoadEnv() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.STT.OpenAIKey = key
		c.TTS.OpenAIKey = key
		c.LLM.OpenAIKey = key
	}
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		c.TTS.ElevenLabsKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.STT.GoogleKey = key
	}

	if v := os.Getenv("STT_PROVIDER"); v != "" {
		c.STT.Provider = v
	}
	if v := os.Getenv("TTS_PROVIDER"); v != "" {
		c.TTS.Provider = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("WHISPER_MODEL"); v != "" {
		c.STT.Model = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" && c.LLM.Provider == LLMOllama {
		c.LLM.BaseURL = v
	}
}

// ValidationError describes a single configuration problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks provider selections, credentials, and numeric ranges.
// It returns every problem found, not just the first.
func (c *Config) Validate() []ValidationError {
	var issues []ValidationError

	switch c.STT.Provider {
	case STTWhisperAPI:
		if c.STT.OpenAIKey == "" {
			issues = append(issues, ValidationError{"stt", "OPENAI_API_KEY required for whisper_api"})
		}
	case STTWhisperServer:
		if c.STT.ServerURL == "" {
			issues = append(issues, ValidationError{"stt.server_url", "required for whisper_server"})
		}
	case STTGoogle:
		if c.STT.GoogleKey == "" {
			issues = append(issues, ValidationError{"stt", "GOOGLE_API_KEY required for google"})
		}
	default:
		issues = append(issues, ValidationError{"stt.provider", "unknown provider " + c.STT.Provider})
	}

	switch c.TTS.Provider {
	case TTSElevenLabs, TTSElevenLabsWS:
		if c.TTS.ElevenLabsKey == "" {
			issues = append(issues, ValidationError{"tts", "ELEVENLABS_API_KEY required for " + c.TTS.Provider})
		}
		if c.TTS.VoiceID == "" {
			issues = append(issues, ValidationError{"tts.voice_id", "required for " + c.TTS.Provider})
		}
	case TTSOpenAI:
		if c.TTS.OpenAIKey == "" {
			issues = append(issues, ValidationError{"tts", "OPENAI_API_KEY required for openai"})
		}
	default:
		issues = append(issues, ValidationError{"tts.provider", "unknown provider " + c.TTS.Provider})
	}

	switch c.LLM.Provider {
	case LLMOpenAI:
		if c.LLM.OpenAIKey == "" {
			issues = append(issues, ValidationError{"llm", "OPENAI_API_KEY required for openai"})
		}
	case LLMOllama:
		// Local, no key needed.
	default:
		issues = append(issues, ValidationError{"llm.provider", "unknown provider " + c.LLM.Provider})
	}

	if c.LLM.Temperature < 0.0 || c.LLM.Temperature > 2.0 {
		issues = append(issues, ValidationError{"llm.temperature", "must be between 0.0 and 2.0"})
	}
	if c.TTS.Volume < 0.0 || c.TTS.Volume > 1.0 {
		issues = append(issues, ValidationError{"tts.volume", "must be between 0.0 and 1.0"})
	}
	if c.Audio.SampleRate <= 0 {
		issues = append(issues, ValidationError{"audio.sample_rate", "must be positive"})
	}
	if c.Audio.ChunkSize <= 0 {
		issues = append(issues, ValidationError{"audio.chunk_size", "must be positive"})
	}
	if c.Audio.MaxTotalChunks <= 0 {
		issues = append(issues, ValidationError{"audio.max_total_chunks", "must be positive"})
	}

	return issues
}

// Save writes the configuration to a YAML file.
// Credential fields carry `yaml:"-"` tags so they can never leak into the snapshot.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Summary returns a one-line description of the active providers for logging.
func (c *Config) Summary() string {
	return strings.Join([]string{
		"stt=" + c.STT.Provider,
		"tts=" + c.TTS.Provider,
		"llm=" + c.LLM.Provider + "/" + c.LLM.Model,
	}, " ")
}
