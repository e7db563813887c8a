package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.STT.Provider != STTWhisperAPI {
		t.Errorf("stt provider = %q", cfg.STT.Provider)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("audio defaults = %d Hz %d ch", cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	if cfg.Audio.MaxSilentChunks != 30 || cfg.Audio.MinChunks != 15 {
		t.Errorf("gate defaults = %+v", cfg.Audio)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speak.yaml")
	data := `
stt:
  provider: whisper_server
  server_url: http://localhost:9000
llm:
  provider: ollama
  model: llama3.2
audio:
  silence_threshold: 500
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STT.Provider != STTWhisperServer {
		t.Errorf("stt provider = %q", cfg.STT.Provider)
	}
	if cfg.LLM.Model != "llama3.2" {
		t.Errorf("llm model = %q", cfg.LLM.Model)
	}
	if cfg.Audio.SilenceThreshold != 500 {
		t.Errorf("silence threshold = %f", cfg.Audio.SilenceThreshold)
	}
	// Untouched sections keep their defaults.
	if cfg.TTS.Provider != TTSOpenAI {
		t.Errorf("tts provider = %q", cfg.TTS.Provider)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnv_Credentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_URL", "http://box:11434")

	cfg := Default()
	cfg.LoadEnv()

	if cfg.STT.OpenAIKey != "sk-test" || cfg.LLM.OpenAIKey != "sk-test" {
		t.Error("OPENAI_API_KEY not propagated")
	}
	if cfg.TTS.ElevenLabsKey != "el-test" {
		t.Error("ELEVENLABS_API_KEY not propagated")
	}
	if cfg.LLM.Provider != LLMOllama || cfg.LLM.BaseURL != "http://box:11434" {
		t.Errorf("llm = %q %q", cfg.LLM.Provider, cfg.LLM.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.STT.OpenAIKey = "k"
	valid.TTS.OpenAIKey = "k"
	valid.LLM.OpenAIKey = "k"

	if issues := valid.Validate(); len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	t.Run("missing credentials", func(t *testing.T) {
		cfg := Default()
		issues := cfg.Validate()
		if len(issues) != 3 {
			t.Errorf("got %d issues, want 3 (stt, tts, llm keys): %v", len(issues), issues)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid
		cfg.STT.Provider = "bogus"
		found := false
		for _, issue := range cfg.Validate() {
			if issue.Field == "stt.provider" {
				found = true
			}
		}
		if !found {
			t.Error("expected stt.provider issue")
		}
	})

	t.Run("temperature range", func(t *testing.T) {
		cfg := valid
		cfg.LLM.Temperature = 3.0
		if len(cfg.Validate()) == 0 {
			t.Error("expected temperature issue")
		}
	})

	t.Run("elevenlabs needs voice", func(t *testing.T) {
		cfg := valid
		cfg.TTS.Provider = TTSElevenLabs
		cfg.TTS.ElevenLabsKey = "k"
		cfg.TTS.VoiceID = ""
		found := false
		for _, issue := range cfg.Validate() {
			if issue.Field == "tts.voice_id" {
				found = true
			}
		}
		if !found {
			t.Error("expected voice_id issue")
		}
	})
}

func TestSave_NeverWritesCredentials(t *testing.T) {
	cfg := Default()
	cfg.STT.OpenAIKey = "sk-secret"
	cfg.TTS.ElevenLabsKey = "el-secret"
	cfg.STT.GoogleKey = "g-secret"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("credentials leaked into saved config")
	}

	// Round-trip keeps the non-secret fields.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.STT.Provider != cfg.STT.Provider {
		t.Errorf("provider = %q", loaded.STT.Provider)
	}
}
