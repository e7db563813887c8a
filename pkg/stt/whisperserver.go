package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audio"

	"github.com/benchidera/speak-to-llm/internal/httpc"
)

const (
	whisperServerBaseURL  = "http://localhost:8080"
	providerWhisperServer = "whisper_server"
)

// WhisperServer implements Provider against a local whisper.cpp server.
// Run one with: ./server -m models/ggml-base.en.bin
type WhisperServer struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewWhisperServer creates a provider talking to a local whisper.cpp server.
// No API key is required.
func NewWhisperServer(opts ...Option) (*WhisperServer, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = whisperServerBaseURL
	}

	return &WhisperServer{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.whisper_server"),
		baseURL: baseURL,
	}, nil
}

// Transcribe uploads the utterance and returns the transcript.
func (w *WhisperServer) Transcribe(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
	if utterance == nil || utterance.Empty() {
		// Nothing to transcribe is not an error.
		return &Result{Provider: providerWhisperServer}, nil
	}

	// Trim flanking silence so uploads stay small. A buffer that is
	// all silence has nothing to transcribe either.
	utterance = audio.TrimSilence(utterance, uploadTrimThreshold)
	if utterance.Empty() {
		return &Result{Provider: providerWhisperServer}, nil
	}

	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "speech.wav")
	if err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(audio.EncodeWAV(utterance)); err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("write wav: %w", err))
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("write field: %w", err))
	}
	if w.config.Language != "" {
		if err := mw.WriteField("language", w.config.Language); err != nil {
			return nil, WrapError(providerWhisperServer, fmt.Errorf("write field: %w", err))
		}
	}
	if err := mw.Close(); err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("close form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.baseURL+"/inference", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("transcribe request: %w", err))
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Provider:   providerWhisperServer,
		}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerWhisperServer, fmt.Errorf("decode response: %w", err))
	}

	w.logger.Debug("transcribed utterance",
		"audio_seconds", utterance.Duration().Seconds(),
		"chars", len(out.Text),
		"latency_ms", latency,
	)

	return &Result{
		Text:         out.Text,
		Language:     w.config.Language,
		Provider:     providerWhisperServer,
		AudioSeconds: utterance.Duration().Seconds(),
		LatencyMs:    latency,
	}, nil
}

// Health checks that the server is reachable.
func (w *WhisperServer) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+"/", nil)
	if err != nil {
		return WrapError(providerWhisperServer, err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return WrapError(providerWhisperServer, fmt.Errorf("health check: %w", err))
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "whisper server unhealthy",
			Provider:   providerWhisperServer,
		}
	}

	return nil
}

// Close releases resources held by the provider.
func (w *WhisperServer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// Ensure WhisperServer implements Provider.
var _ Provider = (*WhisperServer)(nil)
