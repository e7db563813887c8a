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
	openAIBaseURL      = "https://api.openai.com/v1"
	providerWhisperAPI = "whisper_api"
)

// WhisperAPI implements Provider using the OpenAI transcription API.
type WhisperAPI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewWhisperAPI creates a new OpenAI transcription provider.
func NewWhisperAPI(opts ...Option) (*WhisperAPI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	return &WhisperAPI{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.whisper_api"),
		baseURL: baseURL,
	}, nil
}

// Transcribe uploads the utterance as a WAV file and returns the transcript.
func (w *WhisperAPI) Transcribe(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
	if utterance == nil || utterance.Empty() {
		// Nothing to transcribe is not an error.
		return &Result{Provider: providerWhisperAPI}, nil
	}

	// Trim flanking silence so uploads stay small. A buffer that is
	// all silence has nothing to transcribe either.
	utterance = audio.TrimSilence(utterance, uploadTrimThreshold)
	if utterance.Empty() {
		return &Result{Provider: providerWhisperAPI}, nil
	}

	start := time.Now()

	body, contentType, err := w.buildForm(utterance)
	if err != nil {
		return nil, WrapError(providerWhisperAPI, err)
	}

	resp, err := w.doWithRetry(ctx, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, w.parseError(resp)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerWhisperAPI, fmt.Errorf("decode response: %w", err))
	}

	w.logger.Debug("transcribed utterance",
		"audio_seconds", utterance.Duration().Seconds(),
		"chars", len(out.Text),
		"latency_ms", latency,
		"model", w.config.Model,
	)

	return &Result{
		Text:         out.Text,
		Language:     w.config.Language,
		Provider:     providerWhisperAPI,
		AudioSeconds: utterance.Duration().Seconds(),
		LatencyMs:    latency,
	}, nil
}

// buildForm encodes the utterance as a multipart upload.
func (w *WhisperAPI) buildForm(utterance *audio.Buffer) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "speech.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(utterance)); err != nil {
		return nil, "", fmt.Errorf("write wav: %w", err)
	}

	if err := mw.WriteField("model", w.config.Model); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if w.config.Language != "" {
		if err := mw.WriteField("language", w.config.Language); err != nil {
			return nil, "", fmt.Errorf("write language field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}

// doWithRetry posts the form with retry logic.
func (w *WhisperAPI) doWithRetry(ctx context.Context, body []byte, contentType string) (*http.Response, error) {
	url := w.baseURL + "/audio/transcriptions"

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerWhisperAPI, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerWhisperAPI, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = w.parseError(resp)
			w.logger.Warn("retrying transcription",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (w *WhisperAPI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerWhisperAPI,
	}
}

// Health checks API connectivity and API key validity.
func (w *WhisperAPI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+"/models", nil)
	if err != nil {
		return WrapError(providerWhisperAPI, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return WrapError(providerWhisperAPI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return w.parseError(resp)
	}

	return nil
}

// Close releases resources held by the provider.
func (w *WhisperAPI) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// Ensure WhisperAPI implements Provider.
var _ Provider = (*WhisperAPI)(nil)
