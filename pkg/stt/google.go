package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audio"

	"github.com/benchidera/speak-to-llm/internal/httpc"
)

const (
	googleSpeechBaseURL = "https://speech.googleapis.com/v1"
	providerGoogle      = "google"
)

// Google implements Provider using the Google Cloud Speech REST API
// with API-key authentication.
type Google struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewGoogle creates a new Google Cloud Speech provider.
func NewGoogle(opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleSpeechBaseURL
	}

	return &Google{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "stt.google"),
		baseURL: baseURL,
	}, nil
}

type googleRecognizeRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleRecognitionAudio  `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type googleRecognitionAudio struct {
	Content string `json:"content"`
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe sends the raw PCM16 audio for synchronous recognition.
func (g *Google) Transcribe(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
	if utterance == nil || utterance.Empty() {
		// Nothing to transcribe is not an error.
		return &Result{Provider: providerGoogle}, nil
	}

	// Trim flanking silence so uploads stay small. A buffer that is
	// all silence has nothing to transcribe either.
	utterance = audio.TrimSilence(utterance, uploadTrimThreshold)
	if utterance.Empty() {
		return &Result{Provider: providerGoogle}, nil
	}

	start := time.Now()

	language := g.config.Language
	if language == "" {
		language = "en-US"
	}

	payload := googleRecognizeRequest{
		Config: googleRecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: utterance.SampleRate,
			LanguageCode:    language,
		},
		Audio: googleRecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(utterance.Bytes()),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("marshal payload: %w", err))
	}

	url := fmt.Sprintf("%s/speech:recognize?key=%s", g.baseURL, g.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("recognize request: %w", err))
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var out googleRecognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode response: %w", err))
	}

	// Join the transcripts of all result segments.
	text := ""
	for _, r := range out.Results {
		if len(r.Alternatives) > 0 {
			text += r.Alternatives[0].Transcript
		}
	}

	g.logger.Debug("transcribed utterance",
		"audio_seconds", utterance.Duration().Seconds(),
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Result{
		Text:         text,
		Language:     language,
		Provider:     providerGoogle,
		AudioSeconds: utterance.Duration().Seconds(),
		LatencyMs:    latency,
	}, nil
}

// parseError reads and parses an error response.
func (g *Google) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerGoogle,
	}
}

// Health verifies the API key with a minimal recognize call.
func (g *Google) Health(ctx context.Context) error {
	// An empty recognize request returns 400 for a valid key and 401/403
	// for a bad one.
	url := fmt.Sprintf("%s/speech:recognize?key=%s", g.baseURL, g.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return WrapError(providerGoogle, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return WrapError(providerGoogle, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return g.parseError(resp)
	}

	return nil
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

// Ensure Google implements Provider.
var _ Provider = (*Google)(nil)
