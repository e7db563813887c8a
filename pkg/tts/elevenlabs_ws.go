package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benchidera/speak-to-llm/internal/httpc"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	wsHandshakeTimeout  = 10 * time.Second
	wsKeepalive         = 30 * time.Second
	wsWriteTimeout      = 10 * time.Second
	wsFinalTimeout      = 60 * time.Second
)

// ElevenLabsWS implements Provider over the ElevenLabs streaming WebSocket.
// The connection is dialed lazily on first use and kept warm between
// requests, which shaves the TLS and handshake cost off each reply.
// Synthesis requests are serialized; one utterance is in flight at a time.
type ElevenLabsWS struct {
	config *Config
	logger *slog.Logger

	// requestMu serializes Synthesize/Stream calls.
	requestMu sync.Mutex

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected bool

	// collector receives decoded audio for the in-flight request.
	collectMu sync.Mutex
	collector func(pcm []byte, final bool)

	httpClient *http.Client

	// overridable in tests
	wsURL     string
	keepalive time.Duration
}

// NewElevenLabsWS creates a WebSocket-based ElevenLabs TTS provider.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &ElevenLabsWS{
		config:     cfg,
		logger:     cfg.Logger.With("component", "tts.elevenlabs_ws"),
		httpClient: httpc.NewClient(cfg.Timeout),
		wsURL:      elevenLabsWSBaseURL,
		keepalive:  wsKeepalive,
	}, nil
}

// Connect pre-warms the WebSocket connection.
// Optional; Synthesize dials on demand.
func (e *ElevenLabsWS) Connect(ctx context.Context) error {
	return e.ensureConnected(ctx)
}

func (e *ElevenLabsWS) ensureConnected(ctx context.Context) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if e.connected && e.conn != nil {
		return nil
	}

	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.wsURL, e.config.VoiceID, e.config.ModelID, e.config.OutputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return WrapError(providerElevenLabs,
				fmt.Errorf("websocket dial (status %d): %w", resp.StatusCode, err))
		}
		return WrapError(providerElevenLabs, fmt.Errorf("websocket dial: %w", err))
	}

	// Begin-of-stream message carries the voice settings.
	bos := map[string]interface{}{
		"text": " ",
		"voice_settings": map[string]interface{}{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		conn.Close()
		return WrapError(providerElevenLabs, fmt.Errorf("send BOS: %w", err))
	}

	e.conn = conn
	e.connected = true
	go e.readLoop(conn)
	go e.keepaliveLoop(conn)

	e.logger.Info("websocket connected",
		"voice", e.config.VoiceID,
		"model", e.config.ModelID,
	)
	return nil
}

// Synthesize sends text over the socket and collects audio until the
// server marks the utterance final.
func (e *ElevenLabsWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	e.requestMu.Lock()
	defer e.requestMu.Unlock()

	start := time.Now()

	if err := e.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	done := make(chan struct{})
	var once sync.Once

	e.setCollector(func(pcm []byte, final bool) {
		buf.Write(pcm)
		if final {
			once.Do(func() { close(done) })
		}
	})
	defer e.setCollector(nil)

	if err := e.send(text); err != nil {
		return nil, err
	}
	if err := e.flush(); err != nil {
		return nil, err
	}

	timeout := e.config.StreamTimeout
	if timeout <= 0 {
		timeout = wsFinalTimeout
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, WrapError(providerElevenLabs, fmt.Errorf("timed out waiting for final audio"))
	}

	latency := time.Since(start).Milliseconds()
	format := AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}

	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", buf.Len(),
		"latency_ms", latency,
	)

	samples := buf.Len() / 2
	return &AudioResult{
		Audio:     buf.Bytes(),
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  time.Duration(samples) * time.Second / time.Duration(format.SampleRate),
	}, nil
}

// Stream sends text and returns a stream of audio chunks as they arrive.
func (e *ElevenLabsWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	e.requestMu.Lock()
	defer e.requestMu.Unlock()

	if err := e.ensureConnected(ctx); err != nil {
		return nil, err
	}

	format := AudioFormat{
		Encoding:   e.config.OutputFormat,
		SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
		Channels:   1,
		BitDepth:   16,
	}

	ch := make(chan []byte, 32)
	quit := make(chan struct{})
	var once sync.Once

	e.setCollector(func(pcm []byte, final bool) {
		if len(pcm) > 0 {
			select {
			case ch <- pcm:
			case <-quit:
				return
			case <-ctx.Done():
				return
			}
		}
		if final {
			once.Do(func() { close(ch) })
		}
	})

	if err := e.send(text); err != nil {
		e.setCollector(nil)
		return nil, err
	}
	if err := e.flush(); err != nil {
		e.setCollector(nil)
		return nil, err
	}

	return &wsStream{
		ch:     ch,
		quit:   quit,
		format: format,
		done: func() {
			e.setCollector(nil)
			close(quit)
		},
	}, nil
}

// Health checks API key validity over HTTP; the socket itself only
// reports errors once text is sent.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", elevenLabsBaseURL+"/user", nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "health check failed",
			Provider:   providerElevenLabs,
		}
	}
	return nil
}

// Close terminates the WebSocket connection.
func (e *ElevenLabsWS) Close() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if e.conn != nil {
		e.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		e.conn.Close()
		e.conn = nil
	}
	e.connected = false
	return nil
}

// IsConnected reports whether the socket is currently up.
func (e *ElevenLabsWS) IsConnected() bool {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.connected
}

func (e *ElevenLabsWS) send(text string) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if !e.connected || e.conn == nil {
		return WrapError(providerElevenLabs, fmt.Errorf("not connected"))
	}
	// Trailing space tells the server the token is complete.
	return e.conn.WriteJSON(map[string]interface{}{"text": text + " "})
}

// flush sends the end-of-stream message so the server generates the
// remaining audio and marks the utterance final.
func (e *ElevenLabsWS) flush() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if !e.connected || e.conn == nil {
		return WrapError(providerElevenLabs, fmt.Errorf("not connected"))
	}
	return e.conn.WriteJSON(map[string]interface{}{"text": ""})
}

func (e *ElevenLabsWS) setCollector(fn func(pcm []byte, final bool)) {
	e.collectMu.Lock()
	e.collector = fn
	e.collectMu.Unlock()
}

// readLoop decodes server messages and hands audio to the collector.
// It exits when the connection drops; the next request redials.
func (e *ElevenLabsWS) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Warn("websocket read error", "error", err)
			}
			e.markDisconnected(conn)
			return
		}

		var resp struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			e.logger.Warn("failed to parse response", "error", err)
			continue
		}

		var pcm []byte
		if resp.Audio != "" {
			pcm, err = base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				e.logger.Warn("failed to decode audio", "error", err)
				continue
			}
		}

		e.collectMu.Lock()
		collector := e.collector
		e.collectMu.Unlock()
		if collector != nil {
			collector(pcm, resp.IsFinal)
		}
	}
}

// keepaliveLoop pings the socket so idle connections stay warm.
func (e *ElevenLabsWS) keepaliveLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(e.keepalive)
	defer ticker.Stop()

	for range ticker.C {
		e.connMu.Lock()
		current := e.conn
		e.connMu.Unlock()
		if current != conn {
			return
		}
		// WriteControl is safe alongside the data writes that happen
		// under connMu.
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
			e.markDisconnected(conn)
			return
		}
	}
}

func (e *ElevenLabsWS) markDisconnected(conn *websocket.Conn) {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.conn == conn {
		conn.Close()
		e.conn = nil
		e.connected = false
	}
}

// wsStream adapts collector callbacks to the AudioStream interface.
type wsStream struct {
	ch     chan []byte
	quit   chan struct{}
	format AudioFormat
	done   func()
	closed bool
}

func (s *wsStream) Read() ([]byte, error) {
	select {
	case chunk, ok := <-s.ch:
		if !ok {
			return nil, nil
		}
		return chunk, nil
	case <-s.quit:
		return nil, nil
	}
}

func (s *wsStream) Close() error {
	if !s.closed {
		s.closed = true
		s.done()
	}
	return nil
}

func (s *wsStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabsWS implements Provider at compile time.
var _ Provider = (*ElevenLabsWS)(nil)
