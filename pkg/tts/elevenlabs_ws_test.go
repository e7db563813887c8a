package tts

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeStreamServer speaks just enough of the streaming-synthesis
// protocol: it swallows the BOS frame, answers each text frame with an
// audio frame, and marks the flush frame final.
func fakeStreamServer(t *testing.T, pcm []byte) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		encoded := base64.StdEncoding.EncodeToString(pcm)
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if _, bos := msg["voice_settings"]; bos {
				continue
			}
			text, _ := msg["text"].(string)
			resp := map[string]interface{}{"isFinal": text == ""}
			if text != "" {
				resp["audio"] = encoded
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

func newTestWSProvider(t *testing.T, server *httptest.Server) *ElevenLabsWS {
	t.Helper()

	provider, err := NewElevenLabsWS(
		WithAPIKey("test-key"),
		WithVoice("test-voice"),
		WithOutputFormat(EncodingPCM16),
	)
	if err != nil {
		t.Fatalf("NewElevenLabsWS failed: %v", err)
	}
	provider.wsURL = strings.Replace(server.URL, "http", "ws", 1)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestElevenLabsWS_Synthesize(t *testing.T) {
	pcm := make([]byte, 3200) // 100ms at 16kHz PCM16
	server := fakeStreamServer(t, pcm)
	defer server.Close()

	provider := newTestWSProvider(t, server)

	result, err := provider.Synthesize(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(result.Audio) != len(pcm) {
		t.Errorf("Expected %d audio bytes, got %d", len(pcm), len(result.Audio))
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Expected 100ms duration, got %v", result.Duration)
	}
	if result.Format.SampleRate != 16000 {
		t.Errorf("Expected 16000 sample rate, got %d", result.Format.SampleRate)
	}
}

func TestElevenLabsWS_KeepaliveDuringSynthesis(t *testing.T) {
	pcm := make([]byte, 320)
	server := fakeStreamServer(t, pcm)
	defer server.Close()

	provider := newTestWSProvider(t, server)
	// Pings fire constantly so they interleave with synthesis writes;
	// control frames must coexist with the data writes on one socket.
	provider.keepalive = time.Millisecond

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		result, err := provider.Synthesize(ctx, "ping me")
		if err != nil {
			t.Fatalf("Synthesize %d failed: %v", i, err)
		}
		if len(result.Audio) != len(pcm) {
			t.Fatalf("Synthesize %d: expected %d bytes, got %d", i, len(pcm), len(result.Audio))
		}
	}
}

func TestElevenLabsWS_Stream(t *testing.T) {
	pcm := make([]byte, 640)
	server := fakeStreamServer(t, pcm)
	defer server.Close()

	provider := newTestWSProvider(t, server)

	stream, err := provider.Stream(context.Background(), "streaming test")
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var total int
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if chunk == nil {
			break
		}
		total += len(chunk)
	}
	if total != len(pcm) {
		t.Errorf("Expected %d streamed bytes, got %d", len(pcm), total)
	}
}
