package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audioio"
)

func loudChunk(n int) audioio.AudioChunk {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 5000
		} else {
			samples[i] = -5000
		}
	}
	return audioio.AudioChunk{Samples: samples, SampleRate: 16000, Channels: 1}
}

func silentChunk(n int) audioio.AudioChunk {
	return audioio.AudioChunk{Samples: make([]int16, n), SampleRate: 16000, Channels: 1}
}

func newScriptedRecorder(t *testing.T, gate GateConfig, script []audioio.AudioChunk) (*Recorder, *audioio.MockSource) {
	t.Helper()

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.ChunkSize = 64

	src := audioio.NewMockSource(cfg, nil, audioio.WithScript(script))
	t.Cleanup(func() { src.Close() })

	rec, err := NewRecorder(src, gate, nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	return rec, src
}

func TestRecorder_SilenceGate(t *testing.T) {
	gate := GateConfig{
		SilenceThreshold:   1000,
		MaxSilentChunks:    30,
		MinRecordingChunks: 15,
		MaxChunks:          1000,
	}

	// 16 loud chunks followed by endless silence: the gate needs 31
	// consecutive silent chunks to close, so recording stops at chunk 47.
	script := make([]audioio.AudioChunk, 16)
	for i := range script {
		script[i] = loudChunk(64)
	}

	rec, src := newScriptedRecorder(t, gate, script)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf, err := rec.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if buf.Chunks() != 47 {
		t.Errorf("Expected capture to stop at chunk 47, got %d", buf.Chunks())
	}
}

func TestRecorder_MaxChunksCap(t *testing.T) {
	gate := GateConfig{
		SilenceThreshold:   1000,
		MaxSilentChunks:    5,
		MinRecordingChunks: 2,
		MaxChunks:          50,
	}

	// All-loud stream: only the hard cap can stop the recording.
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.ChunkSize = 64
	loud := audioio.NewMockSource(cfg, nil, audioio.WithSineWave(440, 0.8))
	defer loud.Close()

	rec, err := NewRecorder(loud, gate, nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	ctx := context.Background()
	if err := loud.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf, err := rec.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if buf.Chunks() != 50 {
		t.Errorf("Expected capture to stop at the %d-chunk cap, got %d", gate.MaxChunks, buf.Chunks())
	}
}

func TestRecorder_MinRecordingHoldsGateOpen(t *testing.T) {
	gate := GateConfig{
		SilenceThreshold:   1000,
		MaxSilentChunks:    3,
		MinRecordingChunks: 10,
		MaxChunks:          1000,
	}

	// Pure silence: the silent run passes MaxSilentChunks almost
	// immediately, but the gate cannot close until more than
	// MinRecordingChunks have been recorded.
	rec, src := newScriptedRecorder(t, gate, nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf, err := rec.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if buf.Chunks() != 11 {
		t.Errorf("Expected 11 chunks (first stop after min length), got %d", buf.Chunks())
	}
}

func TestRecorder_CaptureForExactChunkCount(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	src := audioio.NewMockSource(cfg, nil, audioio.WithSineWave(440, 0.8))
	defer src.Close()

	rec, err := NewRecorder(src, DefaultGateConfig(), nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 1s at 16kHz with 1024-sample chunks is exactly 15 chunks,
	// regardless of how fast the source delivers them.
	buf, err := rec.CaptureFor(ctx, time.Second)
	if err != nil {
		t.Fatalf("CaptureFor failed: %v", err)
	}
	if buf.Chunks() != 15 {
		t.Errorf("Expected exactly 15 chunks, got %d", buf.Chunks())
	}

	half, err := rec.CaptureFor(ctx, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("CaptureFor failed: %v", err)
	}
	if half.Chunks() != 7 {
		t.Errorf("Expected exactly 7 chunks for 500ms, got %d", half.Chunks())
	}
}

func TestRecorder_ContextCancelled(t *testing.T) {
	rec, src := newScriptedRecorder(t, DefaultGateConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	_, err := rec.Capture(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRecorder_SourceEndsImmediately(t *testing.T) {
	rec, src := newScriptedRecorder(t, DefaultGateConfig(), nil)

	// Never started: Read returns EOF right away.
	_ = src

	ctx := context.Background()
	_, err := rec.Capture(ctx)
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected ErrNoSpeech, got %v", err)
	}
}

func TestRecorder_InvalidGate(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	src := audioio.NewMockSource(cfg, nil)
	defer src.Close()

	gate := DefaultGateConfig()
	gate.MaxChunks = 0

	if _, err := NewRecorder(src, gate, nil); err == nil {
		t.Error("Expected error for invalid gate config")
	}
}

func TestGateConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GateConfig)
		wantErr bool
	}{
		{"defaults", func(g *GateConfig) {}, false},
		{"negative threshold", func(g *GateConfig) { g.SilenceThreshold = -1 }, true},
		{"zero max silent", func(g *GateConfig) { g.MaxSilentChunks = 0 }, true},
		{"negative min recording", func(g *GateConfig) { g.MinRecordingChunks = -1 }, true},
		{"zero max chunks", func(g *GateConfig) { g.MaxChunks = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := DefaultGateConfig()
			tt.mutate(&gate)
			err := gate.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
