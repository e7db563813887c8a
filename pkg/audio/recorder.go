package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audioio"
)

// ErrNoSpeech indicates a capture ended without accumulating any audio.
var ErrNoSpeech = errors.New("audio: no speech captured")

// GateConfig controls the silence gate that decides when an utterance
// has ended.
type GateConfig struct {
	// SilenceThreshold is the mean-absolute-amplitude level below which
	// a chunk counts as silent.
	SilenceThreshold float64 `yaml:"silence_threshold" json:"silence_threshold"`

	// MaxSilentChunks is the run of consecutive silent chunks that ends
	// a recording once the minimum length has been met.
	MaxSilentChunks int `yaml:"max_silent_chunks" json:"max_silent_chunks"`

	// MinRecordingChunks is the minimum number of chunks to record
	// before the silence gate may stop the capture.
	MinRecordingChunks int `yaml:"min_recording_chunks" json:"min_recording_chunks"`

	// MaxChunks is the hard cap on recording length regardless of
	// loudness, so a noisy room cannot record forever.
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`
}

// DefaultGateConfig returns gate settings tuned for 1024-sample chunks
// at 16kHz: stop after ~2s of silence, record at least ~1s, cap at ~64s.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SilenceThreshold:   1000,
		MaxSilentChunks:    30,
		MinRecordingChunks: 15,
		MaxChunks:          1000,
	}
}

// Validate checks that the gate settings are usable.
func (g *GateConfig) Validate() error {
	if g.SilenceThreshold < 0 {
		return fmt.Errorf("silence_threshold must be non-negative, got %f", g.SilenceThreshold)
	}
	if g.MaxSilentChunks <= 0 {
		return fmt.Errorf("max_silent_chunks must be positive, got %d", g.MaxSilentChunks)
	}
	if g.MinRecordingChunks < 0 {
		return fmt.Errorf("min_recording_chunks must be non-negative, got %d", g.MinRecordingChunks)
	}
	if g.MaxChunks <= 0 {
		return fmt.Errorf("max_chunks must be positive, got %d", g.MaxChunks)
	}
	return nil
}

// Recorder captures single utterances from an audio source, using a
// silence gate to detect the end of speech.
type Recorder struct {
	source audioio.Source
	gate   GateConfig
	logger *slog.Logger
}

// NewRecorder creates a recorder reading from the given source.
func NewRecorder(source audioio.Source, gate GateConfig, logger *slog.Logger) (*Recorder, error) {
	if source == nil {
		return nil, errors.New("audio: source is required")
	}
	if err := gate.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		source: source,
		gate:   gate,
		logger: logger,
	}, nil
}

// Capture records one utterance. It accumulates every chunk it reads,
// tracking the run of consecutive chunks whose energy falls below the
// silence threshold. Recording stops when that run exceeds
// MaxSilentChunks (provided more than MinRecordingChunks are recorded)
// or when MaxChunks is reached, whichever comes first.
//
// Capture returns the audio recorded so far even when the source ends
// early; it returns ErrNoSpeech if nothing was recorded at all.
func (r *Recorder) Capture(ctx context.Context) (*Buffer, error) {
	cfg := r.source.Config()
	buf := NewBuffer(cfg.SampleRate, cfg.Channels)

	silentRun := 0
	start := time.Now()

	for {
		chunk, err := r.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) && !buf.Empty() {
				break
			}
			if buf.Empty() {
				if errors.Is(err, io.EOF) {
					return nil, ErrNoSpeech
				}
				return nil, fmt.Errorf("read audio: %w", err)
			}
			return nil, fmt.Errorf("read audio: %w", err)
		}

		buf.Append(chunk)

		if chunk.Energy() < r.gate.SilenceThreshold {
			silentRun++
		} else {
			silentRun = 0
		}

		if silentRun > r.gate.MaxSilentChunks && buf.Chunks() > r.gate.MinRecordingChunks {
			r.logger.Debug("silence gate closed",
				"chunks", buf.Chunks(),
				"duration", buf.Duration(),
			)
			break
		}

		if buf.Chunks() >= r.gate.MaxChunks {
			r.logger.Warn("recording hit max length",
				"chunks", buf.Chunks(),
				"duration", buf.Duration(),
			)
			break
		}
	}

	r.logger.Info("utterance captured",
		"chunks", buf.Chunks(),
		"duration", buf.Duration(),
		"elapsed", time.Since(start),
	)

	return buf, nil
}

// CaptureFor records a fixed duration's worth of audio, ignoring the
// silence gate. The duration is realized as an exact chunk count
// (sample_rate / chunk_size * seconds), so the recorded length does
// not depend on how fast the source delivers.
// Used by microphone self-tests.
func (r *Recorder) CaptureFor(ctx context.Context, d time.Duration) (*Buffer, error) {
	cfg := r.source.Config()
	buf := NewBuffer(cfg.SampleRate, cfg.Channels)

	target := int(float64(cfg.SampleRate) / float64(cfg.ChunkSize) * d.Seconds())
	for i := 0; i < target; i++ {
		chunk, err := r.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read audio: %w", err)
		}
		buf.Append(chunk)
	}

	if buf.Empty() {
		return nil, ErrNoSpeech
	}
	return buf, nil
}
