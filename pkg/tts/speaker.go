package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audioio"
)

// ErrNotPCM is returned when a provider hands back audio the playback
// path cannot write to the sink without decoding.
var ErrNotPCM = errors.New("tts: provider returned non-PCM audio")

// Speaker fuses a TTS provider with an audio sink: it synthesizes text,
// resamples to the sink's rate if needed, applies volume, and plays the
// result. Cancelling the context interrupts playback and clears the
// sink's buffer.
type Speaker struct {
	provider  Provider
	sink      audioio.Sink
	logger    *slog.Logger
	volume    float64
	chunkSize int
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithVolume sets the playback volume, clamped to [0, 1].
func WithVolume(v float64) SpeakerOption {
	return func(s *Speaker) {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		s.volume = v
	}
}

// WithChunkSize sets samples written to the sink per chunk.
func WithChunkSize(n int) SpeakerOption {
	return func(s *Speaker) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = logger.With("component", "tts.speaker")
	}
}

// NewSpeaker creates a Speaker playing through the given sink.
func NewSpeaker(provider Provider, sink audioio.Sink, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		provider:  provider,
		sink:      sink,
		logger:    slog.Default().With("component", "tts.speaker"),
		volume:    1.0,
		chunkSize: sink.Config().ChunkSize,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = 1024
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak synthesizes text and plays it to completion.
// On context cancellation the sink buffer is cleared so playback stops
// mid-word instead of draining.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyText
	}

	start := time.Now()

	result, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if !result.Format.IsPCM() {
		return ErrNotPCM
	}

	samples := audioio.BytesToSamples(result.Audio)

	sinkRate := s.sink.Config().SampleRate
	if result.Format.SampleRate != sinkRate && sinkRate > 0 {
		samples = audioio.Resample(samples, result.Format.SampleRate, sinkRate)
	}

	if s.volume < 1.0 {
		samples = scaleSamples(samples, s.volume)
	}

	for offset := 0; offset < len(samples); offset += s.chunkSize {
		if err := ctx.Err(); err != nil {
			s.sink.Clear()
			return err
		}

		end := offset + s.chunkSize
		if end > len(samples) {
			end = len(samples)
		}

		chunk := audioio.AudioChunk{
			Samples:    samples[offset:end],
			SampleRate: sinkRate,
			Channels:   1,
		}
		if err := s.sink.Write(ctx, chunk); err != nil {
			s.sink.Clear()
			return fmt.Errorf("write audio: %w", err)
		}
	}

	if err := s.sink.Flush(ctx); err != nil {
		return fmt.Errorf("flush audio: %w", err)
	}

	s.logger.Debug("spoke reply",
		"chars", len(text),
		"samples", len(samples),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Interrupt discards any buffered audio immediately.
func (s *Speaker) Interrupt() error {
	return s.sink.Clear()
}

// scaleSamples applies a volume multiplier with clipping.
func scaleSamples(samples []int16, volume float64) []int16 {
	out := make([]int16, len(samples))
	for i, sample := range samples {
		v := float64(sample) * volume
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
