// Package audio provides PCM16 buffers, WAV encoding, and silence-gated
// recording on top of the audioio capture backends.
package audio

import (
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audioio"
)

// Buffer accumulates PCM16 audio, typically one utterance worth of
// microphone chunks.
type Buffer struct {
	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int

	samples []int16
	chunks  int
}

// NewBuffer creates an empty buffer for the given format.
func NewBuffer(sampleRate, channels int) *Buffer {
	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Append adds a chunk's samples to the buffer.
func (b *Buffer) Append(chunk audioio.AudioChunk) {
	b.samples = append(b.samples, chunk.Samples...)
	b.chunks++
}

// AppendSamples adds raw samples to the buffer.
func (b *Buffer) AppendSamples(samples []int16) {
	b.samples = append(b.samples, samples...)
	b.chunks++
}

// Samples returns the accumulated samples. The slice is owned by the
// buffer and must not be modified.
func (b *Buffer) Samples() []int16 {
	return b.samples
}

// Bytes returns the samples as little-endian PCM16 bytes.
func (b *Buffer) Bytes() []byte {
	return audioio.SamplesToBytes(b.samples)
}

// Chunks returns the number of chunks appended.
func (b *Buffer) Chunks() int {
	return b.chunks
}

// Len returns the number of samples in the buffer.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Empty reports whether the buffer holds no samples.
func (b *Buffer) Empty() bool {
	return len(b.samples) == 0
}

// Duration returns the playback duration of the buffered audio.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// Reset discards the buffered audio, keeping the format.
func (b *Buffer) Reset() {
	b.samples = b.samples[:0]
	b.chunks = 0
}
