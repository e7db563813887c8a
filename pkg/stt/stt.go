// Package stt provides a unified interface for speech-to-text providers.
//
// The package supports multiple transcription backends including the
// OpenAI transcription API, a local whisper.cpp server, and Google Cloud
// Speech. All providers implement the Provider interface, enabling
// seamless switching without changing caller code.
//
// Example usage:
//
//	provider, _ := stt.NewWhisperAPI(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    stt.WithLanguage("en"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Transcribe(ctx, utterance)
//	// result.Text contains the transcript
package stt

import (
	"context"

	"github.com/benchidera/speak-to-llm/pkg/audio"
)

// uploadTrimThreshold is the amplitude below which flanking samples
// count as silence when trimming an utterance before upload.
const uploadTrimThreshold = 500

// Provider defines the speech-to-text provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Transcribe converts recorded audio to text.
	// An utterance with no recognizable speech yields an empty Text,
	// not an error.
	Transcribe(ctx context.Context, utterance *audio.Buffer) (*Result, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Result represents a completed transcription.
type Result struct {
	// Text is the transcript. Empty when no speech was recognized.
	Text string

	// Language is the detected or requested language code.
	Language string

	// Provider identifies which backend produced the transcript.
	Provider string

	// AudioSeconds is the duration of the transcribed audio.
	AudioSeconds float64

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}
