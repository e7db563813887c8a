package audio

import (
	"math"
	"time"
)

// Stats summarizes a recorded buffer; used by the mic self-test.
type Stats struct {
	Duration time.Duration `json:"duration"`
	Samples  int           `json:"samples"`
	RMS      float64       `json:"rms"`
	Peak     int16         `json:"peak"`
}

// Analyze computes level statistics for the buffer.
func Analyze(b *Buffer) Stats {
	stats := Stats{
		Duration: b.Duration(),
		Samples:  b.Len(),
	}

	if b.Empty() {
		return stats
	}

	var sumSquares float64
	for _, s := range b.Samples() {
		sumSquares += float64(s) * float64(s)
		if s > stats.Peak {
			stats.Peak = s
		}
		if s == math.MinInt16 {
			stats.Peak = math.MaxInt16
		} else if -s > stats.Peak {
			stats.Peak = -s
		}
	}
	stats.RMS = math.Sqrt(sumSquares / float64(b.Len()))

	return stats
}

// TrimSilence returns a copy of the buffer with leading and trailing
// samples below the threshold removed. Trimming before upload keeps
// transcription payloads small.
func TrimSilence(b *Buffer, threshold int16) *Buffer {
	samples := b.Samples()

	start := 0
	for start < len(samples) && abs16(samples[start]) < int32(threshold) {
		start++
	}

	end := len(samples)
	for end > start && abs16(samples[end-1]) < int32(threshold) {
		end--
	}

	out := NewBuffer(b.SampleRate, b.Channels)
	if start < end {
		trimmed := make([]int16, end-start)
		copy(trimmed, samples[start:end])
		out.AppendSamples(trimmed)
	}
	return out
}

func abs16(s int16) int32 {
	if s < 0 {
		return -int32(s)
	}
	return int32(s)
}
