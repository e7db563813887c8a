package audio

import (
	"math"
	"testing"
	"time"
)

func TestAnalyze(t *testing.T) {
	t.Run("level stats", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples([]int16{0, 3000, -4000, 0})

		stats := Analyze(buf)
		if stats.Samples != 4 {
			t.Errorf("Samples = %d, want 4", stats.Samples)
		}
		if stats.Peak != 4000 {
			t.Errorf("Peak = %d, want 4000", stats.Peak)
		}
		// RMS of {0, 3000, -4000, 0} is sqrt(25_000_000/4) = 2500.
		if math.Abs(stats.RMS-2500) > 0.01 {
			t.Errorf("RMS = %f, want 2500", stats.RMS)
		}
	})

	t.Run("duration", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples(make([]int16, 8000))

		stats := Analyze(buf)
		if stats.Duration != 500*time.Millisecond {
			t.Errorf("Duration = %s, want 500ms", stats.Duration)
		}
	})

	t.Run("empty buffer", func(t *testing.T) {
		stats := Analyze(NewBuffer(16000, 1))
		if stats.Samples != 0 || stats.Peak != 0 || stats.RMS != 0 {
			t.Errorf("empty buffer stats = %+v, want zeros", stats)
		}
	})

	t.Run("min int16 peak", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples([]int16{math.MinInt16})

		stats := Analyze(buf)
		if stats.Peak != math.MaxInt16 {
			t.Errorf("Peak = %d, want %d", stats.Peak, math.MaxInt16)
		}
	})
}

func TestTrimSilence(t *testing.T) {
	t.Run("trims flanking silence", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples([]int16{0, 10, -20, 2000, -3000, 1500, 5, 0, 0})

		trimmed := TrimSilence(buf, 500)
		want := []int16{2000, -3000, 1500}
		got := trimmed.Samples()
		if len(got) != len(want) {
			t.Fatalf("trimmed to %d samples, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
			}
		}
	})

	t.Run("all silence trims to empty", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples(make([]int16, 1024))

		trimmed := TrimSilence(buf, 500)
		if !trimmed.Empty() {
			t.Errorf("all-silence buffer trimmed to %d samples, want 0", trimmed.Len())
		}
	})

	t.Run("loud buffer untouched", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples([]int16{1000, -1000, 1000})

		trimmed := TrimSilence(buf, 500)
		if trimmed.Len() != 3 {
			t.Errorf("trimmed to %d samples, want 3", trimmed.Len())
		}
	})

	t.Run("keeps format", func(t *testing.T) {
		buf := NewBuffer(44100, 2)
		buf.AppendSamples([]int16{1000, 1000})

		trimmed := TrimSilence(buf, 500)
		if trimmed.SampleRate != 44100 || trimmed.Channels != 2 {
			t.Errorf("trimmed format = %d/%d, want 44100/2", trimmed.SampleRate, trimmed.Channels)
		}
	})
}
