package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/benchidera/speak-to-llm/pkg/audioio"
)

func sampleBuffer(t *testing.T) *Buffer {
	t.Helper()

	buf := NewBuffer(16000, 1)
	buf.AppendSamples([]int16{0, 1000, -1000, 32767, -32768, 42})
	return buf
}

func TestEncodeWAV_Header(t *testing.T) {
	buf := sampleBuffer(t)
	wav := EncodeWAV(buf)

	if len(wav) != 44+buf.Len()*2 {
		t.Fatalf("Expected %d bytes, got %d", 44+buf.Len()*2, len(wav))
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("Missing RIFF/WAVE magic")
	}

	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", bits)
	}

	if size := binary.LittleEndian.Uint32(wav[40:44]); int(size) != buf.Len()*2 {
		t.Errorf("Expected data size %d, got %d", buf.Len()*2, size)
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	buf := sampleBuffer(t)

	decoded, err := DecodeWAV(EncodeWAV(buf))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decoded.SampleRate != buf.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", buf.SampleRate, decoded.SampleRate)
	}
	if decoded.Channels != buf.Channels {
		t.Errorf("Expected %d channels, got %d", buf.Channels, decoded.Channels)
	}
	if decoded.Len() != buf.Len() {
		t.Fatalf("Expected %d samples, got %d", buf.Len(), decoded.Len())
	}
	for i, s := range buf.Samples() {
		if decoded.Samples()[i] != s {
			t.Fatalf("Sample %d: expected %d, got %d", i, s, decoded.Samples()[i])
		}
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("RIFF")},
		{"wrong magic", make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWAV(tt.data); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestWriteWAVFile(t *testing.T) {
	buf := sampleBuffer(t)
	path := filepath.Join(t.TempDir(), "test.wav")

	if err := WriteWAVFile(path, buf); err != nil {
		t.Fatalf("WriteWAVFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	decoded, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if decoded.Len() != buf.Len() {
		t.Errorf("Expected %d samples, got %d", buf.Len(), decoded.Len())
	}
}

func TestBuffer_Duration(t *testing.T) {
	buf := NewBuffer(16000, 1)
	buf.AppendSamples(make([]int16, 16000))

	if d := buf.Duration(); d.Seconds() != 1.0 {
		t.Errorf("Expected 1s duration, got %v", d)
	}
}

func TestBuffer_AppendAndReset(t *testing.T) {
	buf := NewBuffer(16000, 1)

	buf.Append(audioio.AudioChunk{Samples: []int16{1, 2, 3}})
	buf.Append(audioio.AudioChunk{Samples: []int16{4, 5}})

	if buf.Len() != 5 {
		t.Errorf("Expected 5 samples, got %d", buf.Len())
	}
	if buf.Chunks() != 2 {
		t.Errorf("Expected 2 chunks, got %d", buf.Chunks())
	}

	buf.Reset()
	if !buf.Empty() || buf.Chunks() != 0 {
		t.Error("Expected empty buffer after Reset")
	}
}

func TestAnalyzeBuffer(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		stats := Analyze(NewBuffer(16000, 1))
		if stats.RMS != 0 || stats.Peak != 0 || stats.Samples != 0 {
			t.Errorf("Expected zero stats for empty buffer, got %+v", stats)
		}
	})

	t.Run("constant signal", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		samples := make([]int16, 100)
		for i := range samples {
			samples[i] = 3000
		}
		buf.AppendSamples(samples)

		stats := Analyze(buf)
		if stats.RMS < 2999 || stats.RMS > 3001 {
			t.Errorf("Expected RMS ~3000, got %f", stats.RMS)
		}
		if stats.Peak != 3000 {
			t.Errorf("Expected peak 3000, got %d", stats.Peak)
		}
	})

	t.Run("negative peak", func(t *testing.T) {
		buf := NewBuffer(16000, 1)
		buf.AppendSamples([]int16{100, -5000, 200})

		stats := Analyze(buf)
		if stats.Peak != 5000 {
			t.Errorf("Expected peak 5000, got %d", stats.Peak)
		}
	})
}

func TestTrimSilenceBuffer(t *testing.T) {
	buf := NewBuffer(16000, 1)
	buf.AppendSamples([]int16{0, 5, -3, 4000, -4000, 2000, 2, 0, 0})

	trimmed := TrimSilence(buf, 100)

	want := []int16{4000, -4000, 2000}
	if trimmed.Len() != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), trimmed.Len())
	}
	for i, s := range want {
		if trimmed.Samples()[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, trimmed.Samples()[i])
		}
	}

	t.Run("all silence", func(t *testing.T) {
		quiet := NewBuffer(16000, 1)
		quiet.AppendSamples(make([]int16, 50))

		trimmed := TrimSilence(quiet, 100)
		if !trimmed.Empty() {
			t.Errorf("Expected empty buffer, got %d samples", trimmed.Len())
		}
	})
}
