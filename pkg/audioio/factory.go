package audioio

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"chunk_size", cfg.ChunkSize,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger, WithRealtime()), nil
	case BackendALSA:
		return newALSASource(cfg, logger)
	case BackendCoreAudio:
		return newDarwinSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"chunk_size", cfg.ChunkSize,
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendALSA:
		return newALSASink(cfg, logger)
	case BackendCoreAudio:
		return newDarwinSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for the current platform.
func detectBestBackend() Backend {
	switch runtime.GOOS {
	case "linux":
		return BackendALSA
	case "darwin":
		return BackendCoreAudio
	default:
		return BackendMock
	}
}

// AvailableBackends returns the list of backends available on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}

	switch runtime.GOOS {
	case "linux":
		backends = append(backends, BackendALSA)
	case "darwin":
		backends = append(backends, BackendCoreAudio)
	}

	return backends
}

// DeviceInfo describes an audio device known to a backend.
type DeviceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Backend string `json:"backend"`
}

// ListDevices enumerates audio devices for the given backend.
// For ALSA this reads the kernel's PCM device table; other backends
// report only their default device.
func ListDevices(backend Backend) ([]DeviceInfo, error) {
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	switch backend {
	case BackendMock:
		return []DeviceInfo{{ID: "mock", Name: "Mock Device", Backend: "mock"}}, nil
	case BackendALSA:
		return listALSADevices()
	case BackendCoreAudio:
		return []DeviceInfo{{ID: "", Name: "System Default", Backend: "coreaudio"}}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func listALSADevices() ([]DeviceInfo, error) {
	data, err := os.ReadFile("/proc/asound/pcm")
	if err != nil {
		// No sound cards, or not Linux. Fall back to the default device.
		return []DeviceInfo{{ID: "default", Name: "System Default", Backend: "alsa"}}, nil
	}

	devices := []DeviceInfo{{ID: "default", Name: "System Default", Backend: "alsa"}}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		// Format: "00-00: bcm2835 ALSA : bcm2835 ALSA : playback 7 : capture 1"
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		id = "hw:" + strings.Replace(id, "-", ",", 1)
		devices = append(devices, DeviceInfo{
			ID:      id,
			Name:    strings.TrimSpace(parts[1]),
			Backend: "alsa",
		})
	}
	return devices, nil
}
