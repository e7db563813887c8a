//go:build darwin

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// DarwinSource captures audio on macOS by streaming raw PCM16 from the
// sox "rec" tool. Used for development on Mac.
type DarwinSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
	cmd      *exec.Cmd

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newDarwinSource creates a new CoreAudio-backed source.
func newDarwinSource(cfg Config, logger *slog.Logger) (*DarwinSource, error) {
	if _, err := exec.LookPath("rec"); err != nil {
		return nil, fmt.Errorf("rec not found (brew install sox): %w", err)
	}

	return &DarwinSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins audio capture.
func (s *DarwinSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cmd := exec.Command("rec",
		"-q",
		"-t", "raw",
		"-b", "16",
		"-e", "signed-integer",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("rec stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start rec: %w", err)
	}

	s.cmd = cmd
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 10)

	go s.captureLoop(ctx, stdout, s.streamCh, s.stopCh)

	s.logger.Info("CoreAudio source started", "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *DarwinSource) captureLoop(ctx context.Context, r io.Reader, out chan AudioChunk, stop chan struct{}) {
	defer close(out)

	buf := make([]byte, s.cfg.ChunkBytes())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.logger.Error("CoreAudio capture read failed", "error", err)
			}
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)

		select {
		case out <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
			s.overruns.Add(1)
		}
	}
}

// Stop halts audio capture.
func (s *DarwinSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.stopCh)
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
		s.cmd = nil
	}

	s.logger.Info("CoreAudio source stopped")
	return nil
}

// Read reads the next audio chunk.
func (s *DarwinSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *DarwinSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *DarwinSource) Config() Config { return s.cfg }

// Name returns "coreaudio".
func (s *DarwinSource) Name() string { return "coreaudio" }

// Close releases resources.
func (s *DarwinSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *DarwinSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "coreaudio",
	}
}

var _ SourceWithStats = (*DarwinSource)(nil)

// DarwinSink plays audio on macOS by streaming raw PCM16 to sox "play".
type DarwinSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// newDarwinSink creates a new CoreAudio-backed sink.
func newDarwinSink(cfg Config, logger *slog.Logger) (*DarwinSink, error) {
	if _, err := exec.LookPath("play"); err != nil {
		return nil, fmt.Errorf("play not found (brew install sox): %w", err)
	}

	return &DarwinSink{cfg: cfg, logger: logger}, nil
}

// Start begins audio playback.
func (s *DarwinSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cmd := exec.Command("play",
		"-q",
		"-t", "raw",
		"-b", "16",
		"-e", "signed-integer",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("play stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start play: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.running = true

	s.logger.Info("CoreAudio sink started")
	return nil
}

// Stop halts audio playback.
func (s *DarwinSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *DarwinSink) stopLocked() error {
	if !s.running {
		return nil
	}

	s.running = false
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil {
		_ = s.cmd.Wait()
		s.cmd = nil
	}

	s.logger.Info("CoreAudio sink stopped")
	return nil
}

// Write sends an audio chunk to the player.
func (s *DarwinSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running || s.stdin == nil {
		return io.ErrClosedPipe
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("write to play: %w", err)
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush waits for buffered audio to drain.
func (s *DarwinSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}

	done := make(chan error, 1)
	cmd := s.cmd
	s.cmd = nil
	s.running = false
	go func() {
		if cmd != nil {
			done <- cmd.Wait()
			return
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Clear discards buffered audio by killing the current player process.
// The sink must be restarted before the next Write.
func (s *DarwinSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.stopLocked()
}

// Config returns the audio configuration.
func (s *DarwinSink) Config() Config { return s.cfg }

// Name returns "coreaudio".
func (s *DarwinSink) Name() string { return "coreaudio" }

// Close releases resources.
func (s *DarwinSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns sink statistics.
func (s *DarwinSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        "coreaudio",
	}
}

var _ SinkWithStats = (*DarwinSink)(nil)
