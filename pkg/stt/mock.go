package stt

import (
	"context"
	"sync"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audio"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns a canned transcript.
	TranscribeFunc func(ctx context.Context, utterance *audio.Buffer) (*Result, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method       string
	AudioSeconds float64
	Time         time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
			return &Result{
				Text:         "mock transcript",
				Provider:     "mock",
				AudioSeconds: utterance.Duration().Seconds(),
				LatencyMs:    1,
			}, nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// NewMockWithText creates a mock that always returns the given transcript.
func NewMockWithText(text string) *Mock {
	m := NewMock()
	m.TranscribeFunc = func(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
		return &Result{Text: text, Provider: "mock"}, nil
	}
	return m
}

// WithError makes the mock fail every Transcribe call with err.
func (m *Mock) WithError(err error) *Mock {
	m.TranscribeFunc = func(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
		return nil, err
	}
	return m
}

// Transcribe calls TranscribeFunc and records the call.
func (m *Mock) Transcribe(ctx context.Context, utterance *audio.Buffer) (*Result, error) {
	seconds := 0.0
	if utterance != nil {
		seconds = utterance.Duration().Seconds()
	}
	m.recordCall("Transcribe", seconds)

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, utterance)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", 0)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:       method,
		AudioSeconds: seconds,
		Time:         time.Now(),
	})
}

// Calls returns a copy of recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of calls to the given method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Ensure Mock implements Provider.
var _ Provider = (*Mock)(nil)
