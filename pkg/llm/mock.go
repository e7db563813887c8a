package llm

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	mu    sync.Mutex
	calls []MockCall

	// ChatFunc is called by Chat if set.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// StreamFunc is called by Stream if set.
	StreamFunc func(ctx context.Context, req *ChatRequest) (Stream, error)
	// HealthFunc is called by Health if set.
	HealthFunc func(ctx context.Context) error
	// CloseFunc is called by Close if set.
	CloseFunc func() error
}

// MockCall records a call to the mock.
type MockCall struct {
	Method   string
	Messages []Message
	Time     time.Time
}

// NewMock creates a mock that echoes a canned response.
func NewMock() *Mock {
	return NewMockWithResponse("mock response")
}

// NewMockWithResponse creates a mock that always returns the given content.
func NewMockWithResponse(content string) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage(content),
				FinishReason: "stop",
				Model:        "mock",
			}, nil
		},
	}
}

// NewMockWithError creates a mock that always fails.
func NewMockWithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		StreamFunc: func(ctx context.Context, req *ChatRequest) (Stream, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Chat implements Provider.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.recordCall("Chat", req.Messages)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &ChatResponse{
		Message:      NewAssistantMessage("mock response"),
		FinishReason: "stop",
		Model:        "mock",
	}, nil
}

// Stream implements Provider.
func (m *Mock) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	m.recordCall("Stream", req.Messages)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return &mockStream{chunks: []StreamChunk{
		{Delta: "mock "},
		{Delta: "response"},
		{Done: true, FinishReason: "stop"},
	}}, nil
}

// Health implements Provider.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", nil)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	m.recordCall("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) recordCall(method string, messages []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:   method,
		Messages: messages,
		Time:     time.Now(),
	})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of calls for a method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.calls {
		if call.Method == method {
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

// mockStream replays canned chunks.
type mockStream struct {
	chunks []StreamChunk
	index  int
}

func (s *mockStream) Recv() (*StreamChunk, error) {
	if s.index >= len(s.chunks) {
		return &StreamChunk{Done: true}, nil
	}
	chunk := s.chunks[s.index]
	s.index++
	return &chunk, nil
}

func (s *mockStream) Close() error { return nil }

// Ensure Mock implements Provider.
var _ Provider = (*Mock)(nil)
