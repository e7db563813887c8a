package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultContextWindow is the number of recent messages sent with each
// request to high-context providers.
const DefaultContextWindow = 10

// ConstrainedContextWindow is the window for local or small-context
// providers such as ollama.
const ConstrainedContextWindow = 5

// DefaultSystemPrompt shapes replies for spoken delivery.
const DefaultSystemPrompt = "You are a helpful voice assistant. " +
	"Keep your answers short and conversational, suitable for being read aloud."

// Generator produces assistant replies from conversation history.
// It prepends a system prompt and limits the history sent to the
// provider to the most recent messages.
type Generator struct {
	provider      Provider
	logger        *slog.Logger
	systemPrompt  string
	contextWindow int
	temperature   float64
	maxTokens     int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) GeneratorOption {
	return func(g *Generator) {
		if prompt != "" {
			g.systemPrompt = prompt
		}
	}
}

// WithContextWindow sets how many recent messages are sent per request.
func WithContextWindow(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.contextWindow = n
		}
	}
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger.With("component", "llm.generator")
	}
}

// NewGenerator creates a generator backed by the given provider.
func NewGenerator(provider Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider:      provider,
		logger:        slog.Default().With("component", "llm.generator"),
		systemPrompt:  DefaultSystemPrompt,
		contextWindow: DefaultContextWindow,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetTemperature sets the sampling temperature, clamped to [0, 2].
func (g *Generator) SetTemperature(t float64) {
	if t < 0 {
		t = 0
	}
	if t > 2 {
		t = 2
	}
	g.temperature = t
}

// SetMaxTokens sets the reply length limit, clamped to at least 1.
func (g *Generator) SetMaxTokens(n int) {
	if n < 1 {
		n = 1
	}
	g.maxTokens = n
}

// buildRequest assembles the bounded prompt: the system prompt plus
// the most recent contextWindow messages. History is not modified.
func (g *Generator) buildRequest(history []Message) *ChatRequest {
	recent := history
	if len(recent) > g.contextWindow {
		recent = recent[len(recent)-g.contextWindow:]
	}

	messages := make([]Message, 0, len(recent)+1)
	messages = append(messages, NewSystemMessage(g.systemPrompt))
	messages = append(messages, recent...)

	return &ChatRequest{
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}
}

// Generate produces the next assistant reply for the given history.
// Only the most recent contextWindow messages are sent, after the
// system prompt.
func (g *Generator) Generate(ctx context.Context, history []Message) (string, error) {
	req := g.buildRequest(history)

	resp, err := g.provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("generated reply",
		"history_len", len(history),
		"sent_messages", len(req.Messages),
		"reply_len", len(reply),
	)
	return reply, nil
}

// GenerateStream produces the reply as a stream of fragments, built
// from the same bounded prompt as Generate. Closing the stream before
// it is done releases the provider's response resources.
func (g *Generator) GenerateStream(ctx context.Context, history []Message) (Stream, error) {
	stream, err := g.provider.Stream(ctx, g.buildRequest(history))
	if err != nil {
		return nil, fmt.Errorf("generate stream: %w", err)
	}
	return stream, nil
}

// Summarize produces a short summary of a conversation transcript.
func (g *Generator) Summarize(ctx context.Context, history []Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}

	resp, err := g.provider.Chat(ctx, &ChatRequest{
		Messages: []Message{
			NewSystemMessage("Summarize the following conversation in one or two sentences."),
			NewUserMessage(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Message.Content), nil
}
