// Package conversation orchestrates the full voice-assistant loop:
// capture speech, transcribe it, generate a reply, and speak it back.
//
// The orchestrator owns the conversation history and the turn-taking
// state machine. Stage failures abort the current turn, leave the
// history untouched, and return the loop to listening; only context
// cancellation or an exit phrase ends the session.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/audio"
	"github.com/benchidera/speak-to-llm/pkg/llm"
	"github.com/benchidera/speak-to-llm/pkg/stt"
)

// State is the orchestrator's position in the turn cycle.
type State int

const (
	StateIdle State = iota
	StateListening
	StateTranscribing
	StateGenerating
	StateSpeaking
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateGenerating:
		return "generating"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// DefaultExitPhrases end the session when heard in a user utterance.
var DefaultExitPhrases = []string{"goodbye", "exit", "quit", "stop"}

const (
	defaultGreeting = "Hello! I'm listening."
	defaultFarewell = "Goodbye!"

	// farewellTimeout bounds the goodbye utterance after cancellation.
	farewellTimeout = 5 * time.Second
)

// Capturer records one utterance from the microphone.
type Capturer interface {
	Capture(ctx context.Context) (*audio.Buffer, error)
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, buf *audio.Buffer) (*stt.Result, error)
}

// Generator produces the assistant's reply from the history.
type Generator interface {
	Generate(ctx context.Context, history []llm.Message) (string, error)
}

// Voice speaks a reply out loud.
type Voice interface {
	Speak(ctx context.Context, text string) error
}

// TurnEvent describes one completed turn, for transcript listeners.
type TurnEvent struct {
	Turn      int       `json:"turn"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Time      time.Time `json:"time"`
}

// Orchestrator runs the conversation loop.
type Orchestrator struct {
	capturer    Capturer
	transcriber Transcriber
	generator   Generator
	voice       Voice

	history *History
	logger  *slog.Logger
	store   *Store

	greeting    string
	farewell    string
	exitPhrases []string
	onTurn      func(TurnEvent)

	mu    sync.RWMutex
	state State
	turns int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGreeting sets the opening utterance. Empty disables it.
func WithGreeting(text string) Option {
	return func(o *Orchestrator) { o.greeting = text }
}

// WithFarewell sets the closing utterance. Empty disables it.
func WithFarewell(text string) Option {
	return func(o *Orchestrator) { o.farewell = text }
}

// WithExitPhrases overrides the phrases that end the session.
func WithExitPhrases(phrases []string) Option {
	return func(o *Orchestrator) {
		if len(phrases) > 0 {
			o.exitPhrases = phrases
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With("component", "conversation")
	}
}

// WithStore enables transcript persistence.
func WithStore(store *Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithTurnListener registers a callback invoked after each completed
// turn. The callback runs on the orchestrator goroutine; keep it fast.
func WithTurnListener(fn func(TurnEvent)) Option {
	return func(o *Orchestrator) { o.onTurn = fn }
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(capturer Capturer, transcriber Transcriber, generator Generator, voice Voice, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		capturer:    capturer,
		transcriber: transcriber,
		generator:   generator,
		voice:       voice,
		history:     NewHistory(),
		logger:      slog.Default().With("component", "conversation"),
		greeting:    defaultGreeting,
		farewell:    defaultFarewell,
		exitPhrases: DefaultExitPhrases,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Turns returns the number of completed turns.
func (o *Orchestrator) Turns() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.turns
}

// History returns a snapshot of the conversation so far.
func (o *Orchestrator) History() []Message {
	return o.history.Snapshot()
}

// SetTurnListener replaces the turn callback. Call it before Run.
func (o *Orchestrator) SetTurnListener(fn func(TurnEvent)) {
	o.onTurn = fn
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes the conversation loop until an exit phrase is heard or
// the context is cancelled. Stage failures never escape; they abort
// the turn and the loop listens again.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.setState(StateIdle)

	if o.store != nil {
		if err := o.store.Begin(); err != nil {
			o.logger.Warn("transcript store unavailable", "error", err)
			o.store = nil
		}
	}

	if o.greeting != "" {
		o.say(ctx, o.greeting)
	}

	for {
		if err := ctx.Err(); err != nil {
			o.sayFarewell()
			return err
		}

		exit := o.turn(ctx)
		if exit {
			if o.farewell != "" {
				o.say(ctx, o.farewell)
			}
			o.logger.Info("session ended by exit phrase", "turns", o.Turns())
			return nil
		}
	}
}

// turn runs one full capture → transcribe → generate → speak cycle.
// It returns true when the user asked to end the session. Any stage
// failure logs, leaves the history unchanged, and returns false.
func (o *Orchestrator) turn(ctx context.Context) bool {
	o.setState(StateListening)
	buf, err := o.capturer.Capture(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrNoSpeech) || errors.Is(err, context.Canceled) {
			return false
		}
		o.logger.Warn("capture failed", "error", err)
		return false
	}

	o.setState(StateTranscribing)
	var result *stt.Result
	if err := o.await(ctx, func() error {
		var terr error
		result, terr = o.transcriber.Transcribe(ctx, buf)
		return terr
	}); err != nil {
		o.logger.Warn("transcription failed", "error", err)
		return false
	}

	userText := strings.TrimSpace(result.Text)
	if userText == "" {
		o.logger.Debug("no speech recognized")
		return false
	}
	o.logger.Info("heard", "text", userText)

	if o.IsExitPhrase(userText) {
		o.history.AppendUser(userText)
		return true
	}

	reply, err := o.respond(ctx, userText)
	if err != nil {
		return false
	}

	o.setState(StateSpeaking)
	if err := o.await(ctx, func() error {
		return o.voice.Speak(ctx, reply)
	}); err != nil {
		o.logger.Warn("synthesis failed", "error", err)
		return false
	}

	o.commitTurn(userText, reply)
	return false
}

// ProcessText runs one text-only turn: generate a reply for the given
// input and commit it to history. Used by the text and demo modes.
// Exit phrases are the caller's concern; check IsExitPhrase first.
func (o *Orchestrator) ProcessText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	reply, err := o.respond(ctx, text)
	if err != nil {
		return "", err
	}

	o.commitTurn(text, reply)
	return reply, nil
}

// respond generates the assistant reply for a user message.
// History is not modified; the pending user message rides along only
// in the request.
func (o *Orchestrator) respond(ctx context.Context, userText string) (string, error) {
	o.setState(StateGenerating)

	messages := append(o.history.LLMMessages(), llm.NewUserMessage(userText))

	var reply string
	err := o.await(ctx, func() error {
		var gerr error
		reply, gerr = o.generator.Generate(ctx, messages)
		return gerr
	})
	if err != nil {
		o.logger.Warn("generation failed", "error", err)
		return "", err
	}
	return reply, nil
}

// commitTurn appends the completed turn, persists it, and notifies
// listeners.
func (o *Orchestrator) commitTurn(user, assistant string) {
	o.history.AppendTurn(user, assistant)

	o.mu.Lock()
	o.turns++
	turn := o.turns
	o.mu.Unlock()

	event := TurnEvent{
		Turn:      turn,
		User:      user,
		Assistant: assistant,
		Time:      time.Now(),
	}

	if o.store != nil {
		if err := o.store.AppendTurn(user, assistant); err != nil {
			o.logger.Warn("failed to persist turn", "error", err)
		}
	}
	if o.onTurn != nil {
		o.onTurn(event)
	}

	o.logger.Info("turn complete", "turn", turn, "reply", assistant)
}

// IsExitPhrase reports whether the text asks to end the session.
// Matching is a case-insensitive substring check.
func (o *Orchestrator) IsExitPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range o.exitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// say speaks system utterances (greeting, farewell); failures are
// logged, never fatal.
func (o *Orchestrator) say(ctx context.Context, text string) {
	o.setState(StateSpeaking)
	if err := o.voice.Speak(ctx, text); err != nil {
		o.logger.Warn("utterance failed", "error", err)
	}
}

// sayFarewell speaks the goodbye after cancellation, on a short fresh
// context since the session context is already dead.
func (o *Orchestrator) sayFarewell() {
	if o.farewell == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), farewellTimeout)
	defer cancel()
	o.say(ctx, o.farewell)
}

// await runs fn on a worker goroutine so the loop keeps observing the
// context. fn receives the same context and is expected to unwind on
// its own after cancellation; await does not wait for it.
func (o *Orchestrator) await(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
