package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/benchidera/speak-to-llm/pkg/audio"
	"github.com/benchidera/speak-to-llm/pkg/llm"
	"github.com/benchidera/speak-to-llm/pkg/stt"
)

// fakeCapturer returns a canned buffer per call.
type fakeCapturer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCapturer) Capture(ctx context.Context) (*audio.Buffer, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	buf := audio.NewBuffer(16000, 1)
	buf.AppendSamples(make([]int16, 1600))
	return buf, nil
}

// fakeTranscriber returns scripted transcripts in order.
type fakeTranscriber struct {
	mu      sync.Mutex
	scripts []string
	index   int
	err     error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, buf *audio.Buffer) (*stt.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.scripts) {
		return &stt.Result{Text: "goodbye"}, nil
	}
	text := f.scripts[f.index]
	f.index++
	return &stt.Result{Text: text}, nil
}

// fakeGenerator echoes a fixed reply and records what it was sent.
type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	seen  [][]llm.Message
}

func (f *fakeGenerator) Generate(ctx context.Context, history []llm.Message) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, history)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeVoice records spoken text.
type fakeVoice struct {
	mu     sync.Mutex
	spoken []string
	err    error
}

func (f *fakeVoice) Speak(ctx context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeVoice) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func newTestOrchestrator(transcriber *fakeTranscriber, generator *fakeGenerator, voice *fakeVoice) *Orchestrator {
	return NewOrchestrator(&fakeCapturer{}, transcriber, generator, voice)
}

func TestProcessText_AppendsUserThenAssistant(t *testing.T) {
	gen := &fakeGenerator{reply: "Hi there"}
	orch := newTestOrchestrator(&fakeTranscriber{}, gen, &fakeVoice{})

	reply, err := orch.ProcessText(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if reply != "Hi there" {
		t.Errorf("reply = %q, want %q", reply, "Hi there")
	}

	history := orch.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "Hello" {
		t.Errorf("first message = %+v, want user Hello", history[0])
	}
	if history[1].Role != RoleAssistant || history[1].Content != "Hi there" {
		t.Errorf("second message = %+v, want assistant Hi there", history[1])
	}
	if orch.Turns() != 1 {
		t.Errorf("turns = %d, want 1", orch.Turns())
	}
}

func TestProcessText_GeneratorSeesPendingMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "first reply"}
	orch := newTestOrchestrator(&fakeTranscriber{}, gen, &fakeVoice{})

	if _, err := orch.ProcessText(context.Background(), "first"); err != nil {
		t.Fatalf("ProcessText: %v", err)
	}
	if _, err := orch.ProcessText(context.Background(), "second"); err != nil {
		t.Fatalf("ProcessText: %v", err)
	}

	// Second request carries the first full turn plus the new message.
	sent := gen.seen[1]
	if len(sent) != 3 {
		t.Fatalf("generator saw %d messages, want 3", len(sent))
	}
	if sent[2].Role != llm.RoleUser || sent[2].Content != "second" {
		t.Errorf("pending message = %+v", sent[2])
	}
}

func TestProcessText_GenerationFailureLeavesHistoryUnchanged(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	orch := newTestOrchestrator(&fakeTranscriber{}, gen, &fakeVoice{})

	if _, err := orch.ProcessText(context.Background(), "Hello"); err == nil {
		t.Fatal("expected error")
	}
	if n := len(orch.History()); n != 0 {
		t.Errorf("history length = %d, want 0 after failed turn", n)
	}
	if orch.Turns() != 0 {
		t.Errorf("turns = %d, want 0", orch.Turns())
	}
}

func TestIsExitPhrase(t *testing.T) {
	orch := newTestOrchestrator(&fakeTranscriber{}, &fakeGenerator{}, &fakeVoice{})

	for _, text := range []string{"goodbye", "GOODBYE", "Goodbye now", "please exit", "Quit", "stop talking"} {
		if !orch.IsExitPhrase(text) {
			t.Errorf("expected %q to be an exit phrase", text)
		}
	}
	for _, text := range []string{"hello", "tell me a story", ""} {
		if orch.IsExitPhrase(text) {
			t.Errorf("did not expect %q to be an exit phrase", text)
		}
	}
}

func TestRun_ExitPhraseEndsSession(t *testing.T) {
	transcriber := &fakeTranscriber{scripts: []string{"Hello", "goodbye"}}
	gen := &fakeGenerator{reply: "Hi there"}
	voice := &fakeVoice{}

	orch := newTestOrchestrator(transcriber, gen, voice)

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	history := orch.History()
	// One full turn plus the final exit utterance.
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Content != "Hello" || history[1].Content != "Hi there" {
		t.Errorf("unexpected turn: %+v", history[:2])
	}
	if history[2].Role != RoleUser || history[2].Content != "goodbye" {
		t.Errorf("final message = %+v, want user goodbye", history[2])
	}

	said := voice.said()
	if len(said) != 3 {
		t.Fatalf("spoke %d utterances, want greeting + reply + farewell", len(said))
	}
	if said[0] != defaultGreeting || said[1] != "Hi there" || said[2] != defaultFarewell {
		t.Errorf("spoken sequence = %v", said)
	}

	if orch.State() != StateIdle {
		t.Errorf("state = %v, want idle after Run", orch.State())
	}
}

func TestRun_SynthesisFailureLeavesHistoryUnchanged(t *testing.T) {
	transcriber := &fakeTranscriber{scripts: []string{"Hello", "goodbye"}}
	gen := &fakeGenerator{reply: "Hi there"}
	voice := &fakeVoice{err: errors.New("speaker broken")}

	orch := newTestOrchestrator(transcriber, gen, voice)

	// The broken voice affects every utterance but never aborts Run.
	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	history := orch.History()
	// The Hello turn failed at synthesis, so only the exit utterance
	// lands in history.
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Content != "goodbye" {
		t.Errorf("message = %+v", history[0])
	}
	if orch.Turns() != 0 {
		t.Errorf("turns = %d, want 0", orch.Turns())
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	voice := &fakeVoice{}
	orch := newTestOrchestrator(&fakeTranscriber{}, &fakeGenerator{reply: "x"}, voice)

	err := orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Farewell is best-effort on a fresh context.
	said := voice.said()
	if len(said) == 0 || said[len(said)-1] != defaultFarewell {
		t.Errorf("expected farewell, spoke %v", said)
	}
}

func TestRun_TurnListener(t *testing.T) {
	transcriber := &fakeTranscriber{scripts: []string{"Hello", "goodbye"}}

	var events []TurnEvent
	orch := NewOrchestrator(
		&fakeCapturer{},
		transcriber,
		&fakeGenerator{reply: "Hi there"},
		&fakeVoice{},
		WithTurnListener(func(e TurnEvent) { events = append(events, e) }),
	)

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Turn != 1 || events[0].User != "Hello" || events[0].Assistant != "Hi there" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	h := NewHistory()
	h.AppendTurn("one", "two")

	snap := h.Snapshot()
	snap[0].Content = "mutated"

	if h.Snapshot()[0].Content != "one" {
		t.Error("snapshot mutation leaked into history")
	}
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		StateIdle:         "idle",
		StateListening:    "listening",
		StateTranscribing: "transcribing",
		StateGenerating:   "generating",
		StateSpeaking:     "speaking",
		State(99):         "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
