package conversation

import (
	"sync"
	"time"

	"github.com/benchidera/speak-to-llm/pkg/llm"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Messages are immutable once
// appended to a History.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// History is an append-only, ordered record of the conversation.
// It is safe for concurrent use; the orchestrator appends, readers
// take snapshots.
type History struct {
	mu       sync.RWMutex
	messages []Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// AppendTurn records a completed turn: the user's message followed by
// the assistant's reply, appended together so a half-finished turn can
// never be observed.
func (h *History) AppendTurn(user, assistant string) {
	now := time.Now()
	h.mu.Lock()
	h.messages = append(h.messages,
		Message{Role: RoleUser, Content: user, Time: now},
		Message{Role: RoleAssistant, Content: assistant, Time: now},
	)
	h.mu.Unlock()
}

// AppendUser records a user message without a reply.
// Used for the final exit utterance.
func (h *History) AppendUser(content string) {
	h.mu.Lock()
	h.messages = append(h.messages, Message{
		Role:    RoleUser,
		Content: content,
		Time:    time.Now(),
	})
	h.mu.Unlock()
}

// Snapshot returns a copy of the history.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Last returns the most recent message, or false when empty.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// LLMMessages converts the history to the chat message format the
// language model expects.
func (h *History) LLMMessages() []llm.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]llm.Message, len(h.messages))
	for i, m := range h.messages {
		out[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return out
}
