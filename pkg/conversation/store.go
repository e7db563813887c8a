package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transcript is one persisted conversation session.
type Transcript struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Store persists transcripts as one JSON file per session.
// Writes are atomic (temp file + rename) so a crash mid-turn never
// leaves a corrupt transcript.
type Store struct {
	dir string

	mu      sync.Mutex
	current *Transcript
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Begin starts a new session transcript with a fresh ID.
func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.current = &Transcript{
		ID:        uuid.New().String(),
		StartedAt: now,
		UpdatedAt: now,
	}
	return s.write()
}

// SessionID returns the current session's ID, empty before Begin.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// AppendTurn records a completed turn and writes the transcript.
func (s *Store) AppendTurn(user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return fmt.Errorf("no session started")
	}

	now := time.Now()
	s.current.Messages = append(s.current.Messages,
		Message{Role: RoleUser, Content: user, Time: now},
		Message{Role: RoleAssistant, Content: assistant, Time: now},
	)
	s.current.UpdatedAt = now
	return s.write()
}

// write persists the current transcript atomically.
func (s *Store) write() error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	path := s.path(s.current.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a transcript by session ID. IDs are always UUIDs, so
// anything else is rejected before it can reach the filesystem.
func (s *Store) Load(id string) (*Transcript, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &t, nil
}

// List returns all stored session IDs, newest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript directory: %w", err)
	}

	type entry struct {
		id  string
		mod time.Time
	}
	var found []entry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, entry{
			id:  strings.TrimSuffix(name, ".json"),
			mod: info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].mod.After(found[j].mod)
	})

	ids := make([]string, len(found))
	for i, e := range found {
		ids[i] = e.id
	}
	return ids, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
