// Package web serves a read-only dashboard over the conversation:
// REST endpoints for status and history plus a websocket stream of
// completed turns.
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/benchidera/speak-to-llm/pkg/conversation"
	"github.com/benchidera/speak-to-llm/pkg/hub"
)

// Providers names the active provider per pipeline stage.
type Providers struct {
	STT string `json:"stt"`
	LLM string `json:"llm"`
	TTS string `json:"tts"`
}

// Status is the dashboard's view of the session.
type Status struct {
	State     string    `json:"state"`
	Turns     int       `json:"turns"`
	SessionID string    `json:"session_id,omitempty"`
	Providers Providers `json:"providers"`
	Uptime    string    `json:"uptime"`
}

// Server exposes the conversation over HTTP.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	orch      *conversation.Orchestrator
	store     *conversation.Store
	providers Providers
	started   time.Time

	transcriptHub *hub.Hub
	hubOnce       sync.Once
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStore exposes persisted transcripts under /api/sessions.
func WithStore(store *conversation.Store) ServerOption {
	return func(s *Server) { s.store = store }
}

// WithProviders sets the provider names reported by /api/status.
func WithProviders(p Providers) ServerOption {
	return func(s *Server) { s.providers = p }
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger.With("component", "web")
	}
}

// NewServer builds the dashboard server around an orchestrator.
func NewServer(addr string, orch *conversation.Orchestrator, opts ...ServerOption) *Server {
	s := &Server{
		addr:    addr,
		orch:    orch,
		logger:  slog.Default().With("component", "web"),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transcriptHub = hub.New("transcript", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "speak-to-llm",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))

	s.app = app
	return s
}

// Start runs the server. It blocks until Shutdown.
func (s *Server) Start() error {
	s.hubOnce.Do(func() { go s.transcriptHub.Run() })
	s.logger.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("server stopped", "error", err)
		}
	}()
}

// PublishTurn broadcasts a completed turn to websocket clients. Wire
// it as the orchestrator's turn listener.
func (s *Server) PublishTurn(event conversation.TurnEvent) {
	if err := s.transcriptHub.BroadcastJSON(event); err != nil {
		s.logger.Warn("failed to broadcast turn", "error", err)
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
