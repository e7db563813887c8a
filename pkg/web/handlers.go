package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/benchidera/speak-to-llm/pkg/hub"
)

// handleStatus reports the orchestrator state and session metadata.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := Status{
		State:     s.orch.State().String(),
		Turns:     s.orch.Turns(),
		Providers: s.providers,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if s.store != nil {
		status.SessionID = s.store.SessionID()
	}
	return c.JSON(status)
}

// handleHistory returns a snapshot of the conversation so far.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(s.orch.History())
}

// handleListSessions returns stored session IDs, newest first.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "transcript store not enabled",
		})
	}
	ids, err := s.store.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"sessions": ids})
}

// handleGetSession returns one persisted transcript.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "transcript store not enabled",
		})
	}
	transcript, err := s.store.Load(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}
	return c.JSON(transcript)
}

// handleTranscriptWS streams completed turns to a dashboard client.
func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	client := hub.NewClient(s.transcriptHub, c)
	client.Run()
}
