package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/parley-ai/parley/pkg/hub"
)

// handleStatus returns the current session and pipeline status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.status()
	st.Clients = s.eventsHub.ClientCount()
	return c.JSON(st)
}

// handleConversation returns the ordered conversation snapshot.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	return c.JSON(s.model.Items())
}

// handleEventsWS streams session events to one websocket client. The
// hub client pumps own the connection from here on.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.eventsHub, c)
	client.Run() // Blocks until connection closes
}
