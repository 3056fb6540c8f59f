// Package web provides a small live dashboard over the running
// conversation: REST endpoints for the transcript and session status,
// plus a websocket feed of every session event.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/parley-ai/parley/internal/log"
	"github.com/parley-ai/parley/pkg/audio"
	"github.com/parley-ai/parley/pkg/conversation"
	"github.com/parley-ai/parley/pkg/hub"
	"github.com/parley-ai/parley/pkg/realtime"
)

// Status is the dashboard snapshot returned by GET /api/status.
type Status struct {
	Session  string              `json:"session"`
	Capture  audio.CaptureStats  `json:"capture"`
	Playback audio.PlaybackStats `json:"playback"`
	Clients  int                 `json:"ws_clients"`
}

// StatusFunc produces the current Status minus the client count, which
// the server fills in itself.
type StatusFunc func() Status

// Server is the dashboard HTTP server.
type Server struct {
	app    *fiber.App
	port   string
	model  *conversation.Model
	status StatusFunc

	// Hub for websocket event broadcast
	eventsHub *hub.Hub
}

// NewServer creates the dashboard server over the given model.
func NewServer(port string, model *conversation.Model, status StatusFunc) *Server {
	s := &Server{
		port:      port,
		model:     model,
		status:    status,
		eventsHub: hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Parley Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleConversation)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the server. Blocks until Shutdown.
func (s *Server) Start() error {
	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	go s.eventsHub.Run()
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server error", "error", err)
		}
	}()
}

// PublishEvent forwards one session event to all websocket clients.
// Register with Router.OnEvent.
func (s *Server) PublishEvent(ev realtime.Event) {
	if err := s.eventsHub.BroadcastJSON(ev); err != nil {
		log.Warn("dashboard event encode failed", "error", err)
	}
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
