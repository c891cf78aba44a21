// Package web serves the hologram websocket, the synthesized audio files and
// a JSON status endpoint.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-hologram/pkg/hub"
)

// AudioFiles resolves a served audio file name to a path. *audiofile.Store
// satisfies it.
type AudioFiles interface {
	Path(name string) (string, error)
}

// VoiceStatus summarizes the voice loop.
type VoiceStatus struct {
	Active   bool   `json:"active"`
	State    string `json:"state"`
	Turns    int    `json:"turns"`
	Replies  int    `json:"replies"`
	Refusals int    `json:"refusals"`
	Failures int    `json:"failures"`
	LastMs   int64  `json:"last_turn_ms"`
}

// VisionStatus summarizes the camera loop.
type VisionStatus struct {
	Active   bool   `json:"active"`
	Strategy string `json:"strategy"`
	Frames   int    `json:"frames"`
	Motions  int    `json:"motions"`
	Waves    int    `json:"waves"`
}

// Status is the body of GET /api/status.
type Status struct {
	Mode    string       `json:"mode"`
	Clients int          `json:"clients"`
	Tasks   []string     `json:"tasks"`
	Voice   VoiceStatus  `json:"voice"`
	Vision  VisionStatus `json:"vision"`
	Uptime  string       `json:"uptime"`
}

// Options configures a Server.
type Options struct {
	Hub    *hub.Hub
	Audio  AudioFiles
	Status func() Status
	Logger *slog.Logger
}

// Server is the HTTP and websocket front end.
type Server struct {
	app    *fiber.App
	hub    *hub.Hub
	audio  AudioFiles
	status func() Status
	logger *slog.Logger
}

// NewServer builds the routes. Hub and Audio are required.
func NewServer(opts Options) (*Server, error) {
	if opts.Hub == nil || opts.Audio == nil {
		return nil, errors.New("web: hub and audio store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:    opts.Hub,
		audio:  opts.Audio,
		status: opts.Status,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "hologram",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
	})

	// Clients load audio from another origin
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/audio/:name", s.handleAudio)
	app.Get("/api/status", s.handleStatus)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s, nil
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for handlers until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}
