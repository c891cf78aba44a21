package web

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var audioTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
}

// handleAudio serves one synthesized reply. Unknown, malformed and expired
// names are all 404.
func (s *Server) handleAudio(c *fiber.Ctx) error {
	name := c.Params("name")
	path, err := s.audio.Path(name)
	if err != nil {
		s.logger.Debug("rejected audio request", "name", name, "error", err)
		return fiber.NewError(fiber.StatusNotFound, "audio not found")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fiber.NewError(fiber.StatusNotFound, "audio not found")
	}
	if err != nil {
		s.logger.Error("failed to read audio", "name", name, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "audio unavailable")
	}

	c.Set(fiber.HeaderContentType, audioTypes[filepath.Ext(path)])
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(data)
}

// handleStatus returns the orchestrator status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.JSON(Status{Clients: s.hub.ClientCount()})
	}
	return c.JSON(s.status())
}

// handleWS hands the connection to the hub for its lifetime.
func (s *Server) handleWS(c *websocket.Conn) {
	s.logger.Debug("websocket opened", "remote", c.RemoteAddr().String())
	s.hub.Serve(c)
}
