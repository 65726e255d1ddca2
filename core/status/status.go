// Package status exposes a small introspection HTTP server for the running
// bot: a health probe and a JSON snapshot of the in-memory state.
package status

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Config holds configuration for the introspection server.
type Config struct {
	// Enabled toggles the server; it is off by default.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8089"`
}

// Source supplies the state snapshot served under /state.
type Source interface {
	State() any
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func() any

func (f SourceFunc) State() any { return f() }

// Server is the introspection HTTP server.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *zap.Logger
}

// New creates the server and registers its routes.
func New(cfg Config, logger *zap.Logger, source Source) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We will log our own startup message
	})

	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil {
			logger.Error("Request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(source.State())
	})

	return &Server{app: app, cfg: cfg, logger: logger}
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("Starting status server", zap.String("port", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
