package api

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/tdpctl/internal/controller"
	"codeberg.org/mutker/tdpctl/internal/display"
	"codeberg.org/mutker/tdpctl/internal/history"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"codeberg.org/mutker/tdpctl/internal/profile"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const requestTimeout = 10 * time.Second

// Controller is the part of the TDP controller the API drives.
type Controller interface {
	State() controller.State
	SetOverride(ctx context.Context, name string) error
	SetOverrideWatts(ctx context.Context, watts float64) error
	ClearOverride(ctx context.Context) error
}

// Store is the catalog source. *profile.Store implements it.
type Store interface {
	Catalog() *profile.Catalog
	LoadFile(path string) (*profile.Catalog, error)
}

// Latest reports the most recent display values. *display.Hub implements it.
type Latest interface {
	Latest() display.Snapshot
}

type Options struct {
	Controller  Controller
	Store       Store
	CatalogPath string
	Display     Latest
	// History and Metrics are optional.
	History history.Repository
	Metrics http.Handler
	Logger  logger.Logger
}

// Server is the HTTP surface used by the tray and settings front ends.
type Server struct {
	app  *fiber.App
	opts Options
	log  logger.Logger
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           requestTimeout,
		WriteTimeout:          requestTimeout,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		AppName:               "tdpctl",
	})

	s := &Server{app: app, opts: opts, log: opts.Logger}

	app.Use(recover.New())
	app.Use(s.logRequests)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	api.Get("/state", s.getState)
	api.Get("/telemetry", s.getTelemetry)
	api.Get("/catalog", s.getCatalog)
	api.Get("/history", s.getHistory)

	api.Post("/override", s.setOverride)
	api.Delete("/override", s.clearOverride)
	api.Post("/reload", s.reload)

	api.Get("/health", s.healthCheck)

	if s.opts.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.opts.Metrics))
	}
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on address until Shutdown.
func (s *Server) Start(address string) error {
	s.log.Info().Str("address", address).Msg("API listening")
	return s.app.Listen(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("API request")

	return err
}
