// Package status serves the monitor's state over HTTP: the latest usage
// frame, the watchdog table and a health summary.
package status

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Guliveer/vitalis/cpumon/internal/models"
	"github.com/Guliveer/vitalis/cpumon/internal/render"
	"github.com/Guliveer/vitalis/cpumon/internal/watchdog"
)

// Frames provides the latest rendered frame.
type Frames interface {
	Latest() (*render.Frame, bool)
	Frames() uint64
}

// Threads provides the watchdog table.
type Threads interface {
	Threads() []watchdog.Thread
	State() watchdog.State
}

// Options configures the status server. Threads and Stats may be nil.
type Options struct {
	Version string
	Host    models.HostInfo
	Frames  Frames
	Threads Threads
	Stats   func() models.PipelineStats
}

// Server represents the status API server.
type Server struct {
	app     *fiber.App
	opts    Options
	started time.Time
}

// NewServer creates a new status server.
func NewServer(opts Options) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		AppName:               "cpumon " + opts.Version,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
	}))

	s := &Server{app: app, opts: opts, started: time.Now()}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	api.Get("/usage", s.getUsage)
	api.Get("/threads", s.getThreads)
	api.Get("/health", s.healthCheck)
}

// Start starts the API server. It blocks until Shutdown is called.
func (s *Server) Start(address string) error {
	return s.app.Listen(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
