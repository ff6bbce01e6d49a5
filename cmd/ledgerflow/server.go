package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/ledgerflow/pkg/registry"
	"github.com/dukex/ledgerflow/pkg/services"
	"github.com/dukex/ledgerflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type Server struct {
	logger   *slog.Logger
	workflow *services.Workflow
	registry *registry.Registry
	changes  web.ChangePublisher
	triggers web.TriggerLister
	activity web.ActivityReader
	validate *validator.Validate
	app      *fiber.App
}

func NewServer(
	logger *slog.Logger,
	workflow *services.Workflow,
	registry *registry.Registry,
	changes web.ChangePublisher,
	triggers web.TriggerLister,
	activity web.ActivityReader,
) *Server {
	server := &Server{
		logger:   logger.With("module", "server"),
		workflow: workflow,
		registry: registry,
		changes:  changes,
		triggers: triggers,
		activity: activity,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	server.app = server.App()

	return server
}

func (s *Server) App() *fiber.App {
	handlers := web.NewAPIHandlers(s.workflow, s.validate, s.registry)

	if s.changes != nil {
		handlers.WithChangePublisher(s.changes)
	}

	if s.triggers != nil {
		handlers.WithTriggers(s.triggers)
	}

	if s.activity != nil {
		handlers.WithActivity(s.activity)
	}

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := s.workflow.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Ledgerflow API")
	})

	handlers.Register(app)

	return app
}

// Start serves the API until Shutdown is called.
func (s *Server) Start(port int) error {
	s.logger.Info("Starting API server", "port", port)

	return s.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
