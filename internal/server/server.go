// Package server exposes the compiler over HTTP with fiber.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/service"
)

// Config holds fiber settings.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

// Server is the HTTP adapter around a service.Service.
type Server struct {
	app    *fiber.App
	svc    *service.Service
	vocab  nlu.Vocabulary
	logger *slog.Logger
}

// New builds the fiber app and registers every route.
func New(svc *service.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "semlayer",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	s := &Server{
		app:    app,
		svc:    svc,
		vocab:  nlu.NewVocabulary(svc.Compiler.Model()),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	if s.svc.Metrics != nil {
		s.app.Get("/metrics", s.svc.Metrics.Handler())
	}

	api := s.app.Group("/api/v1")
	api.Post("/compile", s.compile)
	api.Post("/ask", s.ask)
	api.Get("/vocabulary", s.vocabulary)
	api.Get("/metrics/:id", s.metric)
	api.Get("/segments/:id", s.segment)
	api.Get("/audit", s.auditList)
	api.Get("/audit/usage", s.auditUsage)
	api.Get("/audit/:id", s.auditRecord)
}

// App exposes the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"took", time.Since(start),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return err
	}
}
