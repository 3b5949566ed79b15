// Package api exposes the pipeline store and runner over HTTP using fiber.
package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/runner"
)

// Log sink category for HTTP requests.
const CategoryHTTP = "http"

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store   pipeline.Store
	runner  *runner.Runner
	metrics *runner.Metrics
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records HTTP metrics in m and serves them on /metrics.
func WithMetrics(m *runner.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server.
func New(store pipeline.Store, r *runner.Runner, opts ...Option) *Server {
	s := &Server{
		store:  store,
		runner: r,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	// Handlers hand params straight to stores that may keep them.
	app := fiber.New(fiber.Config{Immutable: true})

	app.Use(cors.New())
	app.Use(s.requestLogger)

	app.Get("/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})
	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/api/schema", s.createSchema)
	app.Delete("/api/schema", s.dropSchema)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Get("/api/nodes", s.listNodes)
	app.Post("/api/nodes", s.createNode)
	app.Get("/api/nodes/:id", s.getNode)
	app.Put("/api/nodes/:id", s.updateNode)
	app.Delete("/api/nodes/:id", s.deleteNode)

	// ── Pipelines ─────────────────────────────────────────────────────
	app.Get("/api/pipelines", s.listPipelines)
	app.Post("/api/pipelines", s.createPipeline)
	app.Get("/api/pipelines/:id", s.getPipeline)
	app.Put("/api/pipelines/:id", s.updatePipeline)
	app.Delete("/api/pipelines/:id", s.deletePipeline)
	app.Get("/api/pipelines/:id/history", s.listPipelineHistory)

	// ── History ───────────────────────────────────────────────────────
	app.Get("/api/history", s.listHistory)
	app.Get("/api/history/:id", s.getHistory)

	// ── Logs ──────────────────────────────────────────────────────────
	app.Get("/api/logs", s.listLogs)
	app.Get("/api/logs/:id", s.getLog)
	app.Delete("/api/logs/:id", s.deleteLog)

	// ── Exec ──────────────────────────────────────────────────────────
	app.All("/exec/*", s.exec)

	return app
}

// requestLogger writes "METHOD path - status ip" to the logger and the log sink.
func (s *Server) requestLogger(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}

	method, path := c.Method(), c.Path()
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordHTTPRequest(method, c.Route().Path, status, elapsed)
	}
	s.logger.Info("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("ip", c.IP()),
		zap.Duration("elapsed", elapsed),
	)

	level := pipeline.LevelInfo
	switch {
	case status >= 500:
		level = pipeline.LevelError
	case status >= 400:
		level = pipeline.LevelWarn
	}
	message := fmt.Sprintf("%s %s - %d %s", method, path, status, c.IP())
	if _, lerr := s.store.CreateLog(c.Context(), level, CategoryHTTP, message); lerr != nil {
		s.logger.Warn("write log sink", zap.Error(lerr))
	}
	return err
}
