package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/ocrlens/internal/app"
	"github.com/fluxbase-eu/ocrlens/internal/config"
	"github.com/fluxbase-eu/ocrlens/internal/middleware"
	"github.com/fluxbase-eu/ocrlens/internal/observability"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

// Server represents the HTTP server
type Server struct {
	app        *fiber.App
	config     *config.Config
	components *app.Components
	sessions   *session.Manager
	tracer     *observability.Tracer
	startTime  time.Time

	sessionHandler    *SessionHandler
	catalogHandler    *CatalogHandler
	monitoringHandler *MonitoringHandler
}

// NewServer creates a new HTTP server. tracer may be nil.
func NewServer(cfg *config.Config, components *app.Components, sessions *session.Manager, tracer *observability.Tracer) *Server {
	fiberApp := fiber.New(fiber.Config{
		AppName:               "OCRLens",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          customErrorHandler,
	})

	s := &Server{
		app:        fiberApp,
		config:     cfg,
		components: components,
		sessions:   sessions,
		tracer:     tracer,
		startTime:  time.Now(),
	}

	s.sessionHandler = NewSessionHandler(sessions, components, cfg.Analysis)
	s.catalogHandler = NewCatalogHandler(components, cfg.Analysis)
	s.monitoringHandler = NewMonitoringHandler(components, sessions, s.startTime)

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

// setupMiddlewares sets up global middlewares
func (s *Server) setupMiddlewares() {
	// Request ID middleware - must be first for tracing
	s.app.Use(requestid.New())

	if s.tracer != nil && s.tracer.IsEnabled() {
		log.Debug().Msg("Adding OpenTelemetry tracing middleware")
		s.app.Use(middleware.TracingMiddleware(middleware.TracingConfig{
			Enabled:     true,
			ServiceName: s.config.Tracing.ServiceName,
			SkipPaths:   []string{"/health", s.config.Metrics.Path},
		}))
	}

	s.app.Use(middleware.SecurityHeaders())

	s.app.Use(middleware.StructuredLogger(middleware.StructuredLoggerConfig{
		SkipPaths:            []string{"/health", s.config.Metrics.Path},
		SlowRequestThreshold: middleware.DefaultStructuredLoggerConfig().SlowRequestThreshold,
	}))

	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.config.Debug,
	}))

	if s.config.Metrics.Enabled {
		s.app.Use(s.components.Metrics.MetricsMiddleware())
	}
}

// setupRoutes sets up all routes
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.monitoringHandler.GetHealth)

	if s.config.Metrics.Enabled {
		s.app.Get(s.config.Metrics.Path, s.components.Metrics.Handler())
	}

	v1 := s.app.Group("/api/v1")
	v1.Get("/catalog", s.catalogHandler.GetCatalog)
	v1.Get("/system", s.monitoringHandler.GetSystem)

	sessions := v1.Group("/sessions")
	sessions.Post("/", s.sessionHandler.CreateSession)
	sessions.Get("/:id", s.sessionHandler.GetSession)
	sessions.Delete("/:id", s.sessionHandler.DeleteSession)
	sessions.Get("/:id/text", s.sessionHandler.GetText)
	sessions.Post("/:id/analyze", s.sessionHandler.Analyze)

	upload := []fiber.Handler{}
	if limit := s.config.Server.UploadRateLimit; limit > 0 {
		upload = append(upload, middleware.UploadLimiter(limit, s.components.Metrics.RecordRateLimitHit))
	}
	upload = append(upload, s.sessionHandler.UploadImage)
	sessions.Post("/:id/image", upload...)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	err := s.app.ShutdownWithContext(ctx)

	// Sessions go after the listener so no request races their memo stores
	s.sessions.Stop()

	if s.tracer != nil {
		if terr := s.tracer.Shutdown(ctx); terr != nil {
			log.Warn().Err(terr).Msg("Failed to shutdown OpenTelemetry tracer")
		}
	}

	return err
}

// App returns the underlying Fiber app instance for testing
func (s *Server) App() *fiber.App {
	return s.app
}
